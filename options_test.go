// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/bytebuf"
)

func TestDefaultOptions(t *testing.T) {
	o := bytebuf.DefaultOptions()
	if o.AllocatorType != bytebuf.AllocatorPooled {
		t.Fatalf("AllocatorType = %v, want AllocatorPooled", o.AllocatorType)
	}
	if o.LeakDetectionLevel != bytebuf.LeakDetectionSimple {
		t.Fatalf("LeakDetectionLevel = %v, want LeakDetectionSimple", o.LeakDetectionLevel)
	}
	if o.NumArenas < 1 {
		t.Fatalf("NumArenas = %d, want >= 1", o.NumArenas)
	}
	if o.MaxOrder != 11 {
		t.Fatalf("MaxOrder = %d, want 11", o.MaxOrder)
	}
	if !o.CheckAccessible {
		t.Fatal("CheckAccessible should default to true")
	}
}

func TestConfigure_OverridesFromEnv(t *testing.T) {
	t.Setenv("BYTEBUF_ALLOCATOR_TYPE", "unpooled")
	t.Setenv("BYTEBUF_LEAK_DETECTION_LEVEL", "paranoid")
	t.Setenv("BYTEBUF_NUM_ARENAS", "3")
	t.Setenv("BYTEBUF_CHECK_ACCESSIBLE", "false")

	o := bytebuf.Configure()
	if o.AllocatorType != bytebuf.AllocatorUnpooled {
		t.Fatalf("AllocatorType = %v, want AllocatorUnpooled", o.AllocatorType)
	}
	if o.LeakDetectionLevel != bytebuf.LeakDetectionParanoid {
		t.Fatalf("LeakDetectionLevel = %v, want LeakDetectionParanoid", o.LeakDetectionLevel)
	}
	if o.NumArenas != 3 {
		t.Fatalf("NumArenas = %d, want 3", o.NumArenas)
	}
	if o.CheckAccessible {
		t.Fatal("CheckAccessible should be false")
	}
}

func TestConfigure_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("BYTEBUF_NUM_ARENAS", "not-a-number")
	t.Setenv("BYTEBUF_ALLOCATOR_TYPE", "bogus")

	def := bytebuf.DefaultOptions()
	o := bytebuf.Configure()
	if o.NumArenas != def.NumArenas {
		t.Fatalf("NumArenas = %d, want default %d when env value is malformed", o.NumArenas, def.NumArenas)
	}
	if o.AllocatorType != def.AllocatorType {
		t.Fatalf("AllocatorType = %v, want default %v when env value is unrecognized", o.AllocatorType, def.AllocatorType)
	}
}

func TestApplyOptions_CheckAccessibleToggle(t *testing.T) {
	defer bytebuf.ApplyOptions(bytebuf.Options{CheckAccessible: true})

	// With the gate disabled, access to a released heap buffer no longer
	// fails the reference-count check; it falls through to the ordinary
	// bounds check against the (now dropped, zero-capacity) storage.
	bytebuf.ApplyOptions(bytebuf.Options{CheckAccessible: false})
	b := bytebuf.NewHeapBuffer(4, 4)
	_, _ = b.Release()
	if _, err := b.GetByte(0); errors.Is(err, bytebuf.ErrIllegalReferenceCount) {
		t.Fatalf("GetByte with CheckAccessible disabled should skip the reference-count gate, got %v", err)
	}

	bytebuf.ApplyOptions(bytebuf.Options{CheckAccessible: true})
	b2 := bytebuf.NewHeapBuffer(4, 4)
	_, _ = b2.Release()
	if _, err := b2.GetByte(0); !errors.Is(err, bytebuf.ErrIllegalReferenceCount) {
		t.Fatalf("GetByte with CheckAccessible enabled: err = %v, want ErrIllegalReferenceCount", err)
	}
}
