// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import "testing"

func TestUint16RoundTrip(t *testing.T) {
	b := make([]byte, 2)
	writeU16BE(b, 0xABCD)
	if got := readU16BE(b); got != 0xABCD {
		t.Errorf("readU16BE = %#x, want %#x", got, 0xABCD)
	}
	writeU16LE(b, 0xABCD)
	if got := readU16LE(b); got != 0xABCD {
		t.Errorf("readU16LE = %#x, want %#x", got, 0xABCD)
	}
	// BE and LE encodings must differ for a non-palindromic value.
	be, le := make([]byte, 2), make([]byte, 2)
	writeU16BE(be, 0x0102)
	writeU16LE(le, 0x0102)
	if be[0] != 0x01 || be[1] != 0x02 {
		t.Errorf("writeU16BE bytes = %v, want [1 2]", be)
	}
	if le[0] != 0x02 || le[1] != 0x01 {
		t.Errorf("writeU16LE bytes = %v, want [2 1]", le)
	}
}

func TestInt16RoundTrip(t *testing.T) {
	b := make([]byte, 2)
	writeI16BE(b, -1234)
	if got := readI16BE(b); got != -1234 {
		t.Errorf("readI16BE = %d, want -1234", got)
	}
	writeI16LE(b, -1234)
	if got := readI16LE(b); got != -1234 {
		t.Errorf("readI16LE = %d, want -1234", got)
	}
}

func TestUint24RoundTrip(t *testing.T) {
	const v = uint32(0xFEDCBA) // fits in 24 bits
	b := make([]byte, 3)
	writeU24BE(b, v)
	if got := readU24BE(b); got != v {
		t.Errorf("readU24BE = %#x, want %#x", got, v)
	}
	writeU24LE(b, v)
	if got := readU24LE(b); got != v {
		t.Errorf("readU24LE = %#x, want %#x", got, v)
	}
}

func TestInt24RoundTrip_SignExtension(t *testing.T) {
	cases := []int32{0, 1, -1, 8388607, -8388608}
	for _, v := range cases {
		b := make([]byte, 3)
		writeI24BE(b, v)
		if got := readI24BE(b); got != v {
			t.Errorf("readI24BE(writeI24BE(%d)) = %d", v, got)
		}
		writeI24LE(b, v)
		if got := readI24LE(b); got != v {
			t.Errorf("readI24LE(writeI24LE(%d)) = %d", v, got)
		}
	}
}

func TestSignExtend24(t *testing.T) {
	if got := signExtend24(0x000001); got != 1 {
		t.Errorf("signExtend24(1) = %d, want 1", got)
	}
	if got := signExtend24(0xFFFFFF); got != -1 {
		t.Errorf("signExtend24(0xFFFFFF) = %d, want -1", got)
	}
	if got := signExtend24(0x800000); got != -8388608 {
		t.Errorf("signExtend24(0x800000) = %d, want -8388608", got)
	}
}

func TestUint32RoundTrip(t *testing.T) {
	const v = uint32(0xDEADBEEF)
	b := make([]byte, 4)
	writeU32BE(b, v)
	if got := readU32BE(b); got != v {
		t.Errorf("readU32BE = %#x, want %#x", got, v)
	}
	writeU32LE(b, v)
	if got := readU32LE(b); got != v {
		t.Errorf("readU32LE = %#x, want %#x", got, v)
	}
}

func TestInt32RoundTrip(t *testing.T) {
	const v = int32(-123456789)
	b := make([]byte, 4)
	writeI32BE(b, v)
	if got := readI32BE(b); got != v {
		t.Errorf("readI32BE = %d, want %d", got, v)
	}
	writeI32LE(b, v)
	if got := readI32LE(b); got != v {
		t.Errorf("readI32LE = %d, want %d", got, v)
	}
}

func TestUint64RoundTrip(t *testing.T) {
	const v = uint64(0x0123456789ABCDEF)
	b := make([]byte, 8)
	writeU64BE(b, v)
	if got := readU64BE(b); got != v {
		t.Errorf("readU64BE = %#x, want %#x", got, v)
	}
	writeU64LE(b, v)
	if got := readU64LE(b); got != v {
		t.Errorf("readU64LE = %#x, want %#x", got, v)
	}
}

func TestInt64RoundTrip(t *testing.T) {
	const v = int64(-9007199254740993)
	b := make([]byte, 8)
	writeI64BE(b, v)
	if got := readI64BE(b); got != v {
		t.Errorf("readI64BE = %d, want %d", got, v)
	}
	writeI64LE(b, v)
	if got := readI64LE(b); got != v {
		t.Errorf("readI64LE = %d, want %d", got, v)
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	const v = float32(3.14159)
	b := make([]byte, 4)
	writeF32BE(b, v)
	if got := readF32BE(b); got != v {
		t.Errorf("readF32BE = %v, want %v", got, v)
	}
	writeF32LE(b, v)
	if got := readF32LE(b); got != v {
		t.Errorf("readF32LE = %v, want %v", got, v)
	}
}

func TestFloat64RoundTrip(t *testing.T) {
	const v = float64(2.71828182845904523536)
	b := make([]byte, 8)
	writeF64BE(b, v)
	if got := readF64BE(b); got != v {
		t.Errorf("readF64BE = %v, want %v", got, v)
	}
	writeF64LE(b, v)
	if got := readF64LE(b); got != v {
		t.Errorf("readF64LE = %v, want %v", got, v)
	}
}
