// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bytebuf

import "math"

// This file implements the fixed-width primitive codec used by every
// buffer variant's typed Get/Set/Read/Write methods. Each function takes an
// already-bounds-checked slice of the exact width it encodes; callers
// (cursor's typed accessors) are responsible for validating index/length
// and pulling the bytes out of the buffer's backing storage first.

func readU16BE(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func readU16LE(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func writeU16BE(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func writeU16LE(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }

func readI16BE(b []byte) int16 { return int16(readU16BE(b)) }
func readI16LE(b []byte) int16 { return int16(readU16LE(b)) }

func writeI16BE(b []byte, v int16) { writeU16BE(b, uint16(v)) }
func writeI16LE(b []byte, v int16) { writeU16LE(b, uint16(v)) }

// readU24BE/readU24LE decode a 24-bit unsigned value, range [0, 2^24).
func readU24BE(b []byte) uint32 { return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]) }
func readU24LE(b []byte) uint32 { return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 }

func writeU24BE(b []byte, v uint32) { b[0] = byte(v >> 16); b[1] = byte(v >> 8); b[2] = byte(v) }
func writeU24LE(b []byte, v uint32) { b[0] = byte(v); b[1] = byte(v >> 8); b[2] = byte(v >> 16) }

// readI24BE/readI24LE decode a 24-bit signed value, sign-extending bit 23
// into the top byte of the returned int32.
func readI24BE(b []byte) int32 { return signExtend24(readU24BE(b)) }
func readI24LE(b []byte) int32 { return signExtend24(readU24LE(b)) }

func signExtend24(v uint32) int32 {
	if v&0x800000 != 0 {
		v |= 0xff000000
	}
	return int32(v)
}

func writeI24BE(b []byte, v int32) { writeU24BE(b, uint32(v)&0xffffff) }
func writeI24LE(b []byte, v int32) { writeU24LE(b, uint32(v)&0xffffff) }

func readU32BE(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
func readU32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func writeU32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
func writeU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func readI32BE(b []byte) int32 { return int32(readU32BE(b)) }
func readI32LE(b []byte) int32 { return int32(readU32LE(b)) }

func writeI32BE(b []byte, v int32) { writeU32BE(b, uint32(v)) }
func writeI32LE(b []byte, v int32) { writeU32LE(b, uint32(v)) }

func readU64BE(b []byte) uint64 {
	return uint64(readU32BE(b))<<32 | uint64(readU32BE(b[4:]))
}
func readU64LE(b []byte) uint64 {
	return uint64(readU32LE(b)) | uint64(readU32LE(b[4:]))<<32
}

func writeU64BE(b []byte, v uint64) {
	writeU32BE(b, uint32(v>>32))
	writeU32BE(b[4:], uint32(v))
}
func writeU64LE(b []byte, v uint64) {
	writeU32LE(b, uint32(v))
	writeU32LE(b[4:], uint32(v>>32))
}

func readI64BE(b []byte) int64 { return int64(readU64BE(b)) }
func readI64LE(b []byte) int64 { return int64(readU64LE(b)) }

func writeI64BE(b []byte, v int64) { writeU64BE(b, uint64(v)) }
func writeI64LE(b []byte, v int64) { writeU64LE(b, uint64(v)) }

func readF32BE(b []byte) float32 { return math.Float32frombits(readU32BE(b)) }
func readF32LE(b []byte) float32 { return math.Float32frombits(readU32LE(b)) }

func writeF32BE(b []byte, v float32) { writeU32BE(b, math.Float32bits(v)) }
func writeF32LE(b []byte, v float32) { writeU32LE(b, math.Float32bits(v)) }

func readF64BE(b []byte) float64 { return math.Float64frombits(readU64BE(b)) }
func readF64LE(b []byte) float64 { return math.Float64frombits(readU64LE(b)) }

func writeF64BE(b []byte, v float64) { writeU64BE(b, math.Float64bits(v)) }
func writeF64LE(b []byte, v float64) { writeU64LE(b, math.Float64bits(v)) }
