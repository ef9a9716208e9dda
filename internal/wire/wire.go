// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wire provides the little-endian primitives of the tag-value
// format: 16-bit header slots, 32-bit lengths and integers, and 64-bit
// integers, plus sign extension from the 4-byte to the 8-byte width.
package wire

import "encoding/binary"

// Sizes of the fixed-width pieces of the format.
const (
	SizeLength = 4 // length prefix of a blob
	SizeHeader = 2 // field count of a record
	SizeField  = 2 // one header slot
)

// Word reads a 16-bit header slot.
func Word(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

// PutWord writes a 16-bit header slot.
func PutWord(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b, v)
}

// Dword reads a 32-bit length or integer.
func Dword(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// PutDword writes a 32-bit length or integer.
func PutDword(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// Qword reads a 64-bit integer.
func Qword(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// PutQword writes a 64-bit integer.
func PutQword(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}

// Expand64 sign-extends a 4-byte wire integer to the 8-byte width.
func Expand64(v uint32) uint64 {
	return uint64(int64(int32(v)))
}
