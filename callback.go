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

package sproto

// Sentinels a [Callback] may return instead of a byte count.
const (
	// CbNil reports that the field (or array element) has no value. For a
	// scalar the field is omitted; for an array it ends the array.
	CbNil = -1

	// CbNoArray reports that an entire array field is absent. The encoder
	// emits nothing for the field, not even an empty container.
	CbNoArray = -2

	// CbError aborts the current encode or decode.
	CbError = -3
)

// Arg is the single argument of a [Callback]. The same shape serves both
// directions: the encoder asks the host to produce a value into Value, the
// decoder hands the host a decoded value in Value.
type Arg struct {
	// TagName and TagID identify the field within its type.
	TagName string
	TagID   int

	// Kind is the declared field kind, with the array dimension stripped;
	// Subtype is the element type of a struct field, nil otherwise.
	Kind    Kind
	Subtype *Type

	// MainIndex is the tag of the key field when the containing field is a
	// keyed struct array, -1 otherwise.
	MainIndex int

	// Extra carries the decimal scale (10^k) for integer fields, and
	// distinguishes text (0) from binary (1) for string fields.
	Extra int

	// Index is 0 for a scalar, >= 1 for successive array elements. The
	// decoder uses -1 to report an empty (but present) array so the host
	// can materialize an empty container.
	Index int

	// Value is the data buffer. On encode it is the destination the
	// callback writes into (its length is the remaining capacity); on
	// decode it holds the value payload. Integers and booleans travel as
	// little-endian bytes: the encode callback writes 4 or 8 bytes and
	// returns that width, the decoder always delivers 8 bytes.
	Value []byte
}

// Callback bridges the codec and the host value system.
//
// On encode it returns the number of bytes written into Value; on decode a
// return of 0 accepts the value. Either direction may return one of the
// negative sentinels.
type Callback func(arg *Arg) int
