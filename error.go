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

import (
	"errors"
	"fmt"
	"io"
)

const (
	errCodeOk errCode = iota
	errCodeTruncated
	errCodeBundle
	errCodeTagOrder
	errCodeTypeIndex
	errCodeBuiltin
	errCodeSlotRange
	errCodeWidth
	errCodeShortBuffer
	errCodeCallback
	errCodeDepth
	errCodeTooLarge
	errCodePackStream
	errCodeMessage
)

type errCode int

var errs = [...]error{
	errCodeOk:          nil,
	errCodeTruncated:   io.ErrUnexpectedEOF,
	errCodeBundle:      errors.New("malformed schema bundle"),
	errCodeTagOrder:    errors.New("field tags not in ascending order"),
	errCodeTypeIndex:   errors.New("type index out of range"),
	errCodeBuiltin:     errors.New("unknown built-in type code"),
	errCodeSlotRange:   errors.New("header slot value out of range"),
	errCodeWidth:       errors.New("invalid integer array width"),
	errCodeShortBuffer: ErrShortBuffer,
	errCodeCallback:    ErrCallback,
	errCodeDepth:       errors.New("max nesting depth exceeded"),
	errCodeTooLarge:    errors.New("encoded message too large"),
	errCodePackStream:  errors.New("invalid packed stream"),
	errCodeMessage:     errors.New("malformed message"),
}

var (
	// ErrShortBuffer reports that the destination buffer was too small for
	// the operation. It is recoverable: double the buffer and retry.
	ErrShortBuffer = errors.New("destination buffer too small")

	// ErrCallback reports that a host callback returned Error, or broke
	// the callback contract (for example by writing an integer of an
	// unsupported width).
	ErrCallback = errors.New("callback error")
)

// codecError is an error produced while parsing a bundle or running the
// codec over a message.
type codecError struct {
	code   errCode
	offset int
}

func errAt(code errCode, offset int) error {
	return &codecError{code: code, offset: offset}
}

// Offset returns the input offset at which the error occurred.
func (e *codecError) Offset() int {
	return e.offset
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *codecError) Unwrap() error {
	return errs[e.code]
}

// Error implements [error].
func (e *codecError) Error() string {
	return fmt.Sprintf("sproto: error at offset %d/%#x: %v", e.offset, e.offset, e.Unwrap())
}
