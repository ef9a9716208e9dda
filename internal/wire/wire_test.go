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

package wire_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/czlc/sproto/internal/wire"
)

func TestExpand64(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   uint32
		want int64
	}{
		{0, 0},
		{1, 1},
		{0x7fffffff, math.MaxInt32},
		{0x80000000, math.MinInt32},
		{0xffffffff, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, int64(wire.Expand64(tt.in)), "Expand64(%#x)", tt.in)
	}
}

func TestLittleEndian(t *testing.T) {
	t.Parallel()
	var b [8]byte
	wire.PutQword(b[:], 0x8877665544332211)
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}, b[:])
	assert.Equal(t, uint16(0x2211), wire.Word(b[:]))
	assert.Equal(t, uint32(0x44332211), wire.Dword(b[:]))
}
