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

package sproto_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czlc/sproto"
)

func roundTrip(t *testing.T, ty *sproto.Type, in map[string]any) map[string]any {
	t.Helper()

	// Snapshot the input so aliasing bugs in the codec cannot hide.
	snapshot, err := sproto.Clone(in)
	require.NoError(t, err)

	msg, err := ty.EncodeMap(in)
	require.NoError(t, err)
	assert.Equal(t, snapshot, in, "encode must not mutate its input")

	out, n, err := ty.DecodeMap(msg)
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)
	return out
}

func TestRoundTripIntegerBoundaries(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	person := s.Type("Person")

	for _, v := range []int64{
		0, 1, 0x7ffe, 0x7fff, 0x8000, -1,
		math.MinInt32, math.MaxInt32,
		math.MinInt32 - 1, math.MaxInt32 + 1,
		math.MinInt64, math.MaxInt64,
	} {
		out := roundTrip(t, person, map[string]any{"age": v})
		assert.Equal(t, v, out["age"], "value %d", v)
	}
}

func TestRoundTripScalars(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	bag := s.Type("Bag")

	out := roundTrip(t, bag, map[string]any{
		"price":   1.23,
		"payload": []byte{0x00, 0x01, 0xff},
		"owner":   map[string]any{"name": "cz", "age": int64(30)},
	})
	assert.Equal(t, 1.23, out["price"])
	assert.Equal(t, []byte{0x00, 0x01, 0xff}, out["payload"])
	assert.Equal(t, map[string]any{"name": "cz", "age": int64(30)}, out["owner"])
}

func TestRoundTripDecimalScaling(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	bag := s.Type("Bag")

	// extra = 100: 1.23 rides the wire as the integer 123.
	msg, err := bag.EncodeMap(map[string]any{"price": 1.23})
	require.NoError(t, err)
	var seen int64
	_, err = bag.Decode(msg, func(arg *sproto.Arg) int {
		if arg.TagName == "price" {
			seen = int64(arg.Value[0]) // 123 fits one byte
		}
		return 0
	})
	require.NoError(t, err)
	assert.Equal(t, int64(123), seen)

	out, _, err := bag.DecodeMap(msg)
	require.NoError(t, err)
	assert.Equal(t, 1.23, out["price"])
}

func TestRoundTripArrays(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	bag := s.Type("Bag")

	for _, n := range []int{1, 255, 256, 257} {
		ids := make([]any, n)
		for i := range ids {
			ids[i] = int64(i - 1)
		}
		out := roundTrip(t, bag, map[string]any{"ids": ids})
		assert.Equal(t, ids, out["ids"], "length %d", n)
	}

	out := roundTrip(t, bag, map[string]any{
		"flags": []bool{true, false, true},
		"tags":  []string{"a", "", "bc"},
	})
	assert.Equal(t, []any{true, false, true}, out["flags"])
	assert.Equal(t, []any{"a", "", "bc"}, out["tags"])
}

func TestRoundTripKeyedStructArray(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	bag := s.Type("Bag")

	in := map[string]any{
		"items": []any{
			map[string]any{"id": int64(7), "label": "seven"},
			map[string]any{"id": int64(2), "label": "two"},
		},
	}
	out := roundTrip(t, bag, in)
	items, ok := out["items"].(map[any]any)
	require.True(t, ok, "keyed array decodes to a map, got %T", out["items"])
	require.Len(t, items, 2)
	assert.Equal(t, map[string]any{"id": int64(7), "label": "seven"}, items[int64(7)])
	assert.Equal(t, map[string]any{"id": int64(2), "label": "two"}, items[int64(2)])

	// A decoded map re-encodes to an equivalent message.
	out2 := roundTrip(t, bag, out)
	assert.Equal(t, items, out2["items"])
}

func TestRoundTripMissingKeyFails(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	bag := s.Type("Bag")

	msg, err := bag.EncodeMap(map[string]any{
		"items": []any{map[string]any{"label": "anonymous"}},
	})
	require.NoError(t, err)
	_, _, err = bag.DecodeMap(msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main index")
}

func TestNestingDepthLimit(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	node := s.Type("Node")

	chain := func(depth int) map[string]any {
		m := map[string]any{"value": int64(depth)}
		for i := depth - 1; i > 0; i-- {
			m = map[string]any{"value": int64(i), "next": m}
		}
		return m
	}

	ok := chain(sproto.DefaultMaxDepth)
	msg, err := node.EncodeMap(ok)
	require.NoError(t, err)
	back, _, err := node.DecodeMap(msg)
	require.NoError(t, err)
	assert.Equal(t, ok, back)

	_, err = node.EncodeMap(chain(sproto.DefaultMaxDepth + 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too deep")

	// The decoder enforces the same limit on hostile input decoded under
	// a relaxed writer.
	msg, err = node.EncodeMap(chain(70), sproto.WithMaxDepth(128))
	require.NoError(t, err)
	_, _, err = node.DecodeMap(msg)
	require.Error(t, err)

	_, _, err = node.DecodeMap(msg, sproto.WithMaxDepth(128))
	require.NoError(t, err)
}

func TestEncodeMapTypeErrors(t *testing.T) {
	t.Parallel()
	s := testSchema(t)

	_, err := s.Type("Person").EncodeMap(map[string]any{"age": "not a number"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an integer")

	_, err = s.Type("Bag").EncodeMap(map[string]any{"ids": 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an array")

	_, err = s.Type("Bag").EncodeMap(map[string]any{"owner": "me"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a struct")
}

func TestEncodeMapSizeCap(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	bag := s.Type("Bag")

	_, err := bag.EncodeMap(
		map[string]any{"payload": make([]byte, 1<<13)},
		sproto.WithMaxSize(1<<12))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEncodeMapGrowsPastDefaultBuffer(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	bag := s.Type("Bag")

	// Larger than the initial scratch buffer, forcing the retry loop.
	payload := []byte(strings.Repeat("x", 1<<16))
	out := roundTrip(t, bag, map[string]any{"payload": payload})
	assert.Equal(t, payload, out["payload"])
}

func TestDefault(t *testing.T) {
	t.Parallel()
	s := testSchema(t)

	assert.Equal(t, map[string]any{
		"name": "",
		"age":  int64(0),
	}, s.Type("Person").Default())

	def := s.Type("Bag").Default()
	assert.Equal(t, map[string]any{"__array": map[string]any{"__type": "Item"}}, def["items"])
	assert.Equal(t, map[string]any{"__array": int64(0)}, def["ids"])
	assert.Equal(t, map[string]any{"__array": false}, def["flags"])
	assert.Equal(t, map[string]any{"__array": ""}, def["tags"])
	assert.Equal(t, float64(0), def["price"])
	assert.Equal(t, []byte(nil), def["payload"])
	assert.Equal(t, map[string]any{"__type": "Person"}, def["owner"])
}

func TestTypedSliceInputs(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	bag := s.Type("Bag")

	out := roundTrip(t, bag, map[string]any{
		"ids":   []int{3, 1, 2},
		"flags": []any{true, false},
		"tags":  []string{"x"},
	})
	assert.Equal(t, []any{int64(3), int64(1), int64(2)}, out["ids"])
}
