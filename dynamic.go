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

	"github.com/tiendc/go-deepcopy"

	"github.com/czlc/sproto/internal/wire"
)

// This file implements the callback contract over dynamic Go values, so a
// message can be encoded from and decoded into plain maps without writing
// a callback by hand.
//
// Value conventions:
//
//   - integer:  int64 (EncodeMap also accepts int, int32, uint32, ...)
//   - decimal:  float64, scaled by the field's 10^k factor on the wire
//   - boolean:  bool
//   - string:   string; binary string fields use []byte
//   - struct:   map[string]any
//   - array:    []any or a typed slice of any of the above
//   - keyed struct array: map[any]map[string]any (decode yields
//     map[any]any keyed by the element's key field value)

// encodeContext is the per-struct state of a dynamic encode, one level of
// nesting per instance.
type encodeContext struct {
	opts codecOptions
	deep int
	tbl  map[string]any

	// Snapshot of the array currently being iterated, so successive
	// element probes do not re-fetch the field.
	arrTag string
	arr    []any

	// Host-side fatal error; distinguishes a real failure from a
	// buffer-too-small CbError that EncodeMap answers by growing.
	err error
}

func (c *encodeContext) fail(format string, fargs ...any) int {
	c.err = fmt.Errorf("sproto: "+format, fargs...)
	return CbError
}

func (c *encodeContext) callback(args *Arg) int {
	if c.deep >= c.opts.maxDepth {
		return c.fail("message too deep (> %d levels)", c.opts.maxDepth)
	}
	var v any
	if args.Index > 0 {
		if args.TagName != c.arrTag {
			raw, ok := c.tbl[args.TagName]
			if !ok || raw == nil {
				c.arrTag = ""
				return CbNoArray
			}
			elems, ok := arrayElems(raw)
			if !ok {
				return c.fail("field %s: %T is not an array", args.TagName, raw)
			}
			c.arrTag = args.TagName
			c.arr = elems
		}
		if args.Index > len(c.arr) {
			return CbNil
		}
		v = c.arr[args.Index-1]
	} else {
		var ok bool
		v, ok = c.tbl[args.TagName]
		if !ok || v == nil {
			return CbNil
		}
	}

	switch args.Kind {
	case KindInteger:
		var i64 int64
		if args.Extra > 0 {
			f, ok := toFloat(v)
			if !ok {
				return c.fail("field %s: %T is not a number", args.TagName, v)
			}
			i64 = int64(f*float64(args.Extra) + 0.5)
		} else {
			var ok bool
			i64, ok = toInt(v)
			if !ok {
				return c.fail("field %s: %T is not an integer", args.TagName, v)
			}
		}
		if vh := i64 >> 31; vh == 0 || vh == -1 {
			wire.PutDword(args.Value, uint32(i64))
			return 4
		}
		wire.PutQword(args.Value, uint64(i64))
		return 8
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return c.fail("field %s: %T is not a boolean", args.TagName, v)
		}
		var u uint32
		if b {
			u = 1
		}
		wire.PutDword(args.Value, u)
		return 4
	case KindString:
		var s []byte
		switch x := v.(type) {
		case string:
			s = []byte(x)
		case []byte:
			s = x
		default:
			return c.fail("field %s: %T is not a string", args.TagName, v)
		}
		if len(s) > len(args.Value) {
			return CbError // not enough room; EncodeMap grows and retries
		}
		copy(args.Value, s)
		return len(s)
	case KindStruct:
		m, ok := v.(map[string]any)
		if !ok {
			return c.fail("field %s: %T is not a struct", args.TagName, v)
		}
		sub := &encodeContext{opts: c.opts, deep: c.deep + 1, tbl: m}
		n, err := args.Subtype.Encode(args.Value, sub.callback)
		if err != nil {
			if sub.err != nil {
				c.err = sub.err
			}
			return CbError
		}
		return n
	}
	return c.fail("field %s: invalid kind %v", args.TagName, args.Kind)
}

// arrayElems normalizes the supported array representations to []any.
func arrayElems(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []map[string]any:
		elems := make([]any, len(x))
		for i, e := range x {
			elems[i] = e
		}
		return elems, true
	case []int64:
		elems := make([]any, len(x))
		for i, e := range x {
			elems[i] = e
		}
		return elems, true
	case []int:
		elems := make([]any, len(x))
		for i, e := range x {
			elems[i] = e
		}
		return elems, true
	case []float64:
		elems := make([]any, len(x))
		for i, e := range x {
			elems[i] = e
		}
		return elems, true
	case []bool:
		elems := make([]any, len(x))
		for i, e := range x {
			elems[i] = e
		}
		return elems, true
	case []string:
		elems := make([]any, len(x))
		for i, e := range x {
			elems[i] = e
		}
		return elems, true
	case [][]byte:
		elems := make([]any, len(x))
		for i, e := range x {
			elems[i] = e
		}
		return elems, true
	case map[any]map[string]any:
		elems := make([]any, 0, len(x))
		for _, e := range x {
			elems = append(elems, e)
		}
		return elems, true
	case map[any]any:
		elems := make([]any, 0, len(x))
		for _, e := range x {
			elems = append(elems, e)
		}
		return elems, true
	}
	return nil, false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint64:
		return int64(x), x <= 1<<63-1
	case float64:
		i := int64(x)
		return i, float64(i) == x
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		i, ok := toInt(v)
		return float64(i), ok
	}
}

// EncodeMap serializes m as a value of this type, growing the scratch
// buffer as needed up to the configured size cap.
func (t *Type) EncodeMap(m map[string]any, opts ...Option) ([]byte, error) {
	o := newCodecOptions(opts)
	for sz := 2050; ; sz *= 2 {
		c := &encodeContext{opts: o, tbl: m}
		buf := make([]byte, sz)
		n, err := t.Encode(buf, c.callback)
		switch {
		case err == nil:
			return buf[:n:n], nil
		case c.err != nil:
			return nil, c.err
		case errors.Is(err, ErrShortBuffer) || errors.Is(err, ErrCallback):
			// Out of room somewhere down the tree; retry larger.
			if sz*2 > o.maxSize {
				return nil, errAt(errCodeTooLarge, sz)
			}
		default:
			return nil, err
		}
	}
}

// decodeContext is the per-struct state of a dynamic decode.
type decodeContext struct {
	opts   codecOptions
	deep   int
	result map[string]any

	// The array currently being filled. Plain sequences accumulate in arr
	// and are flushed into result when the field ends; keyed struct
	// arrays insert into arrMap element by element.
	arrTag string
	arr    []any
	arrMap map[any]any

	// mainTag is the key field's tag when this context decodes one keyed
	// array element; the key value is captured as it streams past.
	mainTag int
	key     any

	err error
}

func (c *decodeContext) fail(format string, fargs ...any) int {
	c.err = fmt.Errorf("sproto: "+format, fargs...)
	return CbError
}

// flushArray commits a finished plain array to the result map.
func (c *decodeContext) flushArray() {
	if c.arrTag != "" && c.arrMap == nil {
		if c.arr == nil {
			c.arr = []any{}
		}
		c.result[c.arrTag] = c.arr
	}
	c.arrTag = ""
	c.arr = nil
	c.arrMap = nil
}

func (c *decodeContext) callback(args *Arg) int {
	if c.deep >= c.opts.maxDepth {
		return c.fail("message too deep (> %d levels)", c.opts.maxDepth)
	}
	if args.Index != 0 && args.TagName != c.arrTag {
		c.flushArray()
		c.arrTag = args.TagName
		if args.MainIndex >= 0 {
			c.arrMap = map[any]any{}
			c.result[args.TagName] = c.arrMap
		}
		if args.Index < 0 {
			// Empty but present: materialize the empty container now.
			c.flushArray()
			return 0
		}
	}

	var v any
	switch args.Kind {
	case KindInteger:
		raw := int64(wire.Qword(args.Value))
		if args.Extra > 0 {
			v = float64(raw) / float64(args.Extra)
		} else {
			v = raw
		}
	case KindBoolean:
		v = wire.Qword(args.Value) != 0
	case KindString:
		if args.Extra == StringBinary {
			v = append([]byte(nil), args.Value...)
		} else {
			v = string(args.Value)
		}
	case KindStruct:
		sub := &decodeContext{
			opts:    c.opts,
			deep:    c.deep + 1,
			result:  map[string]any{},
			mainTag: -1,
		}
		if args.MainIndex >= 0 && args.Index > 0 {
			sub.mainTag = args.MainIndex
		}
		n, err := args.Subtype.Decode(args.Value, sub.callback)
		if err != nil {
			if sub.err != nil {
				c.err = sub.err
			} else {
				c.err = err
			}
			return CbError
		}
		if n != len(args.Value) {
			return c.fail("field %s: struct payload not fully consumed", args.TagName)
		}
		sub.flushArray()
		if sub.mainTag >= 0 {
			if sub.key == nil {
				return c.fail("field %s: missing main index (tag=%d)", args.TagName, args.MainIndex)
			}
			c.arrMap[sub.key] = sub.result
			return 0
		}
		v = sub.result
	default:
		return c.fail("field %s: invalid kind %v", args.TagName, args.Kind)
	}

	if args.Index > 0 {
		c.arr = append(c.arr, v)
	} else {
		if c.mainTag == args.TagID {
			c.key = v
		}
		c.result[args.TagName] = v
	}
	return 0
}

// DecodeMap deserializes one value of this type into a fresh map. It
// returns the map and the number of bytes consumed.
func (t *Type) DecodeMap(data []byte, opts ...Option) (map[string]any, int, error) {
	o := newCodecOptions(opts)
	c := &decodeContext{opts: o, result: map[string]any{}, mainTag: -1}
	n, err := t.Decode(data, c.callback)
	if err != nil {
		if c.err != nil {
			return nil, 0, c.err
		}
		return nil, 0, err
	}
	c.flushArray()
	return c.result, n, nil
}

// defaultValue is the zero value a field presents when absent.
func defaultValue(args *Arg) any {
	switch args.Kind {
	case KindInteger:
		if args.Extra > 0 {
			return float64(0)
		}
		return int64(0)
	case KindBoolean:
		return false
	case KindString:
		if args.Extra == StringBinary {
			return []byte(nil)
		}
		return ""
	case KindStruct:
		return map[string]any{"__type": args.Subtype.Name}
	}
	return nil
}

// Default returns a map holding the default value of every field of the
// type: zero scalars, empty strings, and for struct fields a placeholder
// naming the struct type under "__type". Array fields wrap their element
// default under "__array".
func (t *Type) Default() map[string]any {
	m := map[string]any{}
	cb := func(args *Arg) int {
		if args.Index > 0 {
			m[args.TagName] = map[string]any{"__array": defaultValue(args)}
			return CbNoArray
		}
		m[args.TagName] = defaultValue(args)
		return CbNil
	}
	// Drive the field walk with a dummy encode; nothing is ever written
	// beyond the header since every callback declines.
	for sz := 64; ; sz *= 2 {
		_, err := t.Encode(make([]byte, sz), cb)
		if err == nil || !errors.Is(err, ErrShortBuffer) {
			return m
		}
	}
}

// Clone deep-copies a decoded message, so the original can be mutated or
// released independently.
func Clone(m map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := deepcopy.Copy(&out, m); err != nil {
		return nil, err
	}
	return out, nil
}
