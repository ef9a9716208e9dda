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
	"github.com/czlc/sproto/internal/wire"
)

// deliver hands one decoded value to the host. Decode callbacks return 0
// to accept; anything else aborts.
func deliver(cb Callback, args *Arg) error {
	if cb(args) != 0 {
		return ErrCallback
	}
	return nil
}

// deliverInt delivers an integer (or boolean) as 8 little-endian bytes.
func deliverInt(cb Callback, args *Arg, v uint64) error {
	var tmp [8]byte
	wire.PutQword(tmp[:], v)
	args.Value = tmp[:]
	return deliver(cb, args)
}

// decodeArray walks one array blob. chunk holds the blob including its
// length prefix; base is its offset in the message, for errors.
func decodeArray(cb Callback, args *Arg, chunk []byte, base int) error {
	sz := int(wire.Dword(chunk))
	if sz == 0 {
		// Empty but present. Index -1 tells the host to materialize an
		// empty container, distinguishable from an absent field.
		args.Index = -1
		args.Value = nil
		return deliver(cb, args)
	}
	stream := chunk[wire.SizeLength:]
	switch args.Kind {
	case KindInteger:
		width := int(stream[0])
		stream = stream[1:]
		if width != 4 && width != 8 {
			return errAt(errCodeWidth, base)
		}
		if len(stream)%width != 0 {
			return errAt(errCodeWidth, base)
		}
		for i := 0; i*width < len(stream); i++ {
			var v uint64
			if width == 4 {
				v = wire.Expand64(wire.Dword(stream[i*4:]))
			} else {
				v = wire.Qword(stream[i*8:])
			}
			args.Index = i + 1
			if err := deliverInt(cb, args, v); err != nil {
				return err
			}
		}
	case KindBoolean:
		for i, b := range stream {
			args.Index = i + 1
			if err := deliverInt(cb, args, uint64(b)); err != nil {
				return err
			}
		}
	case KindString, KindStruct:
		for index := 1; len(stream) > 0; index++ {
			if len(stream) < wire.SizeLength {
				return errAt(errCodeTruncated, base)
			}
			hsz := int(wire.Dword(stream))
			if hsz > len(stream)-wire.SizeLength {
				return errAt(errCodeTruncated, base)
			}
			args.Index = index
			args.Value = stream[wire.SizeLength : wire.SizeLength+hsz]
			if err := deliver(cb, args); err != nil {
				return err
			}
			stream = stream[wire.SizeLength+hsz:]
		}
	default:
		return errAt(errCodeMessage, base)
	}
	return nil
}

// Decode deserializes one value of this type from data, pushing each field
// value to the host through cb.
//
// It returns the number of bytes consumed, which may be less than
// len(data) when the message is embedded in a larger buffer. Tags not
// present in the type are skipped without error, so messages from an
// extended schema still decode.
func (t *Type) Decode(data []byte, cb Callback) (int, error) {
	total := len(data)
	if total < wire.SizeHeader {
		return 0, errAt(errCodeTruncated, 0)
	}
	fn := int(wire.Word(data))
	stream := data[wire.SizeHeader:]
	if len(stream) < fn*wire.SizeField {
		return 0, errAt(errCodeTruncated, wire.SizeHeader)
	}
	datastream := stream[fn*wire.SizeField:]

	var args Arg
	tag := -1
	for i := 0; i < fn; i++ {
		v := int(wire.Word(stream[i*wire.SizeField:]))
		tag++
		if v&1 != 0 {
			tag += v / 2
			continue
		}
		value := v/2 - 1
		var current []byte
		base := total - len(datastream)
		if value < 0 {
			// Blob-valued: consume it even if the tag turns out unknown.
			if len(datastream) < wire.SizeLength {
				return 0, errAt(errCodeTruncated, base)
			}
			sz := int(wire.Dword(datastream))
			if len(datastream)-wire.SizeLength < sz {
				return 0, errAt(errCodeTruncated, base)
			}
			current = datastream[:wire.SizeLength+sz]
			datastream = datastream[wire.SizeLength+sz:]
		}
		f := t.FieldByTag(tag)
		if f == nil {
			continue
		}
		args = Arg{
			TagName:   f.Name,
			TagID:     f.Tag,
			Kind:      f.Kind,
			Subtype:   f.Subtype,
			MainIndex: f.Key,
			Extra:     f.Extra,
		}
		switch {
		case value >= 0:
			// Inline header value; only scalar integers and booleans fit
			// there, arrays always travel as blobs.
			if f.Array || (f.Kind != KindInteger && f.Kind != KindBoolean) {
				return 0, errAt(errCodeMessage, base)
			}
			if err := deliverInt(cb, &args, uint64(value)); err != nil {
				return 0, err
			}
		case f.Array:
			if err := decodeArray(cb, &args, current, base); err != nil {
				return 0, err
			}
		default:
			switch f.Kind {
			case KindInteger:
				payload := current[wire.SizeLength:]
				var u uint64
				switch len(payload) {
				case 4:
					u = wire.Expand64(wire.Dword(payload))
				case 8:
					u = wire.Qword(payload)
				default:
					return 0, errAt(errCodeMessage, base)
				}
				if err := deliverInt(cb, &args, u); err != nil {
					return 0, err
				}
			case KindString, KindStruct:
				args.Value = current[wire.SizeLength:]
				if err := deliver(cb, &args); err != nil {
					return 0, err
				}
			default:
				return 0, errAt(errCodeMessage, base)
			}
		}
	}
	return total - len(datastream), nil
}
