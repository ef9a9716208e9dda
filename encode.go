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

	"github.com/czlc/sproto/internal/wire"
)

// inlineLimit: 32-bit values strictly below this store directly in a header
// slot as (v+1)*2, keeping slot value 0 reserved for "blob follows".
const inlineLimit = 0x7fff

// fillSize writes the length prefix of the blob at data and returns the
// total size of the blob including the prefix.
func fillSize(data []byte, sz int) int {
	wire.PutDword(data, uint32(sz))
	return sz + wire.SizeLength
}

func encodeUint32(v uint32, data []byte) (int, error) {
	if len(data) < wire.SizeLength+4 {
		return 0, ErrShortBuffer
	}
	wire.PutDword(data[wire.SizeLength:], v)
	return fillSize(data, 4), nil
}

func encodeUint64(v uint64, data []byte) (int, error) {
	if len(data) < wire.SizeLength+8 {
		return 0, ErrShortBuffer
	}
	wire.PutQword(data[wire.SizeLength:], v)
	return fillSize(data, 8), nil
}

// encodeObject encodes a length-prefixed string or struct value at data by
// handing the callback the region after the length prefix.
func encodeObject(cb Callback, args *Arg, data []byte) (int, error) {
	if len(data) < wire.SizeLength {
		return 0, ErrShortBuffer
	}
	args.Value = data[wire.SizeLength:]
	sz := cb(args)
	if sz < 0 {
		if sz == CbNil {
			return 0, nil
		}
		return 0, ErrCallback
	}
	if sz > len(data)-wire.SizeLength {
		return 0, ErrCallback
	}
	return fillSize(data, sz), nil
}

// encodeIntegerArray packs integer elements back-to-back after a width
// byte, promoting every element to 8 bytes the first time one does not fit
// in 4. It returns the bytes used in buf (0 for an empty array) and
// whether the callback declared the whole field absent.
func encodeIntegerArray(cb Callback, args *Arg, buf []byte) (int, bool, error) {
	if len(buf) < 1 {
		return 0, false, ErrShortBuffer
	}
	var tmp [8]byte
	width := 4
	used := 1
	for index := 1; ; index++ {
		args.Index = index
		args.Value = tmp[:]
		sz := cb(args)
		if sz <= 0 {
			if sz == CbNil {
				break
			}
			if sz == CbNoArray {
				return 0, true, nil
			}
			return 0, false, ErrCallback
		}
		switch sz {
		case 4:
			if len(buf)-used < 8 {
				return 0, false, ErrShortBuffer
			}
			v := wire.Dword(tmp[:])
			if width == 8 {
				wire.PutQword(buf[used:], wire.Expand64(v))
				used += 8
			} else {
				wire.PutDword(buf[used:], v)
				used += 4
			}
		case 8:
			if width == 4 {
				// Rewrite the 4-byte elements already emitted as 8-byte,
				// sign-extended, from the back so nothing is clobbered.
				n := index - 1
				if len(buf) < 1+(n+1)*8 {
					return 0, false, ErrShortBuffer
				}
				for i := n - 1; i >= 0; i-- {
					v := wire.Dword(buf[1+i*4:])
					wire.PutQword(buf[1+i*8:], wire.Expand64(v))
				}
				width = 8
				used = 1 + n*8
			}
			if len(buf)-used < 8 {
				return 0, false, ErrShortBuffer
			}
			wire.PutQword(buf[used:], wire.Qword(tmp[:]))
			used += 8
		default:
			return 0, false, ErrCallback
		}
	}
	if used == 1 {
		// Zero elements: the width byte is omitted and the outer length
		// of 0 marks the empty array.
		return 0, false, nil
	}
	buf[0] = byte(width)
	return used, false, nil
}

// encodeArray encodes one array field as a length-prefixed blob at data.
// A return of 0 with no error means the field is absent and gets no slot.
func encodeArray(cb Callback, args *Arg, data []byte) (int, error) {
	if len(data) < wire.SizeLength {
		return 0, ErrShortBuffer
	}
	buf := data[wire.SizeLength:]
	used := 0
	switch args.Kind {
	case KindInteger:
		sz, noArray, err := encodeIntegerArray(cb, args, buf)
		if err != nil {
			return 0, err
		}
		if noArray {
			return 0, nil
		}
		used = sz
	case KindBoolean:
		var tmp [8]byte
		for index := 1; ; index++ {
			args.Index = index
			args.Value = tmp[:]
			sz := cb(args)
			if sz < 0 {
				if sz == CbNil {
					break
				}
				if sz == CbNoArray {
					return 0, nil
				}
				return 0, ErrCallback
			}
			if used >= len(buf) {
				return 0, ErrShortBuffer
			}
			if wire.Dword(tmp[:]) != 0 {
				buf[used] = 1
			} else {
				buf[used] = 0
			}
			used++
		}
	default:
		// Strings and structs: a run of length-prefixed elements.
		for index := 1; ; index++ {
			if len(buf)-used < wire.SizeLength {
				return 0, ErrShortBuffer
			}
			args.Index = index
			args.Value = buf[used+wire.SizeLength:]
			sz := cb(args)
			if sz < 0 {
				if sz == CbNil {
					break
				}
				if sz == CbNoArray {
					return 0, nil
				}
				return 0, ErrCallback
			}
			if sz > len(buf)-used-wire.SizeLength {
				return 0, ErrCallback
			}
			fillSize(buf[used:], sz)
			used += wire.SizeLength + sz
		}
	}
	return fillSize(data, used), nil
}

// Encode serializes one value of this type into dst, pulling field values
// from the host through cb.
//
// It returns the number of bytes written. If dst is too small the error is
// [ErrShortBuffer]; double the buffer and retry. [EncodeAppend] wraps that
// loop.
func (t *Type) Encode(dst []byte, cb Callback) (int, error) {
	headerSz := wire.SizeHeader + t.maxn*wire.SizeField
	if len(dst) < headerSz {
		return 0, ErrShortBuffer
	}
	data := headerSz
	index := 0
	lasttag := -1
	var args Arg
	for i := range t.fields {
		f := &t.fields[i]
		args = Arg{
			TagName:   f.Name,
			TagID:     f.Tag,
			Kind:      f.Kind,
			Subtype:   f.Subtype,
			MainIndex: f.Key,
			Extra:     f.Extra,
		}
		value := 0
		sz := 0
		var err error
		if f.Array {
			sz, err = encodeArray(cb, &args, dst[data:])
		} else {
			switch f.Kind {
			case KindInteger, KindBoolean:
				var tmp [8]byte
				args.Value = tmp[:]
				n := cb(&args)
				if n == CbNil {
					continue
				}
				switch n {
				case 4:
					v := wire.Dword(tmp[:])
					if v < inlineLimit {
						value = int(v+1) * 2
						sz = 2 // any positive number: the slot carries the value
					} else {
						sz, err = encodeUint32(v, dst[data:])
					}
				case 8:
					sz, err = encodeUint64(wire.Qword(tmp[:]), dst[data:])
				default:
					return 0, ErrCallback
				}
			case KindString, KindStruct:
				sz, err = encodeObject(cb, &args, dst[data:])
			}
		}
		if err != nil {
			return 0, err
		}
		if sz > 0 {
			if value == 0 {
				data += sz
			}
			record := wire.SizeHeader + index*wire.SizeField
			if skip := f.Tag - lasttag - 1; skip > 0 {
				// A gap in the tag sequence costs one odd-valued slot.
				skip = (skip-1)*2 + 1
				if skip > 0xffff {
					return 0, errAt(errCodeSlotRange, record)
				}
				wire.PutWord(dst[record:], uint16(skip))
				index++
				record += wire.SizeField
			}
			wire.PutWord(dst[record:], uint16(value))
			index++
			lasttag = f.Tag
		}
	}
	wire.PutWord(dst, uint16(index))

	dataSz := data - headerSz
	if index != t.maxn {
		// Fewer slots used than reserved: pull the data region left.
		copy(dst[wire.SizeHeader+index*wire.SizeField:], dst[headerSz:headerSz+dataSz])
	}
	return wire.SizeHeader + index*wire.SizeField + dataSz, nil
}

// MaxEncodeSize caps the retry growth of [EncodeAppend] and
// [Type.EncodeMap].
const MaxEncodeSize = 0x1000000

// EncodeAppend encodes one value of this type and appends it to dst,
// growing the scratch buffer as needed up to [MaxEncodeSize]. Since an
// undersized attempt is thrown away, cb must be restartable: it will be
// invoked from the first field again on retry.
func (t *Type) EncodeAppend(dst []byte, cb Callback) ([]byte, error) {
	sz := 256
	for {
		buf := make([]byte, sz)
		n, err := t.Encode(buf, cb)
		switch {
		case err == nil:
			return append(dst, buf[:n]...), nil
		case !errors.Is(err, ErrShortBuffer):
			return dst, err
		case sz >= MaxEncodeSize:
			return dst, errAt(errCodeTooLarge, sz)
		}
		sz *= 2
	}
}
