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

// The bundle is encoded in the same tag-value layout the codec produces for
// user messages; the schema describes itself. The parser below walks that
// layout directly: every record is a 2-byte field count, one 2-byte slot
// per field, then a data region holding one length-prefixed blob per slot
// whose value is zero.

// bundleParser carries the schema under construction and the original
// input, so errors can report absolute offsets.
type bundleParser struct {
	s   *Schema
	src []byte
}

func (p *bundleParser) off(rest []byte) int {
	return len(p.src) - len(rest)
}

// structFields validates the record at the head of chunk and returns its
// slot count, or -1 if the record (slots or data region) is malformed.
func structFields(chunk []byte) int {
	if len(chunk) < wire.SizeLength {
		return -1
	}
	fn := int(wire.Word(chunk))
	header := wire.SizeHeader + wire.SizeField*fn
	if len(chunk) < header {
		return -1
	}
	slots := chunk[wire.SizeHeader:]
	data := chunk[header:]
	for i := 0; i < fn; i++ {
		if wire.Word(slots[i*wire.SizeField:]) != 0 {
			continue
		}
		if len(data) < wire.SizeLength {
			return -1
		}
		dsz := int(wire.Dword(data))
		if len(data) < wire.SizeLength+dsz {
			return -1
		}
		data = data[wire.SizeLength+dsz:]
	}
	return fn
}

// countArray counts the length-prefixed items inside the blob at the head
// of stream, or returns -1 if the items do not tile the blob exactly.
func countArray(stream []byte) int {
	if len(stream) < wire.SizeLength {
		return -1
	}
	length := int(wire.Dword(stream))
	stream = stream[wire.SizeLength:]
	if len(stream) < length {
		return -1
	}
	n := 0
	for length > 0 {
		if length < wire.SizeLength {
			return -1
		}
		nsz := int(wire.Dword(stream)) + wire.SizeLength
		if nsz > length {
			return -1
		}
		n++
		stream = stream[nsz:]
		length -= nsz
	}
	return n
}

// importString interns the length-prefixed string at the head of stream.
func (p *bundleParser) importString(stream []byte) (string, bool) {
	if len(stream) < wire.SizeLength {
		return "", false
	}
	sz := int(wire.Dword(stream))
	if len(stream) < wire.SizeLength+sz {
		return "", false
	}
	return p.s.arena.Intern(stream[wire.SizeLength : wire.SizeLength+sz]), true
}

func pow10(n int) int {
	r := 1
	for ; n > 0; n-- {
		r *= 10
	}
	return r
}

// importField parses one field record and returns the remainder of the
// field array.
func (p *bundleParser) importField(f *Field, stream []byte) ([]byte, error) {
	f.Tag = -1
	f.Key = -1
	kind := -1

	if len(stream) < wire.SizeLength {
		return nil, errAt(errCodeTruncated, p.off(stream))
	}
	sz := int(wire.Dword(stream))
	if len(stream) < wire.SizeLength+sz {
		return nil, errAt(errCodeTruncated, p.off(stream))
	}
	body := stream[wire.SizeLength : wire.SizeLength+sz]
	rest := stream[wire.SizeLength+sz:]

	fn := structFields(body)
	if fn < 0 {
		return nil, errAt(errCodeBundle, p.off(stream))
	}
	slots := body[wire.SizeHeader:]
	data := body[wire.SizeHeader+fn*wire.SizeField:]

	tag := -1
	for i := 0; i < fn; i++ {
		v := int(wire.Word(slots[i*wire.SizeField:]))
		tag++
		if v&1 != 0 {
			tag += v / 2
			continue
		}
		if tag == 0 {
			// Name is the only blob-valued attribute of a field record.
			if v != 0 {
				return nil, errAt(errCodeBundle, p.off(stream))
			}
			name, ok := p.importString(data)
			if !ok {
				return nil, errAt(errCodeTruncated, p.off(stream))
			}
			f.Name = name
			continue
		}
		if v == 0 {
			return nil, errAt(errCodeBundle, p.off(stream))
		}
		value := v/2 - 1
		switch tag {
		case 1: // buildin
			if value >= int(KindStruct) {
				return nil, errAt(errCodeBuiltin, p.off(stream))
			}
			kind = value
		case 2: // subtype index, or the kind-specific refinement
			switch {
			case kind == int(KindInteger):
				f.Extra = pow10(value)
			case kind == int(KindString):
				f.Extra = value
			default:
				if value >= len(p.s.types) {
					return nil, errAt(errCodeTypeIndex, p.off(stream))
				}
				if kind >= 0 {
					return nil, errAt(errCodeBundle, p.off(stream))
				}
				kind = int(KindStruct)
				f.Subtype = &p.s.types[value]
			}
		case 3: // tag
			f.Tag = value
		case 4: // array
			f.Array = value != 0
		case 5: // key
			f.Key = value
		default:
			return nil, errAt(errCodeBundle, p.off(stream))
		}
	}
	if f.Tag < 0 || kind < 0 || f.Name == "" {
		return nil, errAt(errCodeBundle, p.off(stream))
	}
	f.Kind = Kind(kind)
	return rest, nil
}

// importType parses one type record and returns the remainder of the type
// array.
func (p *bundleParser) importType(t *Type, stream []byte) ([]byte, error) {
	if len(stream) < wire.SizeLength {
		return nil, errAt(errCodeTruncated, p.off(stream))
	}
	sz := int(wire.Dword(stream))
	if len(stream) < wire.SizeLength+sz {
		return nil, errAt(errCodeTruncated, p.off(stream))
	}
	body := stream[wire.SizeLength : wire.SizeLength+sz]
	rest := stream[wire.SizeLength+sz:]

	// A type record has at most two fields, name and field array, and both
	// are blob-valued.
	fn := structFields(body)
	if fn <= 0 || fn > 2 {
		return nil, errAt(errCodeBundle, p.off(stream))
	}
	for i := 0; i < fn; i++ {
		if wire.Word(body[wire.SizeHeader+i*wire.SizeField:]) != 0 {
			return nil, errAt(errCodeBundle, p.off(stream))
		}
	}
	data := body[wire.SizeHeader+fn*wire.SizeField:]
	name, ok := p.importString(data)
	if !ok {
		return nil, errAt(errCodeTruncated, p.off(stream))
	}
	t.Name = name
	t.base = -1
	if fn == 1 {
		return rest, nil
	}

	fieldData := data[wire.SizeLength+int(wire.Dword(data)):]
	n := countArray(fieldData)
	if n < 0 {
		return nil, errAt(errCodeBundle, p.off(stream))
	}
	fieldData = fieldData[wire.SizeLength:]

	t.fields = make([]Field, n)
	maxn := n
	last := -1
	for i := 0; i < n; i++ {
		var err error
		fieldData, err = p.importField(&t.fields[i], fieldData)
		if err != nil {
			return nil, err
		}
		tag := t.fields[i].Tag
		if tag <= last {
			return nil, errAt(errCodeTagOrder, p.off(stream))
		}
		if tag > last+1 {
			// A hole in the tag sequence costs one skip slot on the wire.
			maxn++
		}
		last = tag
	}
	t.maxn = maxn
	if n > 0 {
		t.base = t.fields[0].Tag
		if t.fields[n-1].Tag-t.base+1 != n {
			t.base = -1
		}
	}
	return rest, nil
}

// importProtocol parses one protocol record and returns the remainder of
// the protocol array.
func (p *bundleParser) importProtocol(proto *Protocol, stream []byte) ([]byte, error) {
	if len(stream) < wire.SizeLength {
		return nil, errAt(errCodeTruncated, p.off(stream))
	}
	sz := int(wire.Dword(stream))
	if len(stream) < wire.SizeLength+sz {
		return nil, errAt(errCodeTruncated, p.off(stream))
	}
	body := stream[wire.SizeLength : wire.SizeLength+sz]
	rest := stream[wire.SizeLength+sz:]

	fn := structFields(body)
	if fn < 0 {
		return nil, errAt(errCodeBundle, p.off(stream))
	}
	slots := body[wire.SizeHeader:]
	data := body[wire.SizeHeader+fn*wire.SizeField:]

	proto.Tag = -1
	tag := -1
	for i := 0; i < fn; i++ {
		v := int(wire.Word(slots[i*wire.SizeField:]))
		tag++
		if v&1 != 0 {
			tag += v / 2
			continue
		}
		value := v/2 - 1
		switch tag {
		case 0: // name
			if value != -1 {
				return nil, errAt(errCodeBundle, p.off(stream))
			}
			name, ok := p.importString(data)
			if !ok {
				return nil, errAt(errCodeTruncated, p.off(stream))
			}
			proto.Name = name
		case 1: // tag
			if value < 0 {
				return nil, errAt(errCodeBundle, p.off(stream))
			}
			proto.Tag = value
		case 2: // request
			if value < 0 || value >= len(p.s.types) {
				return nil, errAt(errCodeTypeIndex, p.off(stream))
			}
			proto.Request = &p.s.types[value]
		case 3: // response
			if value < 0 || value >= len(p.s.types) {
				return nil, errAt(errCodeTypeIndex, p.off(stream))
			}
			proto.Response = &p.s.types[value]
		case 4: // confirm
			proto.Confirm = value > 0
		default:
			return nil, errAt(errCodeBundle, p.off(stream))
		}
	}
	if proto.Name == "" || proto.Tag < 0 {
		return nil, errAt(errCodeBundle, p.off(stream))
	}
	return rest, nil
}

// parse fills the schema from the top-level bundle record: field 0 is the
// type array, field 1 the protocol array.
func (p *bundleParser) parse() error {
	stream := p.src
	fn := structFields(stream)
	if fn < 0 || fn > 2 {
		return errAt(errCodeBundle, 0)
	}
	content := stream[wire.SizeHeader+fn*wire.SizeField:]

	var typeData, protocolData []byte
	for i := 0; i < fn; i++ {
		if wire.Word(stream[wire.SizeHeader+i*wire.SizeField:]) != 0 {
			return errAt(errCodeBundle, p.off(content))
		}
		n := countArray(content)
		if n < 0 {
			return errAt(errCodeBundle, p.off(content))
		}
		if i == 0 {
			typeData = content[wire.SizeLength:]
			p.s.types = make([]Type, n)
		} else {
			protocolData = content[wire.SizeLength:]
			p.s.protocols = make([]Protocol, n)
		}
		content = content[wire.SizeLength+int(wire.Dword(content)):]
	}

	for i := range p.s.types {
		var err error
		typeData, err = p.importType(&p.s.types[i], typeData)
		if err != nil {
			return err
		}
	}
	lastTag := -1
	for i := range p.s.protocols {
		var err error
		protocolData, err = p.importProtocol(&p.s.protocols[i], protocolData)
		if err != nil {
			return err
		}
		// Protocols are kept sorted by tag so lookup can binary-search.
		if p.s.protocols[i].Tag <= lastTag {
			return errAt(errCodeTagOrder, p.off(protocolData))
		}
		lastTag = p.s.protocols[i].Tag
	}
	return nil
}
