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
	"fmt"
	"sort"

	"github.com/czlc/sproto/internal/wire"
)

// SchemaBuilder assembles a binary schema bundle programmatically. It is
// the back end a schema compiler targets, and what tests use to make
// schemas without shipping pre-built bundles.
//
//	bundle, err := sproto.NewSchemaBuilder().
//		Type("Person",
//			sproto.String("name", 0),
//			sproto.Integer("age", 1)).
//		Build()
type SchemaBuilder struct {
	types     []typeSpec
	protocols []ProtocolSpec
}

type typeSpec struct {
	name   string
	fields []FieldSpec
}

// FieldSpec describes one field of a type under construction. Use the
// constructors ([Integer], [String], [Struct], ...) rather than filling it
// in by hand; they establish the invariant Key == -1 for plain fields.
type FieldSpec struct {
	Name string
	Tag  int
	Kind Kind

	// Decimals is the number of fractional digits of a decimal integer
	// field; 0 means a plain integer.
	Decimals int

	// Binary marks a string field as a binary blob.
	Binary bool

	// TypeName names the element type of a struct field.
	TypeName string

	Array bool

	// Key is the map-key tag of a keyed struct array, -1 otherwise.
	Key int
}

// Integer describes a plain integer field.
func Integer(name string, tag int) FieldSpec {
	return FieldSpec{Name: name, Tag: tag, Kind: KindInteger, Key: -1}
}

// Decimal describes a fixed-point integer field with the given number of
// fractional digits.
func Decimal(name string, tag, digits int) FieldSpec {
	return FieldSpec{Name: name, Tag: tag, Kind: KindInteger, Decimals: digits, Key: -1}
}

// Boolean describes a boolean field.
func Boolean(name string, tag int) FieldSpec {
	return FieldSpec{Name: name, Tag: tag, Kind: KindBoolean, Key: -1}
}

// String describes a text string field.
func String(name string, tag int) FieldSpec {
	return FieldSpec{Name: name, Tag: tag, Kind: KindString, Key: -1}
}

// Binary describes a binary blob field.
func Binary(name string, tag int) FieldSpec {
	return FieldSpec{Name: name, Tag: tag, Kind: KindString, Binary: true, Key: -1}
}

// Struct describes a field holding a value of another type in the same
// schema.
func Struct(name string, tag int, typeName string) FieldSpec {
	return FieldSpec{Name: name, Tag: tag, Kind: KindStruct, TypeName: typeName, Key: -1}
}

// AsArray returns a copy of the field marked as an array.
func (f FieldSpec) AsArray() FieldSpec {
	f.Array = true
	return f
}

// WithKey returns a copy of the (struct array) field keyed by the element
// field with the given tag, turning the array into a map on decode.
func (f FieldSpec) WithKey(tag int) FieldSpec {
	f.Array = true
	f.Key = tag
	return f
}

// ProtocolSpec describes one RPC protocol under construction. Request and
// Response name types of the same schema; either may be empty.
type ProtocolSpec struct {
	Name     string
	Tag      int
	Request  string
	Response string
	Confirm  bool
}

// NewSchemaBuilder returns an empty builder.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{}
}

// Type adds a type with the given fields. Fields may be listed in any
// order; they are sorted by tag.
func (b *SchemaBuilder) Type(name string, fields ...FieldSpec) *SchemaBuilder {
	b.types = append(b.types, typeSpec{name: name, fields: fields})
	return b
}

// Protocol adds an RPC protocol.
func (b *SchemaBuilder) Protocol(p ProtocolSpec) *SchemaBuilder {
	b.protocols = append(b.protocols, p)
	return b
}

// The largest value a header slot can carry inline.
const maxInline = 0x7ffe

// recordWriter assembles one record: slots with automatic skip markers for
// tag gaps, and the data region for blob-valued slots.
type recordWriter struct {
	slots   []uint16
	data    []byte
	lastTag int
}

func newRecordWriter() *recordWriter {
	return &recordWriter{lastTag: -1}
}

func (w *recordWriter) advance(tag int) error {
	if gap := tag - w.lastTag - 1; gap > 0 {
		skip := (gap-1)*2 + 1
		if skip > 0xffff {
			return fmt.Errorf("sproto: tag gap before %d too large", tag)
		}
		w.slots = append(w.slots, uint16(skip))
	}
	w.lastTag = tag
	return nil
}

func (w *recordWriter) putInline(tag, v int) error {
	if v < -1 || v > maxInline {
		return fmt.Errorf("sproto: value %d does not fit a header slot", v)
	}
	if err := w.advance(tag); err != nil {
		return err
	}
	w.slots = append(w.slots, uint16((v+1)*2))
	return nil
}

func (w *recordWriter) putBlob(tag int, blob []byte) error {
	if err := w.advance(tag); err != nil {
		return err
	}
	w.slots = append(w.slots, 0)
	var size [wire.SizeLength]byte
	wire.PutDword(size[:], uint32(len(blob)))
	w.data = append(w.data, size[:]...)
	w.data = append(w.data, blob...)
	return nil
}

// encode lays the record out as field count, slots, data region.
func (w *recordWriter) encode() []byte {
	out := make([]byte, wire.SizeHeader+len(w.slots)*wire.SizeField+len(w.data))
	wire.PutWord(out, uint16(len(w.slots)))
	for i, s := range w.slots {
		wire.PutWord(out[wire.SizeHeader+i*wire.SizeField:], s)
	}
	copy(out[wire.SizeHeader+len(w.slots)*wire.SizeField:], w.data)
	return out
}

// itemArray wraps records as the payload of an array blob: one
// length-prefixed item per record.
func itemArray(items [][]byte) []byte {
	var out []byte
	var size [wire.SizeLength]byte
	for _, item := range items {
		wire.PutDword(size[:], uint32(len(item)))
		out = append(out, size[:]...)
		out = append(out, item...)
	}
	return out
}

func (b *SchemaBuilder) encodeField(f FieldSpec, typeIndex map[string]int) ([]byte, error) {
	w := newRecordWriter()
	if err := w.putBlob(0, []byte(f.Name)); err != nil {
		return nil, err
	}
	switch f.Kind {
	case KindStruct:
		idx, ok := typeIndex[f.TypeName]
		if !ok {
			return nil, fmt.Errorf("sproto: field %s references unknown type %q", f.Name, f.TypeName)
		}
		if err := w.putInline(2, idx); err != nil {
			return nil, err
		}
	case KindInteger:
		if err := w.putInline(1, int(f.Kind)); err != nil {
			return nil, err
		}
		if f.Decimals > 0 {
			if err := w.putInline(2, f.Decimals); err != nil {
				return nil, err
			}
		}
	case KindString:
		if err := w.putInline(1, int(f.Kind)); err != nil {
			return nil, err
		}
		if f.Binary {
			if err := w.putInline(2, StringBinary); err != nil {
				return nil, err
			}
		}
	default:
		if err := w.putInline(1, int(f.Kind)); err != nil {
			return nil, err
		}
	}
	if err := w.putInline(3, f.Tag); err != nil {
		return nil, err
	}
	if f.Array {
		if err := w.putInline(4, 1); err != nil {
			return nil, err
		}
	}
	if f.Key >= 0 {
		if !f.Array || f.Kind != KindStruct {
			return nil, fmt.Errorf("sproto: field %s: key is only valid on struct arrays", f.Name)
		}
		if err := w.putInline(5, f.Key); err != nil {
			return nil, err
		}
	}
	return w.encode(), nil
}

func (b *SchemaBuilder) encodeType(t typeSpec, typeIndex map[string]int) ([]byte, error) {
	fields := append([]FieldSpec(nil), t.fields...)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Tag < fields[j].Tag })

	var records [][]byte
	last := -1
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("sproto: type %s has an unnamed field", t.name)
		}
		if f.Tag < 0 || f.Tag == last {
			return nil, fmt.Errorf("sproto: type %s: duplicate or negative tag %d", t.name, f.Tag)
		}
		last = f.Tag
		rec, err := b.encodeField(f, typeIndex)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	w := newRecordWriter()
	if err := w.putBlob(0, []byte(t.name)); err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if err := w.putBlob(1, itemArray(records)); err != nil {
			return nil, err
		}
	}
	return w.encode(), nil
}

func (b *SchemaBuilder) encodeProtocol(p ProtocolSpec, typeIndex map[string]int) ([]byte, error) {
	w := newRecordWriter()
	if err := w.putBlob(0, []byte(p.Name)); err != nil {
		return nil, err
	}
	if err := w.putInline(1, p.Tag); err != nil {
		return nil, err
	}
	if p.Request != "" {
		idx, ok := typeIndex[p.Request]
		if !ok {
			return nil, fmt.Errorf("sproto: protocol %s: unknown request type %q", p.Name, p.Request)
		}
		if err := w.putInline(2, idx); err != nil {
			return nil, err
		}
	}
	if p.Response != "" {
		idx, ok := typeIndex[p.Response]
		if !ok {
			return nil, fmt.Errorf("sproto: protocol %s: unknown response type %q", p.Name, p.Response)
		}
		if err := w.putInline(3, idx); err != nil {
			return nil, err
		}
	}
	if p.Confirm {
		if p.Response != "" {
			return nil, fmt.Errorf("sproto: protocol %s: confirm is only valid without a response", p.Name)
		}
		if err := w.putInline(4, 1); err != nil {
			return nil, err
		}
	}
	return w.encode(), nil
}

// Build assembles and validates the bundle.
func (b *SchemaBuilder) Build() ([]byte, error) {
	typeIndex := make(map[string]int, len(b.types))
	for i, t := range b.types {
		if t.name == "" {
			return nil, fmt.Errorf("sproto: unnamed type")
		}
		if _, dup := typeIndex[t.name]; dup {
			return nil, fmt.Errorf("sproto: duplicate type %q", t.name)
		}
		typeIndex[t.name] = i
	}

	var typeRecords [][]byte
	for _, t := range b.types {
		rec, err := b.encodeType(t, typeIndex)
		if err != nil {
			return nil, err
		}
		typeRecords = append(typeRecords, rec)
	}

	protocols := append([]ProtocolSpec(nil), b.protocols...)
	sort.Slice(protocols, func(i, j int) bool { return protocols[i].Tag < protocols[j].Tag })
	var protocolRecords [][]byte
	seen := map[string]bool{}
	last := -1
	for _, p := range protocols {
		if p.Name == "" || seen[p.Name] {
			return nil, fmt.Errorf("sproto: unnamed or duplicate protocol %q", p.Name)
		}
		seen[p.Name] = true
		if p.Tag < 0 || p.Tag == last {
			return nil, fmt.Errorf("sproto: protocol %s: duplicate or negative tag %d", p.Name, p.Tag)
		}
		last = p.Tag
		rec, err := b.encodeProtocol(p, typeIndex)
		if err != nil {
			return nil, err
		}
		protocolRecords = append(protocolRecords, rec)
	}

	w := newRecordWriter()
	if err := w.putBlob(0, itemArray(typeRecords)); err != nil {
		return nil, err
	}
	if len(protocolRecords) > 0 {
		if err := w.putBlob(1, itemArray(protocolRecords)); err != nil {
			return nil, err
		}
	}
	return w.encode(), nil
}

// MustBuild is Build for static schemas known to be valid; it panics on
// error.
func (b *SchemaBuilder) MustBuild() []byte {
	bundle, err := b.Build()
	if err != nil {
		panic(err)
	}
	return bundle
}
