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
	"strings"
)

// Kind enumerates the value kinds a field can carry. The array dimension is
// tracked separately on [Field].
type Kind int

const (
	KindInteger Kind = iota
	KindBoolean
	KindString
	KindStruct
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindStruct:
		return "struct"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// String extra values: a string field is either text or a binary blob.
const (
	StringText   = 0
	StringBinary = 1
)

// Field is one field of a compiled [Type].
type Field struct {
	Name  string
	Tag   int
	Kind  Kind
	Array bool

	// Subtype is the referenced type of a struct field, nil otherwise.
	// It always points into the same [Schema].
	Subtype *Type

	// Key is the tag of the map-key field for a keyed struct array, -1 for
	// a plain sequence.
	Key int

	// Extra is 10^k for a decimal integer field (0 means plain integer),
	// and [StringText] or [StringBinary] for a string field.
	Extra int
}

// describe renders the field the way Dump prints it.
func (f *Field) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, "\t%s (%d) ", f.Name, f.Tag)
	if f.Array {
		sb.WriteByte('*')
	}
	switch {
	case f.Kind == KindStruct:
		sb.WriteString(f.Subtype.Name)
	case f.Kind == KindInteger && f.Extra > 0:
		fmt.Fprintf(sb, "decimal(%d)", f.Extra)
	case f.Kind == KindString && f.Extra == StringBinary:
		sb.WriteString("binary")
	default:
		sb.WriteString(f.Kind.String())
	}
	if f.Key >= 0 {
		fmt.Fprintf(sb, "[%d]", f.Key)
	}
	sb.WriteByte('\n')
}

// Type is a compiled user type. Types are owned by their [Schema]; they are
// immutable after compilation and safe for concurrent use.
type Type struct {
	Name string

	// fields, in ascending tag order.
	fields []Field

	// base is the first tag when tags are dense, enabling O(1) lookup;
	// -1 otherwise.
	base int

	// maxn is the worst-case number of header slots an encoded value of
	// this type needs: one per field plus one per gap in the tag sequence.
	maxn int
}

// Fields returns the type's fields in ascending tag order. The returned
// slice must not be modified.
func (t *Type) Fields() []Field {
	return t.fields
}

// FieldByTag returns the field with the given tag, or nil.
func (t *Type) FieldByTag(tag int) *Field {
	if t.base >= 0 {
		i := tag - t.base
		if i < 0 || i >= len(t.fields) {
			return nil
		}
		return &t.fields[i]
	}
	begin, end := 0, len(t.fields)
	for begin < end {
		mid := (begin + end) / 2
		f := &t.fields[mid]
		switch {
		case f.Tag == tag:
			return f
		case tag > f.Tag:
			begin = mid + 1
		default:
			end = mid
		}
	}
	return nil
}

// FieldByName returns the field with the given name, or nil.
func (t *Type) FieldByName(name string) *Field {
	for i := range t.fields {
		if t.fields[i].Name == name {
			return &t.fields[i]
		}
	}
	return nil
}

// Protocol maps an RPC tag to its request and response types.
type Protocol struct {
	Name string
	Tag  int

	// Request and Response may each be nil. A nil Response with Confirm
	// set means the peer must still acknowledge with an empty body; a nil
	// Response without Confirm means no reply is expected.
	Request  *Type
	Response *Type
	Confirm  bool
}

// ExpectsResponse reports whether a caller should wait for a reply,
// either a typed response or a bare confirmation.
func (p *Protocol) ExpectsResponse() bool {
	return p.Response != nil || p.Confirm
}
