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

	"github.com/czlc/sproto/internal/arena"
)

// Schema is a compiled schema bundle: a set of user types and a set of RPC
// protocols.
//
// A Schema is immutable after [NewSchema] returns and may be shared freely
// across goroutines; every codec invocation only reads it.
type Schema struct {
	arena     arena.Arena
	types     []Type
	protocols []Protocol
}

// NewSchema compiles a binary schema bundle, as produced by the schema
// compiler, into its in-memory form.
//
// This is a one-time cost per schema; the result should be cached and
// reused for every encode and decode against it.
func NewSchema(bundle []byte) (*Schema, error) {
	s := new(Schema)
	p := &bundleParser{s: s, src: bundle}
	if err := p.parse(); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

// Release drops all memory owned by the schema at once. Types and
// protocols obtained from the schema must not be used afterwards.
func (s *Schema) Release() {
	s.types = nil
	s.protocols = nil
	s.arena.Release()
}

// Types returns the schema's types in bundle order. The returned slice
// must not be modified.
func (s *Schema) Types() []Type {
	return s.types
}

// Protocols returns the schema's protocols in ascending tag order. The
// returned slice must not be modified.
func (s *Schema) Protocols() []Protocol {
	return s.protocols
}

// Type returns the named type, or nil. Types are few, so this is a linear
// scan.
func (s *Schema) Type(name string) *Type {
	for i := range s.types {
		if s.types[i].Name == name {
			return &s.types[i]
		}
	}
	return nil
}

// ProtocolByTag returns the protocol with the given tag, or nil.
func (s *Schema) ProtocolByTag(tag int) *Protocol {
	begin, end := 0, len(s.protocols)
	for begin < end {
		mid := (begin + end) / 2
		p := &s.protocols[mid]
		switch {
		case p.Tag == tag:
			return p
		case tag > p.Tag:
			begin = mid + 1
		default:
			end = mid
		}
	}
	return nil
}

// ProtocolByName returns the named protocol, or nil.
func (s *Schema) ProtocolByName(name string) *Protocol {
	for i := range s.protocols {
		if s.protocols[i].Name == name {
			return &s.protocols[i]
		}
	}
	return nil
}

// Dump renders the schema as human-readable text for diagnostics.
func (s *Schema) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %d types ===\n", len(s.types))
	for i := range s.types {
		t := &s.types[i]
		sb.WriteString(t.Name)
		sb.WriteByte('\n')
		for j := range t.fields {
			t.fields[j].describe(&sb)
		}
	}
	fmt.Fprintf(&sb, "=== %d protocols ===\n", len(s.protocols))
	for i := range s.protocols {
		p := &s.protocols[i]
		fmt.Fprintf(&sb, "\t%s (%d)", p.Name, p.Tag)
		if p.Request != nil {
			fmt.Fprintf(&sb, " request:%s", p.Request.Name)
		}
		switch {
		case p.Response != nil:
			fmt.Fprintf(&sb, " response:%s", p.Response.Name)
		case p.Confirm:
			sb.WriteString(" response nil")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
