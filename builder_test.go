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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czlc/sproto"
)

func TestBuilderValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		builder *sproto.SchemaBuilder
		wantErr string
	}{
		{
			name: "duplicate type",
			builder: sproto.NewSchemaBuilder().
				Type("T", sproto.Integer("a", 0)).
				Type("T", sproto.Integer("a", 0)),
			wantErr: "duplicate type",
		},
		{
			name: "duplicate tag",
			builder: sproto.NewSchemaBuilder().
				Type("T", sproto.Integer("a", 1), sproto.Integer("b", 1)),
			wantErr: "duplicate or negative tag",
		},
		{
			name: "unknown struct type",
			builder: sproto.NewSchemaBuilder().
				Type("T", sproto.Struct("x", 0, "Missing")),
			wantErr: "unknown type",
		},
		{
			name: "key on a scalar field",
			builder: sproto.NewSchemaBuilder().
				Type("T", sproto.Integer("a", 0).WithKey(0)),
			wantErr: "key is only valid on struct arrays",
		},
		{
			name: "unknown request type",
			builder: sproto.NewSchemaBuilder().
				Protocol(sproto.ProtocolSpec{Name: "p", Tag: 0, Request: "Missing"}),
			wantErr: "unknown request type",
		},
		{
			name: "confirm with response",
			builder: sproto.NewSchemaBuilder().
				Type("R", sproto.Integer("a", 0)).
				Protocol(sproto.ProtocolSpec{Name: "p", Tag: 0, Response: "R", Confirm: true}),
			wantErr: "confirm is only valid without a response",
		},
		{
			name: "duplicate protocol tag",
			builder: sproto.NewSchemaBuilder().
				Protocol(sproto.ProtocolSpec{Name: "a", Tag: 3}).
				Protocol(sproto.ProtocolSpec{Name: "b", Tag: 3}),
			wantErr: "duplicate or negative tag",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.builder.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuilderFieldOrderNormalized(t *testing.T) {
	t.Parallel()
	// Fields listed out of tag order come out sorted in the bundle.
	bundle, err := sproto.NewSchemaBuilder().
		Type("T",
			sproto.Integer("b", 5),
			sproto.Integer("a", 1)).
		Build()
	require.NoError(t, err)

	s, err := sproto.NewSchema(bundle)
	require.NoError(t, err)
	defer s.Release()

	fields := s.Type("T").Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Name)
	assert.Equal(t, "b", fields[1].Name)
}

func TestBuilderProtocolOrderNormalized(t *testing.T) {
	t.Parallel()
	bundle, err := sproto.NewSchemaBuilder().
		Protocol(sproto.ProtocolSpec{Name: "z", Tag: 9}).
		Protocol(sproto.ProtocolSpec{Name: "a", Tag: 1}).
		Build()
	require.NoError(t, err)

	s, err := sproto.NewSchema(bundle)
	require.NoError(t, err)
	defer s.Release()

	protos := s.Protocols()
	require.Len(t, protos, 2)
	assert.Equal(t, 1, protos[0].Tag)
	assert.Equal(t, 9, protos[1].Tag)
}

func TestBuilderEmptyType(t *testing.T) {
	t.Parallel()
	bundle, err := sproto.NewSchemaBuilder().Type("Empty").Build()
	require.NoError(t, err)

	s, err := sproto.NewSchema(bundle)
	require.NoError(t, err)
	defer s.Release()

	ty := s.Type("Empty")
	require.NotNil(t, ty)
	assert.Empty(t, ty.Fields())

	msg, err := ty.EncodeMap(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00}, msg)
}
