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

// testSchema compiles the schema shared by most tests in this package.
func testSchema(t *testing.T) *sproto.Schema {
	t.Helper()
	bundle, err := sproto.NewSchemaBuilder().
		Type("Person",
			sproto.String("name", 0),
			sproto.Integer("age", 1)).
		Type("Item",
			sproto.Integer("id", 0),
			sproto.String("label", 1)).
		Type("Bag",
			sproto.Struct("items", 0, "Item").WithKey(0),
			sproto.Integer("ids", 3).AsArray(),
			sproto.Boolean("flags", 4).AsArray(),
			sproto.String("tags", 5).AsArray(),
			sproto.Decimal("price", 7, 2),
			sproto.Binary("payload", 8),
			sproto.Struct("owner", 9, "Person")).
		Type("Node",
			sproto.Integer("value", 0),
			sproto.Struct("next", 1, "Node")).
		Protocol(sproto.ProtocolSpec{Name: "get", Tag: 1, Request: "Person", Response: "Bag"}).
		Protocol(sproto.ProtocolSpec{Name: "put", Tag: 2, Request: "Bag", Confirm: true}).
		Protocol(sproto.ProtocolSpec{Name: "ping", Tag: 10}).
		Build()
	require.NoError(t, err)

	schema, err := sproto.NewSchema(bundle)
	require.NoError(t, err)
	t.Cleanup(schema.Release)
	return schema
}

func TestSchemaLookups(t *testing.T) {
	t.Parallel()
	s := testSchema(t)

	person := s.Type("Person")
	require.NotNil(t, person)
	assert.Equal(t, "Person", person.Name)
	assert.Nil(t, s.Type("Unknown"))

	name := person.FieldByTag(0)
	require.NotNil(t, name)
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, sproto.KindString, name.Kind)
	assert.Nil(t, person.FieldByTag(2))
	assert.Nil(t, person.FieldByTag(-1))

	// Bag has a tag gap, so lookup falls back to binary search.
	bag := s.Type("Bag")
	require.NotNil(t, bag)
	for _, tag := range []int{0, 3, 4, 5, 7, 8, 9} {
		require.NotNil(t, bag.FieldByTag(tag), "tag %d", tag)
	}
	for _, tag := range []int{1, 2, 6, 10} {
		assert.Nil(t, bag.FieldByTag(tag), "tag %d", tag)
	}

	price := bag.FieldByName("price")
	require.NotNil(t, price)
	assert.Equal(t, 100, price.Extra)

	items := bag.FieldByTag(0)
	assert.True(t, items.Array)
	assert.Equal(t, 0, items.Key)
	require.NotNil(t, items.Subtype)
	assert.Equal(t, "Item", items.Subtype.Name)
}

func TestSchemaProtocols(t *testing.T) {
	t.Parallel()
	s := testSchema(t)

	get := s.ProtocolByTag(1)
	require.NotNil(t, get)
	assert.Equal(t, "get", get.Name)
	assert.Equal(t, "Person", get.Request.Name)
	assert.Equal(t, "Bag", get.Response.Name)
	assert.True(t, get.ExpectsResponse())

	put := s.ProtocolByName("put")
	require.NotNil(t, put)
	assert.Equal(t, 2, put.Tag)
	assert.Nil(t, put.Response)
	assert.True(t, put.Confirm)
	assert.True(t, put.ExpectsResponse(), "confirm protocols expect an empty ack")

	ping := s.ProtocolByTag(10)
	require.NotNil(t, ping)
	assert.Nil(t, ping.Request)
	assert.False(t, ping.ExpectsResponse())

	assert.Nil(t, s.ProtocolByTag(3))
	assert.Nil(t, s.ProtocolByName("nope"))
}

func TestSchemaSelfReference(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	node := s.Type("Node")
	require.NotNil(t, node)
	next := node.FieldByTag(1)
	require.NotNil(t, next)
	assert.Same(t, node, next.Subtype)
}

func TestSchemaDump(t *testing.T) {
	t.Parallel()
	s := testSchema(t)
	dump := s.Dump()
	assert.Contains(t, dump, "=== 4 types ===")
	assert.Contains(t, dump, "\tname (0) string\n")
	assert.Contains(t, dump, "\titems (0) *Item[0]\n")
	assert.Contains(t, dump, "\tids (3) *integer\n")
	assert.Contains(t, dump, "\tprice (7) decimal(100)\n")
	assert.Contains(t, dump, "\tpayload (8) binary\n")
	assert.Contains(t, dump, "=== 3 protocols ===")
	assert.Contains(t, dump, "\tget (1) request:Person response:Bag\n")
	assert.Contains(t, dump, "\tput (2) request:Bag response nil\n")
}

func TestNewSchemaRejectsMalformedBundles(t *testing.T) {
	t.Parallel()

	valid, err := sproto.NewSchemaBuilder().
		Type("T", sproto.Integer("a", 0)).
		Build()
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		for i := 1; i < len(valid); i++ {
			_, err := sproto.NewSchema(valid[:i])
			assert.Error(t, err, "prefix of %d bytes", i)
		}
	})
	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := sproto.NewSchema(nil)
		assert.Error(t, err)
	})
	t.Run("corrupt slot", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte(nil), valid...)
		// The top-level slots must all be blob-valued.
		bad[2] = 0x02
		_, err := sproto.NewSchema(bad)
		assert.Error(t, err)
	})
}
