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

// Package arena provides a chunked bump allocator for schema memory.
//
// The names interned while compiling a schema are carved out of one arena
// and released together; nothing in the arena is freed individually. The
// schema's type, field and protocol tables are ordinary Go slices and are
// not allocated from the arena. The arena hands out byte slices aligned to
// 8 bytes, backed by a singly-linked list of chunks, so releasing it is a
// single pointer drop regardless of how many strings it interned.
package arena

// ChunkSize is the capacity of a standard chunk. Requests at or above this
// size get a dedicated chunk of their own.
const ChunkSize = 1000

const align = 8

type chunk struct {
	next *chunk
	buf  []byte
}

// Arena is a bump allocator backed by a chunk list.
//
// A zero Arena is empty and ready to use.
type Arena struct {
	head    *chunk
	current *chunk
	used    int
}

// newChunk allocates a chunk of sz bytes and links it at the head.
func (a *Arena) newChunk(sz int) *chunk {
	c := &chunk{next: a.head, buf: make([]byte, sz)}
	a.head = c
	return c
}

// Alloc returns a zeroed slice of exactly sz bytes, aligned to 8 bytes and
// valid until [Arena.Release].
func (a *Arena) Alloc(sz int) []byte {
	n := (sz + align - 1) &^ (align - 1)
	if n >= ChunkSize {
		return a.newChunk(n).buf[:sz]
	}
	if a.current == nil {
		a.current = a.newChunk(ChunkSize)
		a.used = 0
	}
	if a.used+n <= ChunkSize {
		buf := a.current.buf[a.used : a.used+sz]
		a.used += n
		return buf
	}
	if n >= a.used {
		// The request is at least as large as what the current chunk
		// already holds; keep that chunk for smaller requests and give
		// this one a dedicated chunk.
		return a.newChunk(n).buf[:sz]
	}
	a.current = a.newChunk(ChunkSize)
	a.used = n
	return a.current.buf[:sz]
}

// Intern copies b into the arena and returns it as a string.
func (a *Arena) Intern(b []byte) string {
	buf := a.Alloc(len(b))
	copy(buf, b)
	return string(buf)
}

// Chunks reports how many chunks the arena currently holds.
func (a *Arena) Chunks() int {
	n := 0
	for c := a.head; c != nil; c = c.next {
		n++
	}
	return n
}

// Release drops every chunk at once. Slices returned by Alloc must not be
// used after Release.
func (a *Arena) Release() {
	a.head = nil
	a.current = nil
	a.used = 0
}
