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

// Package sproto is a schema-driven binary serialization engine for
// structured messages, with an RPC protocol registry and a zero-run byte
// packer for the sparse messages the format tends to produce.
//
// To use this package, compile a [Schema] from a binary schema bundle with
// [NewSchema] (or assemble one with [SchemaBuilder]). This is a one-time
// cost; the schema is immutable afterwards and may be shared across
// goroutines. Each [Type] of the schema then drives the codec:
//
//   - [Type.Encode] and [Type.Decode] run against a [Callback], keeping
//     the engine agnostic to how the host represents values.
//   - [Type.EncodeMap] and [Type.DecodeMap] are a ready-made host over
//     plain map[string]any values.
//
// Encoded messages are a compact tag-value form: small integers and
// booleans ride inside the 16-bit header slots, everything else lives in a
// length-prefixed data region. Fields absent from a message cost nothing,
// and tags unknown to the decoder are skipped, so adding fields to a
// schema does not break old readers.
//
// [Pack] and [Unpack] implement the independent 0-pack transform, which
// elides the zero runs of an encoded stream; packing is optional and
// composes with any message.
package sproto
