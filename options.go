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

// DefaultMaxDepth is the nesting depth at which [Type.EncodeMap] and
// [Type.DecodeMap] give up on a message.
const DefaultMaxDepth = 64

type codecOptions struct {
	maxDepth int
	maxSize  int
}

func newCodecOptions(opts []Option) codecOptions {
	o := codecOptions{
		maxDepth: DefaultMaxDepth,
		maxSize:  MaxEncodeSize,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

// Option is a configuration setting for [Type.EncodeMap] and
// [Type.DecodeMap].
type Option struct{ apply func(*codecOptions) }

// WithMaxDepth sets the maximum nesting depth for dynamic encode and
// decode.
//
// Setting a large value enables potential DoS vectors on hostile input.
func WithMaxDepth(depth int) Option {
	return Option{func(o *codecOptions) { o.maxDepth = depth }}
}

// WithMaxSize caps the encode buffer growth, replacing the default
// [MaxEncodeSize].
func WithMaxSize(size int) Option {
	return Option{func(o *codecOptions) { o.maxSize = size }}
}
