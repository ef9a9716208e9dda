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

// The 0-pack filter squeezes runs of zero bytes out of a tag-value stream.
// Input is processed in 8-byte groups: a sparse group becomes a 1-byte
// bitmap plus its nonzero bytes; consecutive dense groups coalesce into an
// FF run of up to 256 groups stored verbatim. The transform is oblivious
// to the message structure and losslessly invertible.

// maxFFGroups caps one FF run; a longer dense stretch is split.
const maxFFGroups = 256

// packSeg sizes (and, where dst has room, writes) the bitmap form of one
// 8-byte group at dst[pos:]. It returns the bytes the group occupies in
// the output: 1+k for a bitmap with k nonzero bytes, 8 when extending an
// FF run, or 10 when a run must start here.
func packSeg(group []byte, dst []byte, pos int, ffN int) int {
	bitmap, notzero := 0, 0
	for i := 0; i < 8; i++ {
		if group[i] != 0 {
			notzero++
			bitmap |= 1 << i
		}
	}
	// A group of 6 or 7 nonzero bytes only counts as dense inside a run;
	// on its own the bitmap form is no bigger.
	if (notzero == 6 || notzero == 7) && ffN > 0 {
		notzero = 8
	}
	if notzero == 8 {
		if ffN > 0 {
			return 8
		}
		return 10
	}
	if pos < len(dst) {
		dst[pos] = byte(bitmap)
	}
	w := pos + 1
	for i := 0; i < 8; i++ {
		if group[i] != 0 {
			if w < len(dst) {
				dst[w] = group[i]
			}
			w++
		}
	}
	return notzero + 1
}

// writeFF finalizes an FF run at dst[pos:]: marker byte, group count minus
// one, then n source bytes zero-padded to a whole number of groups.
func writeFF(dst []byte, pos int, src []byte, n int) {
	aligned := (n + 7) &^ 7
	if pos+2+aligned > len(dst) {
		return
	}
	dst[pos] = 0xff
	dst[pos+1] = byte(aligned/8 - 1)
	copy(dst[pos+2:], src[:n])
	for i := n; i < aligned; i++ {
		dst[pos+2+i] = 0
	}
}

// Pack compresses src into dst with the zero-packing algorithm and returns
// the size of the packed form. If the result does not fit in dst, the
// content of dst is unspecified and the caller should retry with a buffer
// of at least the returned size; [PackBytes] sizes the buffer up front.
func Pack(dst, src []byte) int {
	var tmp [8]byte
	ffSrc, ffDst := 0, 0
	ffN := 0
	size := 0
	for i := 0; i < len(src); i += 8 {
		group := src[i:]
		if len(group) < 8 {
			// Zero-pad the final partial group.
			tmp = [8]byte{}
			copy(tmp[:], group)
			group = tmp[:]
		}
		n := packSeg(group, dst, size, ffN)
		switch {
		case n == 10:
			ffSrc, ffDst = i, size
			ffN = 1
		case n == 8 && ffN > 0:
			ffN++
			if ffN == maxFFGroups {
				// The capped run may end in the zero-padded final group.
				n := len(src) - ffSrc
				if n > maxFFGroups*8 {
					n = maxFFGroups * 8
				}
				writeFF(dst, ffDst, src[ffSrc:], n)
				ffN = 0
			}
		default:
			if ffN > 0 {
				writeFF(dst, ffDst, src[ffSrc:], ffN*8)
				ffN = 0
			}
		}
		size += n
	}
	if ffN > 0 {
		// The run reaches the end of the input; its final group may be
		// partial, so write the actual tail length and let writeFF pad.
		n := len(src) - ffSrc
		if n > ffN*8 {
			n = ffN * 8
		}
		writeFF(dst, ffDst, src[ffSrc:], n)
	}
	return size
}

// Unpack expands src, a stream produced by [Pack], into dst and returns
// the unpacked size. If dst is too small the content written is
// unspecified and the caller should retry with a buffer of at least the
// returned size; [UnpackBytes] wraps that loop. A truncated source stream
// is an error.
func Unpack(dst, src []byte) (int, error) {
	total := len(src)
	size := 0
	for len(src) > 0 {
		header := src[0]
		src = src[1:]
		if header == 0xff {
			if len(src) < 1 {
				return 0, errAt(errCodePackStream, total-len(src))
			}
			n := (int(src[0]) + 1) * 8
			if len(src) < n+1 {
				return 0, errAt(errCodePackStream, total-len(src))
			}
			src = src[1:]
			if size+n <= len(dst) {
				copy(dst[size:], src[:n])
			}
			src = src[n:]
			size += n
		} else {
			for i := 0; i < 8; i++ {
				b := byte(0)
				if header>>i&1 != 0 {
					if len(src) < 1 {
						return 0, errAt(errCodePackStream, total-len(src))
					}
					b = src[0]
					src = src[1:]
				}
				if size < len(dst) {
					dst[size] = b
				}
				size++
			}
		}
	}
	return size, nil
}

// maxPackSize is the worst case for Pack: the input plus one byte per
// group started, plus the FF run overhead of 2 bytes per 2 KiB.
func maxPackSize(n int) int {
	return (n+2047)/2048*2 + n + n/8 + 2
}

// PackBytes packs src into a freshly allocated buffer.
func PackBytes(src []byte) []byte {
	dst := make([]byte, maxPackSize(len(src)))
	n := Pack(dst, src)
	return dst[:n]
}

// UnpackBytes unpacks src into a freshly allocated buffer.
func UnpackBytes(src []byte) ([]byte, error) {
	dst := make([]byte, len(src)*2)
	n, err := Unpack(dst, src)
	if err != nil {
		return nil, err
	}
	if n > len(dst) {
		dst = make([]byte, n)
		if n, err = Unpack(dst, src); err != nil {
			return nil, err
		}
	}
	return dst[:n], nil
}
