// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package lzf implements the LZF compression used for string payloads in
// version-6 dump files.  The stream is a sequence of control bytes: values
// below 0x20 introduce a literal run, everything else is a back-reference
// into the bytes already produced.
package lzf

import (
	"errors"
	"fmt"
)

const (
	maxLiteralRun = 32
	maxMatchLen   = 264 // 7 + 255 + 2
	maxMatchOff   = 1 << 13

	hashLog = 14
)

var ErrCorrupt = errors.New("lzf: corrupt compressed data")

// Decompress expands src and returns exactly expectedLen bytes.  It fails
// with ErrCorrupt if a back-reference reaches outside the produced output or
// the stream does not yield expectedLen bytes.
func Decompress(src []byte, expectedLen int) ([]byte, error) {
	if expectedLen < 0 {
		return nil, fmt.Errorf("%w: negative output length %d", ErrCorrupt, expectedLen)
	}
	dst := make([]byte, 0, expectedLen)
	for i := 0; i < len(src); {
		ctrl := int(src[i])
		i++
		if ctrl < 0x20 {
			runLen := ctrl + 1
			if i+runLen > len(src) {
				return nil, fmt.Errorf("%w: literal run past end of input", ErrCorrupt)
			}
			if len(dst)+runLen > expectedLen {
				return nil, fmt.Errorf("%w: output longer than declared length %d", ErrCorrupt, expectedLen)
			}
			dst = append(dst, src[i:i+runLen]...)
			i += runLen
			continue
		}
		matchLen := ctrl >> 5
		if matchLen == 7 {
			if i >= len(src) {
				return nil, fmt.Errorf("%w: truncated match length", ErrCorrupt)
			}
			matchLen += int(src[i])
			i++
		}
		matchLen += 2
		if i >= len(src) {
			return nil, fmt.Errorf("%w: truncated match offset", ErrCorrupt)
		}
		ref := len(dst) - ((ctrl & 0x1f) << 8) - int(src[i]) - 1
		i++
		if ref < 0 {
			return nil, fmt.Errorf("%w: back-reference before start of output", ErrCorrupt)
		}
		if len(dst)+matchLen > expectedLen {
			return nil, fmt.Errorf("%w: output longer than declared length %d", ErrCorrupt, expectedLen)
		}
		// byte-at-a-time: matches may overlap the bytes they produce
		for j := 0; j < matchLen; j++ {
			dst = append(dst, dst[ref+j])
		}
	}
	if len(dst) != expectedLen {
		return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrCorrupt, len(dst), expectedLen)
	}
	return dst, nil
}

// Compress encodes src as an LZF stream.  The result is only useful when it
// is shorter than src; callers are expected to compare lengths and fall back
// to the raw form otherwise.  Returns nil for inputs too short to ever win.
func Compress(src []byte) []byte {
	if len(src) <= 4 {
		return nil
	}
	var htab [1 << hashLog]int32
	for i := range htab {
		htab[i] = -1
	}
	dst := make([]byte, 0, len(src))
	lit := 0 // start of the pending literal run
	i := 0
	for i+2 < len(src) {
		h := hash3(src[i], src[i+1], src[i+2])
		ref := int(htab[h])
		htab[h] = int32(i)
		if ref < 0 || i-ref > maxMatchOff ||
			src[ref] != src[i] || src[ref+1] != src[i+1] || src[ref+2] != src[i+2] {
			i++
			continue
		}
		matchLen := 3
		for i+matchLen < len(src) && matchLen < maxMatchLen && src[ref+matchLen] == src[i+matchLen] {
			matchLen++
		}
		dst = appendLiterals(dst, src[lit:i])
		off := i - ref - 1
		l := matchLen - 2
		if l < 7 {
			dst = append(dst, byte(l<<5)|byte(off>>8), byte(off))
		} else {
			dst = append(dst, 0xe0|byte(off>>8), byte(l-7), byte(off))
		}
		i += matchLen
		lit = i
	}
	return appendLiterals(dst, src[lit:])
}

func appendLiterals(dst, lit []byte) []byte {
	for len(lit) > 0 {
		n := len(lit)
		if n > maxLiteralRun {
			n = maxLiteralRun
		}
		dst = append(dst, byte(n-1))
		dst = append(dst, lit[:n]...)
		lit = lit[n:]
	}
	return dst
}

func hash3(a, b, c byte) uint32 {
	h := uint32(a)<<16 | uint32(b)<<8 | uint32(c)
	return (h * 2654435761) >> (32 - hashLog)
}
