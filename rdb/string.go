// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/rdbtools/rdbmerge/internal/lzf"
)

// strings below this size never come out ahead after compression
const compressMinLen = 21

// decodeString reads one string-encoded payload: a raw length-prefixed run,
// an integer literal, or an LZF-compressed blob.  The result never aliases
// the input buffer.
func decodeString(c *cursor) ([]byte, error) {
	n, special, kind, err := decodeLength(c)
	if err != nil {
		return nil, err
	}
	if !special {
		if n > uint64(c.remaining()) {
			return nil, fmt.Errorf("%w: string of %d bytes at offset %d", ErrTruncatedInput, n, c.off)
		}
		raw, err := c.take(int(n))
		if err != nil {
			return nil, err
		}
		return bytes.Clone(raw), nil
	}

	switch kind {
	case encInt8:
		raw, err := c.take(1)
		if err != nil {
			return nil, err
		}
		return strconv.AppendInt(nil, int64(int8(raw[0])), 10), nil
	case encInt16:
		raw, err := c.take(2)
		if err != nil {
			return nil, err
		}
		return strconv.AppendInt(nil, int64(int16(binary.LittleEndian.Uint16(raw))), 10), nil
	case encInt32:
		raw, err := c.take(4)
		if err != nil {
			return nil, err
		}
		return strconv.AppendInt(nil, int64(int32(binary.LittleEndian.Uint32(raw))), 10), nil
	case encLZF:
		compLen, err := decodeActualLength(c)
		if err != nil {
			return nil, err
		}
		fullLen, err := decodeActualLength(c)
		if err != nil {
			return nil, err
		}
		if compLen > uint64(c.remaining()) {
			return nil, fmt.Errorf("%w: compressed blob of %d bytes at offset %d", ErrTruncatedInput, compLen, c.off)
		}
		comp, err := c.take(int(compLen))
		if err != nil {
			return nil, err
		}
		if fullLen > math.MaxInt32 {
			return nil, fmt.Errorf("%w: implausible uncompressed length %d", ErrCorruptCompressedData, fullLen)
		}
		out, err := lzf.Decompress(comp, int(fullLen))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptCompressedData, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: reserved string encoding %d", ErrMalformedLength, kind)
	}
}

// appendString appends b in string encoding, preferring the integer literal
// form, then (when enabled and profitable) the LZF form, then the raw form.
func appendString(dst []byte, b []byte, compress bool) ([]byte, error) {
	if i, ok := asInt32(b); ok {
		switch {
		case i >= math.MinInt8 && i <= math.MaxInt8:
			return append(dst, 0xc0|encInt8, byte(i)), nil
		case i >= math.MinInt16 && i <= math.MaxInt16:
			dst = append(dst, 0xc0|encInt16)
			return binary.LittleEndian.AppendUint16(dst, uint16(i)), nil
		default:
			dst = append(dst, 0xc0|encInt32)
			return binary.LittleEndian.AppendUint32(dst, uint32(i)), nil
		}
	}

	if compress && len(b) >= compressMinLen {
		if comp := lzf.Compress(b); comp != nil && len(comp) < len(b) {
			out := append(dst, 0xc0|encLZF)
			out, err := appendLength(out, uint64(len(comp)))
			if err != nil {
				return nil, err
			}
			out, err = appendLength(out, uint64(len(b)))
			if err != nil {
				return nil, err
			}
			return append(out, comp...), nil
		}
	}

	dst, err := appendLength(dst, uint64(len(b)))
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

// asInt32 reports whether b is the canonical decimal form of a 32-bit signed
// integer; only then can the integer literal encoding round-trip exactly.
func asInt32(b []byte) (int64, bool) {
	if len(b) == 0 || len(b) > 11 {
		return 0, false
	}
	i, err := strconv.ParseInt(string(b), 10, 32)
	if err != nil {
		return 0, false
	}
	if string(b) != strconv.FormatInt(i, 10) {
		// leading zeros, a plus sign and the like must stay raw
		return 0, false
	}
	return i, true
}

// Sorted-set scores are written as a one-byte length followed by the ASCII
// decimal form; lengths 253-255 are reserved for nan and the infinities.

func decodeDouble(c *cursor) (float64, error) {
	n, err := c.u8()
	if err != nil {
		return 0, err
	}
	switch n {
	case 255:
		return math.Inf(-1), nil
	case 254:
		return math.Inf(1), nil
	case 253:
		return math.NaN(), nil
	default:
		raw, err := c.take(int(n))
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return 0, fmt.Errorf("rdb: bad score %q: %v", raw, err)
		}
		return f, nil
	}
}

func appendDouble(dst []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(dst, 253)
	case math.IsInf(f, 1):
		return append(dst, 254)
	case math.IsInf(f, -1):
		return append(dst, 255)
	default:
		s := strconv.FormatFloat(f, 'g', 17, 64)
		dst = append(dst, byte(len(s)))
		return append(dst, s...)
	}
}
