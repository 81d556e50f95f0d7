// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Length fields start with a byte whose top two bits select the form:
//
//	00xxxxxx            6-bit length
//	01xxxxxx xxxxxxxx   14-bit length, big-endian
//	10000000 + 4 bytes  32-bit length, big-endian
//	11xxxxxx            special encoding; low bits name the kind
//
// Remaining 10xxxxxx values belong to later format versions and are rejected.

// decodeLength reads one length field.  When special is true the value is
// not a length: kind identifies an integer or compressed-string encoding and
// n is meaningless.
func decodeLength(c *cursor) (n uint64, special bool, kind byte, err error) {
	b, err := c.u8()
	if err != nil {
		return 0, false, 0, err
	}
	switch b >> 6 {
	case 0:
		return uint64(b & 0x3f), false, 0, nil
	case 1:
		b2, err := c.u8()
		if err != nil {
			return 0, false, 0, err
		}
		return uint64(b&0x3f)<<8 | uint64(b2), false, 0, nil
	case 2:
		if b != 0x80 {
			return 0, false, 0, fmt.Errorf("%w: reserved length byte 0x%02x", ErrMalformedLength, b)
		}
		raw, err := c.take(4)
		if err != nil {
			return 0, false, 0, err
		}
		return uint64(binary.BigEndian.Uint32(raw)), false, 0, nil
	default:
		return 0, true, b & 0x3f, nil
	}
}

// decodeActualLength reads a length field that must be a real length, not a
// special encoding.
func decodeActualLength(c *cursor) (uint64, error) {
	n, special, kind, err := decodeLength(c)
	if err != nil {
		return 0, err
	}
	if special {
		return 0, fmt.Errorf("%w: special encoding 0x%02x where a length is required", ErrMalformedLength, kind)
	}
	return n, nil
}

// decodeCount reads a collection element count.
func decodeCount(c *cursor) (int, error) {
	n, err := decodeActualLength(c)
	if err != nil {
		return 0, err
	}
	if n > uint64(c.remaining()) {
		// every element takes at least one byte, so this cannot parse
		return 0, fmt.Errorf("%w: count %d exceeds remaining input", ErrTruncatedInput, n)
	}
	return int(n), nil
}

// appendLength appends the smallest encoding of n.
func appendLength(dst []byte, n uint64) ([]byte, error) {
	switch {
	case n < 1<<6:
		return append(dst, byte(n)), nil
	case n < 1<<14:
		return append(dst, 0x40|byte(n>>8), byte(n)), nil
	case n <= math.MaxUint32:
		dst = append(dst, 0x80)
		return binary.BigEndian.AppendUint32(dst, uint32(n)), nil
	default:
		return nil, fmt.Errorf("rdb: length %d does not fit a version-%d length field", n, Version)
	}
}
