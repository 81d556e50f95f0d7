// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

import "fmt"

// cursor is a positioned view over an input buffer.  Every read is bounds
// checked and fails with ErrTruncatedInput carrying the offset; nothing is
// consumed on failure.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

func (c *cursor) u8() (byte, error) {
	if c.off >= len(c.buf) {
		return 0, fmt.Errorf("%w at offset %d", ErrTruncatedInput, c.off)
	}
	b := c.buf[c.off]
	c.off++
	return b, nil
}

// take returns the next n bytes without copying; the result aliases the
// input buffer.
func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedInput, n, c.off, c.remaining())
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}
