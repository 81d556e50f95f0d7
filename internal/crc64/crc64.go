// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package crc64 implements the CRC-64 variant (Jones polynomial, reflected,
// zero initial value, no output inversion) that trails version-6 dump files.
// The standard library's hash/crc64 always applies pre- and post-inversion,
// which yields different sums, so the digest lives here.
package crc64

// Jones polynomial, bit-reversed for the right-shifting table algorithm.
const poly = 0x95ac9329ac4bc9b5

var table = makeTable()

func makeTable() *[256]uint64 {
	var t [256]uint64
	for i := range t {
		crc := uint64(i)
		for j := 0; j < 8; j++ {
			if crc&1 == 1 {
				crc = crc>>1 ^ poly
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return &t
}

// Update returns the CRC of p appended to the data summarized by crc.
func Update(crc uint64, p []byte) uint64 {
	for _, b := range p {
		crc = table[byte(crc)^b] ^ crc>>8
	}
	return crc
}

// Checksum returns the CRC of p.
func Checksum(p []byte) uint64 {
	return Update(0, p)
}

// Digest accumulates a CRC incrementally.  The zero value is ready to use.
type Digest struct {
	crc uint64
}

func New() *Digest {
	return &Digest{}
}

func (d *Digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, p)
	return len(p), nil
}

func (d *Digest) Sum64() uint64 {
	return d.crc
}

func (d *Digest) Reset() {
	d.crc = 0
}
