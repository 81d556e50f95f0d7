// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package crc64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckValue(t *testing.T) {
	// standard check input for the Jones variant
	assert.Equal(t, uint64(0xe9c6d914c4b8d9ca), Checksum([]byte("123456789")))
}

func TestEmptyInput(t *testing.T) {
	assert.Equal(t, uint64(0), Checksum(nil))
}

func TestBitFlipChangesSum(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	want := Checksum(data)
	for i := range data {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), data...)
			flipped[i] ^= 1 << bit
			require.NotEqual(t, want, Checksum(flipped), "flip byte %d bit %d", i, bit)
		}
	}
}

func TestDigestMatchesOneShot(t *testing.T) {
	data := []byte("incremental hashing should match the one-shot sum")
	d := New()
	for _, b := range data {
		_, err := d.Write([]byte{b})
		require.NoError(t, err)
	}
	assert.Equal(t, Checksum(data), d.Sum64())

	d.Reset()
	assert.Equal(t, uint64(0), d.Sum64())
}
