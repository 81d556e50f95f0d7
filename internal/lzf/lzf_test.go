// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package lzf

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompressKnownStream(t *testing.T) {
	// produced by the reference compressor for "a"*16 + "1" + "a"*16
	src := []byte{
		0x01, 0x61, 0x61, // literal "aa"
		0xe0, 0x05, 0x00, // 14-byte match
		0x00, 0x31, // literal "1"
		0xe0, 0x05, 0x0e, // 14-byte match
		0x01, 0x61, 0x61, // literal "aa"
	}
	want := strings.Repeat("a", 16) + "1" + strings.Repeat("a", 16)

	got, err := Decompress(src, len(want))
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func TestDecompressErrors(t *testing.T) {
	// literal run that claims more bytes than the input holds
	_, err := Decompress([]byte{0x05, 0x61}, 6)
	assert.ErrorIs(t, err, ErrCorrupt)

	// back-reference pointing before the start of the output
	_, err = Decompress([]byte{0x00, 0x61, 0x20, 0x10}, 4)
	assert.ErrorIs(t, err, ErrCorrupt)

	// truncated match offset
	_, err = Decompress([]byte{0x00, 0x61, 0xe0}, 20)
	assert.ErrorIs(t, err, ErrCorrupt)

	// stream ends before producing the declared length
	_, err = Decompress([]byte{0x00, 0x61}, 2)
	assert.ErrorIs(t, err, ErrCorrupt)

	// stream produces more than the declared length
	_, err = Decompress([]byte{0x01, 0x61, 0x62}, 1)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCompressRoundtrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	random := make([]byte, 4096)
	_, err := rng.Read(random)
	require.NoError(t, err)

	inputs := [][]byte{
		[]byte("hello"),
		[]byte(strings.Repeat("a", 500)),
		[]byte(strings.Repeat("abc", 300)),
		[]byte(strings.Repeat("0123456789abcdef", 64)),
		bytes.Repeat([]byte{0x00}, 1000),
		random,
		append(bytes.Repeat([]byte("xy"), 200), random[:100]...),
	}
	for _, in := range inputs {
		comp := Compress(in)
		if comp == nil {
			continue
		}
		out, err := Decompress(comp, len(in))
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestCompressShrinksRepetitiveInput(t *testing.T) {
	in := []byte(strings.Repeat("abcdefgh", 100))
	comp := Compress(in)
	require.NotNil(t, comp)
	assert.Less(t, len(comp), len(in))
}

func TestCompressTinyInput(t *testing.T) {
	assert.Nil(t, Compress(nil))
	assert.Nil(t, Compress([]byte("abcd")))
}
