// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStringRaw(t *testing.T) {
	c := cursor{buf: []byte{0x05, 'h', 'e', 'l', 'l', 'o'}}
	got, err := decodeString(&c)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, 0, c.remaining())
}

func TestDecodeStringIntegerLiterals(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte{0xc0, 0x7b}, "123"},
		{[]byte{0xc0, 0x85}, "-123"},
		{[]byte{0xc1, 0x39, 0x30}, "12345"},
		{[]byte{0xc1, 0xc7, 0xcf}, "-12345"},
		{[]byte{0xc2, 0x87, 0xd6, 0x12, 0x00}, "1234567"},
		{[]byte{0xc2, 0x79, 0x29, 0xed, 0xff}, "-1234567"},
	}
	for _, tc := range cases {
		c := cursor{buf: tc.in}
		got, err := decodeString(&c)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(got))
	}
}

func TestDecodeStringCompressed(t *testing.T) {
	plain := []byte(strings.Repeat("ab", 100))
	enc, err := appendString(nil, plain, true)
	require.NoError(t, err)
	// the compressed form must actually have been chosen
	require.Equal(t, byte(0xc0|encLZF), enc[0])
	require.Less(t, len(enc), len(plain))

	c := cursor{buf: enc}
	got, err := decodeString(&c)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
	assert.Equal(t, 0, c.remaining())
}

func TestDecodeStringCorruptCompressed(t *testing.T) {
	// declared uncompressed length disagrees with the stream
	enc := []byte{0xc3, 0x02, 0x09, 0x00, 'x'}
	c := cursor{buf: enc}
	_, err := decodeString(&c)
	assert.ErrorIs(t, err, ErrCorruptCompressedData)
}

func TestDecodeStringErrors(t *testing.T) {
	// raw run longer than the input
	c := cursor{buf: []byte{0x05, 'a'}}
	_, err := decodeString(&c)
	assert.ErrorIs(t, err, ErrTruncatedInput)

	// reserved special encoding
	c = cursor{buf: []byte{0xc4, 0x00}}
	_, err = decodeString(&c)
	assert.ErrorIs(t, err, ErrMalformedLength)

	// integer literal cut short
	c = cursor{buf: []byte{0xc2, 0x01}}
	_, err = decodeString(&c)
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestAppendStringIntegerShortcut(t *testing.T) {
	cases := []struct {
		in   string
		want []byte
	}{
		{"7", []byte{0xc0, 0x07}},
		{"-1", []byte{0xc0, 0xff}},
		{"300", []byte{0xc1, 0x2c, 0x01}},
		{"-32768", []byte{0xc1, 0x00, 0x80}},
		{"100000", []byte{0xc2, 0xa0, 0x86, 0x01, 0x00}},
	}
	for _, tc := range cases {
		got, err := appendString(nil, []byte(tc.in), false)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "in=%q", tc.in)
	}
}

func TestAppendStringNonCanonicalIntegersStayRaw(t *testing.T) {
	for _, in := range []string{"007", "+5", "1e3", " 1", "", "12345678901234"} {
		got, err := appendString(nil, []byte(in), false)
		require.NoError(t, err)
		want := append([]byte{byte(len(in))}, in...)
		assert.Equal(t, want, got, "in=%q", in)
	}
}

func TestStringRoundtrip(t *testing.T) {
	inputs := []string{
		"", "x", "hello", "7", "-2147483648", "2147483647",
		"2147483648", // too big for the int32 shortcut
		strings.Repeat("compressme", 50),
		strings.Repeat("\x00\x01\x02", 30),
	}
	for _, compress := range []bool{false, true} {
		for _, in := range inputs {
			enc, err := appendString(nil, []byte(in), compress)
			require.NoError(t, err)
			c := cursor{buf: enc}
			got, err := decodeString(&c)
			require.NoError(t, err)
			require.Equal(t, in, string(got), "compress=%v", compress)
			require.Equal(t, 0, c.remaining())
		}
	}
}

func TestDoubleCodec(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 3.5, -7.25, 1e300, math.SmallestNonzeroFloat64, math.Pi} {
		enc := appendDouble(nil, f)
		c := cursor{buf: enc}
		got, err := decodeDouble(&c)
		require.NoError(t, err)
		require.Equal(t, f, got)
	}

	enc := appendDouble(nil, math.Inf(1))
	assert.Equal(t, []byte{254}, enc)
	enc = appendDouble(nil, math.Inf(-1))
	assert.Equal(t, []byte{255}, enc)
	enc = appendDouble(nil, math.NaN())
	assert.Equal(t, []byte{253}, enc)

	c := cursor{buf: []byte{253}}
	got, err := decodeDouble(&c)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))
}

func TestDecodeDoubleBadText(t *testing.T) {
	c := cursor{buf: []byte{3, 'a', 'b', 'c'}}
	_, err := decodeDouble(&c)
	assert.Error(t, err)
}
