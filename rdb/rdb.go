// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package rdb decodes and encodes version-6 key-value dump files.
//
// A dump file generally looks like:
//
//	┌───────────────────┐
//	│ "REDIS0006"       │
//	├───────────────────┤
//	│ AUX pairs         │
//	├───────────────────┤
//	│ SELECTDB n        │
//	│ RESIZEDB hints    │
//	│ repeated records  │
//	│ (expiry? tag key  │
//	│  value)           │
//	├───────────────────┤
//	│ ... more dbs ...  │
//	├───────────────────┤
//	│ EOF opcode        │
//	├───────────────────┤
//	│ 8-byte CRC-64     │
//	└───────────────────┘
//
// The Reader walks the opcode stream into a DumpImage, decoding every value
// (including the legacy compact container blobs) into a canonical in-memory
// shape.  The Writer serializes a DumpImage back out using only the general
// encodings, either as a complete loadable file or as a headerless fragment
// holding a single database's records.
package rdb

import (
	"errors"
	"fmt"
)

const (
	magic = "REDIS"

	// Version is the only dump format version this package accepts.
	Version = 6

	header = "REDIS0006"
)

// body opcodes
const (
	opAux      = 0xfa
	opResizeDB = 0xfb
	opExpireMS = 0xfc
	opExpire   = 0xfd
	opSelectDB = 0xfe
	opEOF      = 0xff
)

// value type tags
const (
	tagString    = 0
	tagList      = 1
	tagSet       = 2
	tagSortedSet = 3
	tagHash      = 4

	// compact container variants, nested inside a string blob
	tagHashZipmap        = 9
	tagListZiplist       = 10
	tagSetIntset         = 11
	tagSortedSetZiplist  = 12
	tagHashZiplist       = 13
	tagListQuicklist     = 14
	tagHashListpack      = 16
	tagSortedSetListpack = 17
	tagListQuicklist2    = 18
	tagSetListpack       = 20

	// anything at or below this is type-tag space rather than opcode space
	maxTypeTag = 21
)

// special string-encoding kinds (length byte tagged 0b11)
const (
	encInt8  = 0
	encInt16 = 1
	encInt32 = 2
	encLZF   = 3
)

var (
	ErrMalformedLength       = errors.New("rdb: malformed length encoding")
	ErrCorruptCompressedData = errors.New("rdb: corrupt compressed string")
	ErrUnsupportedTypeTag    = errors.New("rdb: unsupported value type tag")
	ErrTruncatedInput        = errors.New("rdb: truncated input")
	ErrUnsupportedVersion    = errors.New("rdb: unsupported dump version")
	ErrRecordBeforeSelectDB  = errors.New("rdb: value record before any SELECTDB")
	ErrUnknownOpcode         = errors.New("rdb: unknown opcode")
	ErrChecksumMismatch      = errors.New("rdb: checksum mismatch")
)

// DuplicateKeyError reports a key that already exists in the destination
// database under the reject policy.
type DuplicateKeyError struct {
	DB  uint64
	Key []byte
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("rdb: duplicate key %q in db %d", e.Key, e.DB)
}

// DuplicatePolicy selects what happens when a record's key already exists in
// its destination database.
type DuplicatePolicy uint8

const (
	// RejectDuplicates fails with a DuplicateKeyError.  This is the default.
	RejectDuplicates DuplicatePolicy = iota
	// OverwriteDuplicates keeps the later-encountered record.
	OverwriteDuplicates
)

func (p DuplicatePolicy) String() string {
	switch p {
	case RejectDuplicates:
		return "reject"
	case OverwriteDuplicates:
		return "allow-overwrite"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", uint8(p))
	}
}
