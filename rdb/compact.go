// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

// The compact container encodings are legacy micro-formats nested inside a
// string blob.  Each parser here is a pure bytes → elements function so it
// can be exercised in isolation; integer entries are normalized to their
// decimal byte form, matching what the general encodings decode to.

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

var (
	errCorruptZiplist  = errors.New("rdb: corrupt ziplist")
	errCorruptZipmap   = errors.New("rdb: corrupt zipmap")
	errCorruptIntset   = errors.New("rdb: corrupt intset")
	errCorruptListpack = errors.New("rdb: corrupt listpack")
)

// parseZiplist returns the entries of a ziplist blob in order.
func parseZiplist(blob []byte) ([][]byte, error) {
	const headerLen = 4 + 4 + 2 // zlbytes + zltail + zllen
	if len(blob) < headerLen+1 {
		return nil, fmt.Errorf("%w: %d bytes is too short", errCorruptZiplist, len(blob))
	}
	if n := binary.LittleEndian.Uint32(blob[0:4]); uint64(n) != uint64(len(blob)) {
		return nil, fmt.Errorf("%w: declared %d bytes, blob has %d", errCorruptZiplist, n, len(blob))
	}
	count := binary.LittleEndian.Uint16(blob[8:10])

	elems := make([][]byte, 0, 8)
	i := headerLen
	for {
		if i >= len(blob) {
			return nil, fmt.Errorf("%w: missing terminator", errCorruptZiplist)
		}
		if blob[i] == 0xff {
			if i != len(blob)-1 {
				return nil, fmt.Errorf("%w: %d bytes after terminator", errCorruptZiplist, len(blob)-1-i)
			}
			break
		}

		// previous-entry length: 1 byte, or 0xfe plus 4 bytes
		if blob[i] < 0xfe {
			i++
		} else {
			i += 5
		}
		if i >= len(blob) {
			return nil, fmt.Errorf("%w: truncated entry header", errCorruptZiplist)
		}

		enc := blob[i]
		switch {
		case enc>>6 == 0:
			l := int(enc & 0x3f)
			i++
			if i+l > len(blob) {
				return nil, fmt.Errorf("%w: truncated %d-byte entry", errCorruptZiplist, l)
			}
			elems = append(elems, bytes.Clone(blob[i:i+l]))
			i += l
		case enc>>6 == 1:
			if i+1 >= len(blob) {
				return nil, fmt.Errorf("%w: truncated entry header", errCorruptZiplist)
			}
			l := int(enc&0x3f)<<8 | int(blob[i+1])
			i += 2
			if i+l > len(blob) {
				return nil, fmt.Errorf("%w: truncated %d-byte entry", errCorruptZiplist, l)
			}
			elems = append(elems, bytes.Clone(blob[i:i+l]))
			i += l
		case enc == 0x80:
			if i+5 > len(blob) {
				return nil, fmt.Errorf("%w: truncated entry header", errCorruptZiplist)
			}
			l := int(binary.BigEndian.Uint32(blob[i+1 : i+5]))
			i += 5
			if l < 0 || i+l > len(blob) {
				return nil, fmt.Errorf("%w: truncated %d-byte entry", errCorruptZiplist, l)
			}
			elems = append(elems, bytes.Clone(blob[i:i+l]))
			i += l
		case enc == 0xc0: // int16
			if i+3 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptZiplist)
			}
			v := int64(int16(binary.LittleEndian.Uint16(blob[i+1 : i+3])))
			elems = append(elems, strconv.AppendInt(nil, v, 10))
			i += 3
		case enc == 0xd0: // int32
			if i+5 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptZiplist)
			}
			v := int64(int32(binary.LittleEndian.Uint32(blob[i+1 : i+5])))
			elems = append(elems, strconv.AppendInt(nil, v, 10))
			i += 5
		case enc == 0xe0: // int64
			if i+9 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptZiplist)
			}
			v := int64(binary.LittleEndian.Uint64(blob[i+1 : i+9]))
			elems = append(elems, strconv.AppendInt(nil, v, 10))
			i += 9
		case enc == 0xf0: // int24
			if i+4 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptZiplist)
			}
			u := uint32(blob[i+1]) | uint32(blob[i+2])<<8 | uint32(blob[i+3])<<16
			v := int64(int32(u<<8) >> 8)
			elems = append(elems, strconv.AppendInt(nil, v, 10))
			i += 4
		case enc == 0xfe: // int8
			if i+2 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptZiplist)
			}
			v := int64(int8(blob[i+1]))
			elems = append(elems, strconv.AppendInt(nil, v, 10))
			i += 2
		case enc >= 0xf1 && enc <= 0xfd: // 4-bit immediate, 0..12
			v := int64(enc&0x0f) - 1
			elems = append(elems, strconv.AppendInt(nil, v, 10))
			i++
		default:
			return nil, fmt.Errorf("%w: invalid entry encoding 0x%02x", errCorruptZiplist, enc)
		}
	}
	if count != 0xffff && int(count) != len(elems) {
		return nil, fmt.Errorf("%w: header counts %d entries, found %d", errCorruptZiplist, count, len(elems))
	}
	return elems, nil
}

// parseZipmap returns the field pairs of a zipmap blob in order.
func parseZipmap(blob []byte) ([]Field, error) {
	if len(blob) < 2 {
		return nil, fmt.Errorf("%w: %d bytes is too short", errCorruptZipmap, len(blob))
	}
	var fields []Field
	i := 1 // skip the entry-count hint byte
	for {
		if i >= len(blob) {
			return nil, fmt.Errorf("%w: missing terminator", errCorruptZipmap)
		}
		if blob[i] == 0xff {
			if i != len(blob)-1 {
				return nil, fmt.Errorf("%w: %d bytes after terminator", errCorruptZipmap, len(blob)-1-i)
			}
			break
		}

		nameLen, n, err := zipmapLen(blob, i)
		if err != nil {
			return nil, err
		}
		i += n
		if i+nameLen > len(blob) {
			return nil, fmt.Errorf("%w: truncated field name", errCorruptZipmap)
		}
		name := blob[i : i+nameLen]
		i += nameLen

		valueLen, n, err := zipmapLen(blob, i)
		if err != nil {
			return nil, err
		}
		i += n
		if i >= len(blob) {
			return nil, fmt.Errorf("%w: truncated free byte", errCorruptZipmap)
		}
		free := int(blob[i])
		i++
		if i+valueLen+free > len(blob) {
			return nil, fmt.Errorf("%w: truncated field value", errCorruptZipmap)
		}
		value := blob[i : i+valueLen]
		i += valueLen + free

		fields = append(fields, Field{Name: bytes.Clone(name), Value: bytes.Clone(value)})
	}
	return fields, nil
}

func zipmapLen(blob []byte, i int) (l, n int, err error) {
	if i >= len(blob) {
		return 0, 0, fmt.Errorf("%w: truncated length", errCorruptZipmap)
	}
	b := blob[i]
	switch {
	case b < 0xfe:
		return int(b), 1, nil
	case b == 0xfe:
		if i+5 > len(blob) {
			return 0, 0, fmt.Errorf("%w: truncated length", errCorruptZipmap)
		}
		return int(binary.LittleEndian.Uint32(blob[i+1 : i+5])), 5, nil
	default:
		return 0, 0, fmt.Errorf("%w: invalid length byte 0x%02x", errCorruptZipmap, b)
	}
}

// parseIntset returns an intset blob's elements in stored (ascending) order.
func parseIntset(blob []byte) ([][]byte, error) {
	if len(blob) < 8 {
		return nil, fmt.Errorf("%w: %d bytes is too short", errCorruptIntset, len(blob))
	}
	width := binary.LittleEndian.Uint32(blob[0:4])
	count := binary.LittleEndian.Uint32(blob[4:8])
	if width != 2 && width != 4 && width != 8 {
		return nil, fmt.Errorf("%w: invalid element width %d", errCorruptIntset, width)
	}
	if uint64(len(blob)) != 8+uint64(width)*uint64(count) {
		return nil, fmt.Errorf("%w: %d bytes does not hold %d %d-byte elements", errCorruptIntset, len(blob), count, width)
	}
	elems := make([][]byte, 0, count)
	for i := 8; i < len(blob); i += int(width) {
		var v int64
		switch width {
		case 2:
			v = int64(int16(binary.LittleEndian.Uint16(blob[i : i+2])))
		case 4:
			v = int64(int32(binary.LittleEndian.Uint32(blob[i : i+4])))
		case 8:
			v = int64(binary.LittleEndian.Uint64(blob[i : i+8]))
		}
		elems = append(elems, strconv.AppendInt(nil, v, 10))
	}
	return elems, nil
}

// parseListpack returns the entries of a listpack blob in order.
func parseListpack(blob []byte) ([][]byte, error) {
	const headerLen = 4 + 2 // total bytes + element count
	if len(blob) < headerLen+1 {
		return nil, fmt.Errorf("%w: %d bytes is too short", errCorruptListpack, len(blob))
	}
	if n := binary.LittleEndian.Uint32(blob[0:4]); uint64(n) != uint64(len(blob)) {
		return nil, fmt.Errorf("%w: declared %d bytes, blob has %d", errCorruptListpack, n, len(blob))
	}
	count := binary.LittleEndian.Uint16(blob[4:6])

	elems := make([][]byte, 0, 8)
	i := headerLen
	for {
		if i >= len(blob) {
			return nil, fmt.Errorf("%w: missing terminator", errCorruptListpack)
		}
		b := blob[i]
		if b == 0xff {
			if i != len(blob)-1 {
				return nil, fmt.Errorf("%w: %d bytes after terminator", errCorruptListpack, len(blob)-1-i)
			}
			break
		}

		var elem []byte
		var entryLen int
		switch {
		case b&0x80 == 0: // 7-bit unsigned
			elem = strconv.AppendInt(nil, int64(b&0x7f), 10)
			entryLen = 1
		case b&0xc0 == 0x80: // 6-bit string length
			l := int(b & 0x3f)
			if i+1+l > len(blob) {
				return nil, fmt.Errorf("%w: truncated %d-byte entry", errCorruptListpack, l)
			}
			elem = bytes.Clone(blob[i+1 : i+1+l])
			entryLen = 1 + l
		case b&0xe0 == 0xc0: // 13-bit signed
			if i+2 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptListpack)
			}
			v := int64(b&0x1f)<<8 | int64(blob[i+1])
			if v >= 1<<12 {
				v -= 1 << 13
			}
			elem = strconv.AppendInt(nil, v, 10)
			entryLen = 2
		case b == 0xf1: // int16
			if i+3 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptListpack)
			}
			v := int64(int16(binary.LittleEndian.Uint16(blob[i+1 : i+3])))
			elem = strconv.AppendInt(nil, v, 10)
			entryLen = 3
		case b == 0xf2: // int24
			if i+4 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptListpack)
			}
			u := uint32(blob[i+1]) | uint32(blob[i+2])<<8 | uint32(blob[i+3])<<16
			elem = strconv.AppendInt(nil, int64(int32(u<<8)>>8), 10)
			entryLen = 4
		case b == 0xf3: // int32
			if i+5 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptListpack)
			}
			v := int64(int32(binary.LittleEndian.Uint32(blob[i+1 : i+5])))
			elem = strconv.AppendInt(nil, v, 10)
			entryLen = 5
		case b == 0xf4: // int64
			if i+9 > len(blob) {
				return nil, fmt.Errorf("%w: truncated integer entry", errCorruptListpack)
			}
			v := int64(binary.LittleEndian.Uint64(blob[i+1 : i+9]))
			elem = strconv.AppendInt(nil, v, 10)
			entryLen = 9
		case b == 0xf0: // 32-bit string length
			if i+5 > len(blob) {
				return nil, fmt.Errorf("%w: truncated entry header", errCorruptListpack)
			}
			l := int(binary.LittleEndian.Uint32(blob[i+1 : i+5]))
			if l < 0 || i+5+l > len(blob) {
				return nil, fmt.Errorf("%w: truncated %d-byte entry", errCorruptListpack, l)
			}
			elem = bytes.Clone(blob[i+5 : i+5+l])
			entryLen = 5 + l
		case b&0xf0 == 0xe0: // 12-bit string length
			if i+2 > len(blob) {
				return nil, fmt.Errorf("%w: truncated entry header", errCorruptListpack)
			}
			l := int(b&0x0f)<<8 | int(blob[i+1])
			if i+2+l > len(blob) {
				return nil, fmt.Errorf("%w: truncated %d-byte entry", errCorruptListpack, l)
			}
			elem = bytes.Clone(blob[i+2 : i+2+l])
			entryLen = 2 + l
		default:
			return nil, fmt.Errorf("%w: invalid entry encoding 0x%02x", errCorruptListpack, b)
		}

		i += entryLen + backlenSize(entryLen)
		if i > len(blob) {
			return nil, fmt.Errorf("%w: truncated entry back-length", errCorruptListpack)
		}
		elems = append(elems, elem)
	}
	if count != 0xffff && int(count) != len(elems) {
		return nil, fmt.Errorf("%w: header counts %d entries, found %d", errCorruptListpack, count, len(elems))
	}
	return elems, nil
}

// backlenSize is the width of the trailing back-length field for an entry of
// the given encoded size.
func backlenSize(entryLen int) int {
	switch {
	case entryLen < 1<<7:
		return 1
	case entryLen < 1<<14:
		return 2
	case entryLen < 1<<21:
		return 3
	case entryLen < 1<<28:
		return 4
	default:
		return 5
	}
}
