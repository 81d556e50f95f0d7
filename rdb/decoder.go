// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

import (
	"fmt"
	"strconv"
)

// DecodeValue decodes the value payload for the given type tag from the
// start of data, returning the canonical Value and the number of bytes
// consumed.  Compact and general encodings of the same logical type decode
// to equal Values.
func DecodeValue(tag byte, data []byte) (Value, int, error) {
	c := cursor{buf: data}
	v, err := decodeValue(tag, &c)
	if err != nil {
		return Value{}, 0, err
	}
	return v, c.off, nil
}

func decodeValue(tag byte, c *cursor) (Value, error) {
	switch tag {
	case tagString:
		s, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil

	case tagList, tagSet:
		n, err := decodeCount(c)
		if err != nil {
			return Value{}, err
		}
		elems := make([][]byte, 0, n)
		for i := 0; i < n; i++ {
			e, err := decodeString(c)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, e)
		}
		if tag == tagSet {
			return newSetValue(elems)
		}
		return Value{Kind: KindList, Elems: elems}, nil

	case tagSortedSet:
		n, err := decodeCount(c)
		if err != nil {
			return Value{}, err
		}
		members := make([]SortedMember, 0, n)
		for i := 0; i < n; i++ {
			m, err := decodeString(c)
			if err != nil {
				return Value{}, err
			}
			score, err := decodeDouble(c)
			if err != nil {
				return Value{}, err
			}
			members = append(members, SortedMember{Member: m, Score: score})
		}
		return newSortedSetValue(members)

	case tagHash:
		n, err := decodeCount(c)
		if err != nil {
			return Value{}, err
		}
		fields := make([]Field, 0, n)
		for i := 0; i < n; i++ {
			name, err := decodeString(c)
			if err != nil {
				return Value{}, err
			}
			value, err := decodeString(c)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Name: name, Value: value})
		}
		return newHashValue(fields)

	case tagHashZipmap:
		blob, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		fields, err := parseZipmap(blob)
		if err != nil {
			return Value{}, err
		}
		return newHashValue(fields)

	case tagListZiplist:
		blob, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		elems, err := parseZiplist(blob)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindList, Elems: elems}, nil

	case tagSetIntset:
		blob, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		elems, err := parseIntset(blob)
		if err != nil {
			return Value{}, err
		}
		return newSetValue(elems)

	case tagSortedSetZiplist:
		blob, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		elems, err := parseZiplist(blob)
		if err != nil {
			return Value{}, err
		}
		return pairedSortedSet(elems)

	case tagHashZiplist:
		blob, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		elems, err := parseZiplist(blob)
		if err != nil {
			return Value{}, err
		}
		return pairedHash(elems)

	case tagListQuicklist:
		n, err := decodeCount(c)
		if err != nil {
			return Value{}, err
		}
		var elems [][]byte
		for i := 0; i < n; i++ {
			blob, err := decodeString(c)
			if err != nil {
				return Value{}, err
			}
			node, err := parseZiplist(blob)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, node...)
		}
		if elems == nil {
			elems = [][]byte{}
		}
		return Value{Kind: KindList, Elems: elems}, nil

	case tagListQuicklist2:
		n, err := decodeCount(c)
		if err != nil {
			return Value{}, err
		}
		var elems [][]byte
		for i := 0; i < n; i++ {
			container, err := decodeActualLength(c)
			if err != nil {
				return Value{}, err
			}
			blob, err := decodeString(c)
			if err != nil {
				return Value{}, err
			}
			switch container {
			case 1: // plain: the blob is a single element
				elems = append(elems, blob)
			case 2: // packed: the blob is a listpack
				node, err := parseListpack(blob)
				if err != nil {
					return Value{}, err
				}
				elems = append(elems, node...)
			default:
				return Value{}, fmt.Errorf("rdb: invalid quicklist node container %d", container)
			}
		}
		if elems == nil {
			elems = [][]byte{}
		}
		return Value{Kind: KindList, Elems: elems}, nil

	case tagHashListpack:
		blob, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		elems, err := parseListpack(blob)
		if err != nil {
			return Value{}, err
		}
		return pairedHash(elems)

	case tagSortedSetListpack:
		blob, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		elems, err := parseListpack(blob)
		if err != nil {
			return Value{}, err
		}
		return pairedSortedSet(elems)

	case tagSetListpack:
		blob, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		elems, err := parseListpack(blob)
		if err != nil {
			return Value{}, err
		}
		return newSetValue(elems)

	default:
		return Value{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedTypeTag, tag)
	}
}

// newSetValue validates member uniqueness.
func newSetValue(elems [][]byte) (Value, error) {
	seen := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		if _, ok := seen[string(e)]; ok {
			return Value{}, fmt.Errorf("rdb: duplicate set member %q", e)
		}
		seen[string(e)] = struct{}{}
	}
	return Value{Kind: KindSet, Elems: elems}, nil
}

// newHashValue validates field-name uniqueness.
func newHashValue(fields []Field) (Value, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[string(f.Name)]; ok {
			return Value{}, fmt.Errorf("rdb: duplicate hash field %q", f.Name)
		}
		seen[string(f.Name)] = struct{}{}
	}
	return Value{Kind: KindHash, Fields: fields}, nil
}

// newSortedSetValue validates member uniqueness and establishes the
// canonical order.
func newSortedSetValue(members []SortedMember) (Value, error) {
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, ok := seen[string(m.Member)]; ok {
			return Value{}, fmt.Errorf("rdb: duplicate sorted-set member %q", m.Member)
		}
		seen[string(m.Member)] = struct{}{}
	}
	sortMembers(members)
	return Value{Kind: KindSortedSet, Members: members}, nil
}

// pairedHash folds a flat member/score-style element list into hash fields.
func pairedHash(elems [][]byte) (Value, error) {
	if len(elems)%2 != 0 {
		return Value{}, fmt.Errorf("rdb: hash container holds %d entries, want an even number", len(elems))
	}
	fields := make([]Field, 0, len(elems)/2)
	for i := 0; i < len(elems); i += 2 {
		fields = append(fields, Field{Name: elems[i], Value: elems[i+1]})
	}
	return newHashValue(fields)
}

// pairedSortedSet folds a flat (member, score) element list into sorted-set
// members, parsing the score text.
func pairedSortedSet(elems [][]byte) (Value, error) {
	if len(elems)%2 != 0 {
		return Value{}, fmt.Errorf("rdb: sorted-set container holds %d entries, want an even number", len(elems))
	}
	members := make([]SortedMember, 0, len(elems)/2)
	for i := 0; i < len(elems); i += 2 {
		score, err := strconv.ParseFloat(string(elems[i+1]), 64)
		if err != nil {
			return Value{}, fmt.Errorf("rdb: bad score %q for member %q: %v", elems[i+1], elems[i], err)
		}
		members = append(members, SortedMember{Member: elems[i], Score: score})
	}
	return newSortedSetValue(members)
}
