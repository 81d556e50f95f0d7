// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

import (
	"bytes"
	"sort"
)

// Kind identifies the logical type of a Value.
type Kind uint8

const (
	KindString Kind = iota
	KindList
	KindSet
	KindHash
	KindSortedSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindHash:
		return "hash"
	case KindSortedSet:
		return "sorted-set"
	default:
		return "unknown"
	}
}

// Field is one name/value pair of a hash.
type Field struct {
	Name  []byte
	Value []byte
}

// SortedMember is one member of a sorted set.
type SortedMember struct {
	Member []byte
	Score  float64
}

// Value is the canonical in-memory form of a decoded value.  Exactly one of
// the payload fields is populated, selected by Kind.  Strings that happen to
// be decimal integers are kept as raw bytes; the integer-compact on-disk form
// is only an encoding concern.
type Value struct {
	Kind    Kind
	Str     []byte         // KindString
	Elems   [][]byte       // KindList, KindSet
	Fields  []Field        // KindHash
	Members []SortedMember // KindSortedSet, ordered by score then member
}

func StringValue(b []byte) Value {
	return Value{Kind: KindString, Str: b}
}

func ListValue(elems ...[]byte) Value {
	return Value{Kind: KindList, Elems: elems}
}

func SetValue(elems ...[]byte) Value {
	return Value{Kind: KindSet, Elems: elems}
}

func HashValue(fields ...Field) Value {
	return Value{Kind: KindHash, Fields: fields}
}

// SortedSetValue builds a sorted-set Value, establishing the canonical
// score-then-member order.
func SortedSetValue(members ...SortedMember) Value {
	sortMembers(members)
	return Value{Kind: KindSortedSet, Members: members}
}

// sortMembers orders by score, ties (and NaN scores) broken by member bytes.
// The sort is stable so decoding is reproducible.
func sortMembers(members []SortedMember) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.Score < b.Score {
			return true
		}
		if a.Score > b.Score {
			return false
		}
		return bytes.Compare(a.Member, b.Member) < 0
	})
}

// Clone returns a deep copy sharing no memory with v.
func (v Value) Clone() Value {
	out := Value{Kind: v.Kind, Str: bytes.Clone(v.Str)}
	if v.Elems != nil {
		out.Elems = make([][]byte, len(v.Elems))
		for i, e := range v.Elems {
			out.Elems[i] = bytes.Clone(e)
		}
	}
	if v.Fields != nil {
		out.Fields = make([]Field, len(v.Fields))
		for i, f := range v.Fields {
			out.Fields[i] = Field{Name: bytes.Clone(f.Name), Value: bytes.Clone(f.Value)}
		}
	}
	if v.Members != nil {
		out.Members = make([]SortedMember, len(v.Members))
		for i, m := range v.Members {
			out.Members[i] = SortedMember{Member: bytes.Clone(m.Member), Score: m.Score}
		}
	}
	return out
}

// Record is one key with its value and optional expiration time.
type Record struct {
	Key            []byte
	Value          Value
	ExpireAtMillis uint64
	HasExpiry      bool
}

// Clone returns a deep copy sharing no memory with r.
func (r *Record) Clone() *Record {
	return &Record{
		Key:            bytes.Clone(r.Key),
		Value:          r.Value.Clone(),
		ExpireAtMillis: r.ExpireAtMillis,
		HasExpiry:      r.HasExpiry,
	}
}

// ResizeHint carries a RESIZEDB opcode's table sizing hints.
type ResizeHint struct {
	TableSize   uint64
	ExpiresSize uint64
}

// DatabaseSet holds one logical database's records.  Keys are unique; records
// keep their insertion order so output is reproducible across runs.
type DatabaseSet struct {
	Index      uint64
	ResizeHint *ResizeHint

	records []*Record
	byKey   map[string]int
}

func NewDatabaseSet(index uint64) *DatabaseSet {
	return &DatabaseSet{
		Index: index,
		byKey: make(map[string]int),
	}
}

func (d *DatabaseSet) Len() int {
	return len(d.records)
}

// ExpiringLen counts the records that carry an expiration time.
func (d *DatabaseSet) ExpiringLen() int {
	n := 0
	for _, rec := range d.records {
		if rec.HasExpiry {
			n++
		}
	}
	return n
}

// Records returns the records in insertion order.  Callers must not modify
// the returned slice.
func (d *DatabaseSet) Records() []*Record {
	return d.records
}

func (d *DatabaseSet) Get(key []byte) (*Record, bool) {
	i, ok := d.byKey[string(key)]
	if !ok {
		return nil, false
	}
	return d.records[i], true
}

// Set inserts rec.  If the key already exists, overwrite decides between
// replacing the record (keeping its original position) and failing with a
// DuplicateKeyError.
func (d *DatabaseSet) Set(rec *Record, overwrite bool) error {
	if i, ok := d.byKey[string(rec.Key)]; ok {
		if !overwrite {
			return &DuplicateKeyError{DB: d.Index, Key: rec.Key}
		}
		d.records[i] = rec
		return nil
	}
	d.byKey[string(rec.Key)] = len(d.records)
	d.records = append(d.records, rec)
	return nil
}

// AuxPair is one auxiliary metadata field from the dump header area.
type AuxPair struct {
	Name  []byte
	Value []byte
}

// DumpImage is the decoded form of one dump file: its auxiliary metadata and
// its databases, kept ordered by ascending database index.
type DumpImage struct {
	Aux []AuxPair

	databases []*DatabaseSet
}

// Databases returns the database sets in ascending index order.  Callers must
// not modify the returned slice.
func (img *DumpImage) Databases() []*DatabaseSet {
	return img.databases
}

// Database looks up the set for index, if present.
func (img *DumpImage) Database(index uint64) (*DatabaseSet, bool) {
	i := sort.Search(len(img.databases), func(i int) bool {
		return img.databases[i].Index >= index
	})
	if i < len(img.databases) && img.databases[i].Index == index {
		return img.databases[i], true
	}
	return nil, false
}

// EnsureDatabase returns the set for index, creating it in sorted position if
// it does not exist yet.
func (img *DumpImage) EnsureDatabase(index uint64) *DatabaseSet {
	i := sort.Search(len(img.databases), func(i int) bool {
		return img.databases[i].Index >= index
	})
	if i < len(img.databases) && img.databases[i].Index == index {
		return img.databases[i]
	}
	db := NewDatabaseSet(index)
	img.databases = append(img.databases, nil)
	copy(img.databases[i+1:], img.databases[i:])
	img.databases[i] = db
	return db
}
