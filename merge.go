// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdbmerge

import (
	"bytes"

	"github.com/rdbtools/rdbmerge/rdb"
)

// Merge combines images, in order, into a new image.  Records are cloned so
// the inputs stay untouched and replayable; for a fixed input order and
// policy the result is bit-reproducible.
//
// Under rdb.RejectDuplicates a key present in two inputs (or twice in one)
// fails with a *rdb.DuplicateKeyError naming the database and key.  Under
// rdb.OverwriteDuplicates the later input wins.  Aux metadata is
// concatenated in input order without deduplication.
func Merge(images []*rdb.DumpImage, policy rdb.DuplicatePolicy) (*rdb.DumpImage, error) {
	overwrite := policy == rdb.OverwriteDuplicates
	out := &rdb.DumpImage{}
	for _, img := range images {
		for _, aux := range img.Aux {
			out.Aux = append(out.Aux, rdb.AuxPair{
				Name:  bytes.Clone(aux.Name),
				Value: bytes.Clone(aux.Value),
			})
		}
		for _, db := range img.Databases() {
			dst := out.EnsureDatabase(db.Index)
			for _, rec := range db.Records() {
				if err := dst.Set(rec.Clone(), overwrite); err != nil {
					return nil, err
				}
			}
		}
	}

	// input hints describe pre-merge tables; recompute for the union
	for _, db := range out.Databases() {
		db.ResizeHint = &rdb.ResizeHint{
			TableSize:   uint64(db.Len()),
			ExpiresSize: uint64(db.ExpiringLen()),
		}
	}
	return out, nil
}
