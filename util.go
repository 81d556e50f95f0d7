// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdbmerge

type dbSet map[uint64]struct{}

func (set dbSet) Contains(n uint64) bool {
	_, ok := set[n]
	return ok
}

func (set dbSet) Add(n uint64) {
	set[n] = struct{}{}
}
