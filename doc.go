// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package rdbmerge merges version-6 key-value dump files produced by
// independent database instances into one importable dump, optionally
// splitting out per-database fragment files.
//
// Inputs are decoded in parallel into immutable images, merged strictly in
// input order under a duplicate-key policy, and written back out atomically:
// a full MERGE.rdb plus one headerless PART_<index>.rdb fragment for each
// requested database index.
package rdbmerge
