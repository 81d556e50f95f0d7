// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdbmerge

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdbtools/rdbmerge/rdb"
)

func writeDump(t *testing.T, dir, name string, img *rdb.DumpImage) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, rdb.NewWriter(&buf).WriteImage(img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func readDump(t *testing.T, path string) *rdb.DumpImage {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := rdb.NewReader(data).ReadImage()
	require.NoError(t, err)
	return img
}

func TestMergerRun(t *testing.T) {
	dir := t.TempDir()
	in1 := writeDump(t, dir, "in1.rdb", imageOf(t, 0, "a", "1"))
	img2 := imageOf(t, 0, "b", "2")
	require.NoError(t, img2.EnsureDatabase(1).Set(&rdb.Record{
		Key:   []byte("c"),
		Value: rdb.StringValue([]byte("3")),
	}, false))
	in2 := writeDump(t, dir, "in2.rdb", img2)

	out := t.TempDir()
	m, err := NewMerger(out, WithFragmentDatabases(0))
	require.NoError(t, err)
	require.NoError(t, m.Run(in1, in2))

	merged := readDump(t, filepath.Join(out, "MERGE.rdb"))
	assert.Equal(t, "1", recordValue(t, merged, 0, "a"))
	assert.Equal(t, "2", recordValue(t, merged, 0, "b"))
	assert.Equal(t, "3", recordValue(t, merged, 1, "c"))

	// the db-0 fragment holds bare records in merge order
	frag, err := os.ReadFile(filepath.Join(out, "PART_00000000.rdb"))
	require.NoError(t, err)
	db0, ok := merged.Database(0)
	require.True(t, ok)
	var want bytes.Buffer
	require.NoError(t, rdb.NewWriter(&want).WriteFragment(db0))
	assert.Equal(t, want.Bytes(), frag)

	// db 1 was not requested
	_, err = os.Stat(filepath.Join(out, "PART_00000001.rdb"))
	assert.True(t, os.IsNotExist(err))

	// no temp files left behind
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMergerRunDuplicateKey(t *testing.T) {
	dir := t.TempDir()
	in1 := writeDump(t, dir, "in1.rdb", imageOf(t, 0, "x", "old"))
	in2 := writeDump(t, dir, "in2.rdb", imageOf(t, 0, "x", "new"))

	out := t.TempDir()
	m, err := NewMerger(out)
	require.NoError(t, err)

	err = m.Run(in1, in2)
	var dup *rdb.DuplicateKeyError
	require.ErrorAs(t, err, &dup)

	// a failed merge leaves no outputs behind
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMergerRunOverwrite(t *testing.T) {
	dir := t.TempDir()
	in1 := writeDump(t, dir, "in1.rdb", imageOf(t, 0, "x", "old"))
	in2 := writeDump(t, dir, "in2.rdb", imageOf(t, 0, "x", "new"))

	out := t.TempDir()
	m, err := NewMerger(out, WithDuplicatePolicy(rdb.OverwriteDuplicates))
	require.NoError(t, err)
	require.NoError(t, m.Run(in1, in2))

	merged := readDump(t, filepath.Join(out, "MERGE.rdb"))
	assert.Equal(t, "new", recordValue(t, merged, 0, "x"))
}

func TestMergerRunChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeDump(t, dir, "in.rdb", imageOf(t, 0, "a", "1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0x01
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out := t.TempDir()
	m, err := NewMerger(out)
	require.NoError(t, err)
	err = m.Run(path)
	assert.ErrorIs(t, err, rdb.ErrChecksumMismatch)

	// the mismatch is survivable when verification is waived
	m, err = NewMerger(out, WithoutChecksumVerification())
	require.NoError(t, err)
	require.NoError(t, m.Run(path))
	merged := readDump(t, filepath.Join(out, "MERGE.rdb"))
	assert.Equal(t, "1", recordValue(t, merged, 0, "a"))
}

func TestMergerRunCorruptInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.rdb")
	require.NoError(t, os.WriteFile(path, []byte("not a dump"), 0o644))

	m, err := NewMerger(t.TempDir())
	require.NoError(t, err)
	err = m.Run(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.rdb")
}

func TestMergerRunMissingInput(t *testing.T) {
	m, err := NewMerger(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, m.Run(filepath.Join(t.TempDir(), "nope.rdb")))
}

func TestMergerRunNoInputs(t *testing.T) {
	m, err := NewMerger(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, m.Run())
}

func TestMergerRunCompressed(t *testing.T) {
	dir := t.TempDir()
	long := string(bytes.Repeat([]byte("pattern"), 300))
	in := writeDump(t, dir, "in.rdb", imageOf(t, 0, "big", long))

	out := t.TempDir()
	m, err := NewMerger(out, WithCompression())
	require.NoError(t, err)
	require.NoError(t, m.Run(in))

	merged := readDump(t, filepath.Join(out, "MERGE.rdb"))
	assert.Equal(t, long, recordValue(t, merged, 0, "big"))

	info, err := os.Stat(filepath.Join(out, "MERGE.rdb"))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(long)))
}

func TestNewMergerBadOutputDir(t *testing.T) {
	_, err := NewMerger(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewMerger(file)
	assert.Error(t, err)
}

func TestDBSet(t *testing.T) {
	set := make(dbSet)
	assert.False(t, set.Contains(3))
	set.Add(3)
	assert.True(t, set.Contains(3))
	assert.False(t, set.Contains(0))
}
