// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReadClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	content := []byte("REDIS0006 not really a dump")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, content, f.Data())
	assert.Equal(t, len(content), f.Len())

	require.NoError(t, f.Close())
	assert.Nil(t, f.Data())
	// closing twice is fine
	require.NoError(t, f.Close())
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
	require.NoError(t, f.Close())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
