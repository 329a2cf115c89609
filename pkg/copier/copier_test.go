// Milestone
// Copyright (c) 2026 The Milestone Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Milestone.
//
// Milestone is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Milestone is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Milestone.  If not, see <http://www.gnu.org/licenses/>.

package copier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mkv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSafeCopy(t *testing.T) {
	t.Parallel()

	source := writeSource(t, "some video bytes")
	dest := filepath.Join(t.TempDir(), "nested", "dir", "copy.mkv")

	var lastProgress int64
	err := SafeCopy(context.Background(), source, dest, CopyOptions{
		VerifyHash: true,
		Progress:   func(n int64) { lastProgress = n },
	})
	require.NoError(t, err)

	copied, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "some video bytes", string(copied))
	assert.Equal(t, int64(len("some video bytes")), lastProgress)

	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSafeCopyDestinationExists(t *testing.T) {
	t.Parallel()

	source := writeSource(t, "new content")
	dest := filepath.Join(t.TempDir(), "copy.mkv")
	require.NoError(t, os.WriteFile(dest, []byte("old content"), 0o600))

	err := SafeCopy(context.Background(), source, dest, CopyOptions{})
	require.ErrorIs(t, err, ErrDestinationExists)

	untouched, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old content", string(untouched))
}

func TestSafeCopyOverwrite(t *testing.T) {
	t.Parallel()

	source := writeSource(t, "new content")
	dest := filepath.Join(t.TempDir(), "copy.mkv")
	require.NoError(t, os.WriteFile(dest, []byte("old content"), 0o600))

	err := SafeCopy(context.Background(), source, dest, CopyOptions{Overwrite: true, VerifyHash: true})
	require.NoError(t, err)

	replaced, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(replaced))
}

func TestSafeCopyHashMismatch(t *testing.T) {
	t.Parallel()

	// same length as the replacement so only the hash check can catch it
	source := writeSource(t, "original content")
	dest := filepath.Join(t.TempDir(), "copy.mkv")

	// rewrite the source mid-copy; verification re-reads it afterwards
	tampered := false
	err := SafeCopy(context.Background(), source, dest, CopyOptions{
		VerifyHash: true,
		Progress: func(int64) {
			if !tampered {
				tampered = true
				require.NoError(t, os.WriteFile(source, []byte("tampered content"), 0o600))
			}
		},
	})
	require.ErrorIs(t, err, ErrHashMismatch)

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSafeCopyMissingSource(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "copy.mkv")
	err := SafeCopy(context.Background(), filepath.Join(t.TempDir(), "nope.mkv"), dest, CopyOptions{})
	require.Error(t, err)

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestSafeCopyDirectorySource(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "copy.mkv")
	err := SafeCopy(context.Background(), t.TempDir(), dest, CopyOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")
}

func TestSafeCopyCancelled(t *testing.T) {
	t.Parallel()

	source := writeSource(t, "content")
	dest := filepath.Join(t.TempDir(), "copy.mkv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SafeCopy(ctx, source, dest, CopyOptions{})
	require.ErrorIs(t, err, context.Canceled)

	// neither the destination nor its temp file may survive a cancel
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
