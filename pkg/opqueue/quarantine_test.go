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

package opqueue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milestone-media/milestone/pkg/database"
)

func TestQuarantineAndRestoreRoundTrip(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	originalPath := f.source.Path
	dateDir := time.Now().Format("2006-01-02")

	result := f.service.Quarantine([]int64{f.source.DBID}, nil)
	require.Empty(t, result.Errors)
	require.Len(t, result.Files, 1)

	moved := result.Files[0]
	assert.Equal(t, originalPath, moved.OriginalPath)
	assert.Equal(t,
		filepath.Join(f.sourceDir, ".quarantine", dateDir, "movie.mkv"),
		moved.QuarantinePath)

	// the file left its old location and sits in quarantine
	_, err := os.Stat(originalPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(moved.QuarantinePath)
	require.NoError(t, err)

	got, err := f.catalog.GetFile(f.source.DBID)
	require.NoError(t, err)
	assert.Equal(t, database.HashStatusQuarantined, got.HashStatus)
	assert.Equal(t, moved.QuarantinePath, got.Path)

	restored := f.service.Restore([]int64{f.source.DBID})
	require.Empty(t, restored.Errors)
	require.Len(t, restored.Files, 1)
	assert.Equal(t, originalPath, restored.Files[0].RestoredPath)

	_, err = os.Stat(originalPath)
	require.NoError(t, err)

	got, err = f.catalog.GetFile(f.source.DBID)
	require.NoError(t, err)
	assert.Equal(t, database.HashStatusPending, got.HashStatus)
	assert.Equal(t, originalPath, got.Path)
}

func TestQuarantinePreservesSubdirectories(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	nested := filepath.Join(f.sourceDir, "movies", "classics", "old.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(nested), 0o750))
	require.NoError(t, os.WriteFile(nested, []byte("data"), 0o600))
	now := time.Now()
	roots, err := f.catalog.ListRoots(nil)
	require.NoError(t, err)
	file, err := f.catalog.InsertFile(&database.File{
		RootDBID: roots[0].DBID,
		Path:     nested,
		Size:     4,
		Mtime:    now.UnixNano(),
		Ext:      "mkv",
		LastSeen: &now,
	})
	require.NoError(t, err)

	result := f.service.Quarantine([]int64{file.DBID}, nil)
	require.Empty(t, result.Errors)
	require.Len(t, result.Files, 1)
	assert.Contains(t, result.Files[0].QuarantinePath,
		filepath.Join(".quarantine", time.Now().Format("2006-01-02"), "movies", "classics"))

	restored := f.service.Restore([]int64{file.DBID})
	require.Empty(t, restored.Errors)
	assert.Equal(t, nested, restored.Files[0].RestoredPath)
}

func TestQuarantineErrorsDoNotAbortBatch(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	result := f.service.Quarantine([]int64{9999, f.source.DBID}, nil)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, int64(9999), result.Errors[0].FileID)
	require.Len(t, result.Files, 1)
	assert.Equal(t, f.source.DBID, result.Files[0].FileID)
}

func TestQuarantineMissingOnDisk(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	require.NoError(t, os.Remove(f.source.Path))
	result := f.service.Quarantine([]int64{f.source.DBID}, nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "does not exist on disk")
	assert.Empty(t, result.Files)
}

func TestRestoreRejectsUnquarantined(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	result := f.service.Restore([]int64{f.source.DBID})
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "not quarantined")
	assert.Empty(t, result.Files)
}

func TestOriginalPathFromQuarantine(t *testing.T) {
	t.Parallel()

	path, err := originalPathFromQuarantine("/mnt/media1/.quarantine/2026-08-25/movies/a.mkv")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/media1/movies/a.mkv", path)

	_, err = originalPathFromQuarantine("/mnt/media1/movies/a.mkv")
	require.Error(t, err)

	_, err = originalPathFromQuarantine("/mnt/media1/.quarantine/2026-08-25")
	require.Error(t, err)
}
