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

package matcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/database/catalogdb"
)

type fixture struct {
	catalog *catalogdb.CatalogDB
	matcher *Matcher
	root    database.Root
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := catalogdb.OpenCatalogDB(context.Background(),
		filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	drive, err := catalog.AddDrive(&database.Drive{MountPath: "/mnt/media1"})
	require.NoError(t, err)
	root, err := catalog.AddRoot(&database.Root{DriveDBID: drive.DBID, Path: "/mnt/media1/library"})
	require.NoError(t, err)

	return &fixture{
		catalog: catalog,
		matcher: NewMatcher(catalog),
		root:    root,
	}
}

func (f *fixture) addFile(t *testing.T, path string, quickSig, fullHash *string) database.File {
	t.Helper()
	now := time.Now()
	file, err := f.catalog.InsertFile(&database.File{
		RootDBID: f.root.DBID,
		Path:     path,
		Size:     1024,
		Mtime:    now.UnixNano(),
		Ext:      "mkv",
		LastSeen: &now,
	})
	require.NoError(t, err)
	if quickSig != nil || fullHash != nil {
		require.NoError(t, f.catalog.SetFileHashes(file.DBID, quickSig, fullHash, database.HashStatusComplete))
	}
	out, err := f.catalog.GetFile(file.DBID)
	require.NoError(t, err)
	return out
}

func strPtr(s string) *string { return &s }

func TestLinkFileCreatesItemFromPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	file := f.addFile(t, "/mnt/media1/library/Heat (1995).mkv", nil, nil)
	result, err := f.matcher.LinkFile(file.DBID)
	require.NoError(t, err)
	assert.True(t, result.Created)

	item, err := f.catalog.GetItem(result.ItemID)
	require.NoError(t, err)
	assert.Equal(t, database.MediaTypeMovie, item.Type)
	require.NotNil(t, item.Title)
	assert.Equal(t, "Heat", *item.Title)
	require.NotNil(t, item.Year)
	assert.Equal(t, int64(1995), *item.Year)
	assert.Equal(t, database.ItemStatusAuto, item.Status)
}

func TestLinkFileFullHashMatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	original := f.addFile(t, "/mnt/media1/library/Heat (1995).mkv",
		strPtr("1024:aa:bb"), strPtr("samehash"))
	first, err := f.matcher.LinkFile(original.DBID)
	require.NoError(t, err)
	require.True(t, first.Created)

	duplicate := f.addFile(t, "/mnt/media1/library/backup/Heat (1995).mkv",
		strPtr("1024:cc:dd"), strPtr("samehash"))
	second, err := f.matcher.LinkFile(duplicate.DBID)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.ItemID, second.ItemID)

	// a full hash match keeps the item status untouched
	item, err := f.catalog.GetItem(first.ItemID)
	require.NoError(t, err)
	assert.Equal(t, database.ItemStatusAuto, item.Status)

	count, err := f.catalog.CountItemFiles(first.ItemID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestLinkFileQuickSigFlagsVerification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	original := f.addFile(t, "/mnt/media1/library/Heat (1995).mkv",
		strPtr("1024:aa:bb"), strPtr("hash-one"))
	first, err := f.matcher.LinkFile(original.DBID)
	require.NoError(t, err)

	lookalike := f.addFile(t, "/mnt/media1/library/backup/Heat (1995).mkv",
		strPtr("1024:aa:bb"), nil)
	second, err := f.matcher.LinkFile(lookalike.DBID)
	require.NoError(t, err)
	assert.Equal(t, first.ItemID, second.ItemID)

	item, err := f.catalog.GetItem(first.ItemID)
	require.NoError(t, err)
	assert.Equal(t, database.ItemStatusNeedsVerification, item.Status)
}

func TestLinkFileSkipsNonVideoAndLinked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	subtitle := f.addFile(t, "/mnt/media1/library/Heat (1995).srt", nil, nil)
	result, err := f.matcher.LinkFile(subtitle.DBID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	video := f.addFile(t, "/mnt/media1/library/Heat (1995).mkv", nil, nil)
	_, err = f.matcher.LinkFile(video.DBID)
	require.NoError(t, err)
	again, err := f.matcher.LinkFile(video.DBID)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
}

func TestProcessUnlinked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.addFile(t, "/mnt/media1/library/Heat (1995).mkv", nil, nil)
	f.addFile(t, "/mnt/media1/library/Alien (1979).mkv", nil, nil)
	f.addFile(t, "/mnt/media1/library/notes.txt", nil, nil)

	stats, err := f.matcher.ProcessUnlinked()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(2), stats.NewItems)
	assert.Equal(t, int64(0), stats.Linked)
	assert.Equal(t, int64(1), stats.Skipped)

	// a second pass has nothing left to do
	stats, err = f.matcher.ProcessUnlinked()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Processed)
}

func TestMergeMarksVerified(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	first := f.addFile(t, "/mnt/media1/library/Heat (1995).mkv", nil, nil)
	second := f.addFile(t, "/mnt/media1/library/Heat.1995.1080p.mkv", nil, nil)
	a, err := f.matcher.LinkFile(first.DBID)
	require.NoError(t, err)
	b, err := f.matcher.LinkFile(second.DBID)
	require.NoError(t, err)
	require.NotEqual(t, a.ItemID, b.ItemID)

	moved, err := f.matcher.Merge(a.ItemID, []int64{b.ItemID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	item, err := f.catalog.GetItem(a.ItemID)
	require.NoError(t, err)
	assert.Equal(t, database.ItemStatusVerified, item.Status)

	_, err = f.catalog.GetItem(b.ItemID)
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestSplitRefusesSoleMember(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	file := f.addFile(t, "/mnt/media1/library/Heat (1995).mkv", nil, nil)
	result, err := f.matcher.LinkFile(file.DBID)
	require.NoError(t, err)

	_, _, err = f.matcher.Split(file.DBID)
	require.ErrorIs(t, err, database.ErrInvalid)

	count, err := f.catalog.CountItemFiles(result.ItemID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSplitMovesFileToNewItem(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	first := f.addFile(t, "/mnt/media1/library/Heat (1995).mkv",
		strPtr("1024:aa:bb"), strPtr("shared"))
	second := f.addFile(t, "/mnt/media1/library/Alien (1979).mkv",
		strPtr("1024:cc:dd"), strPtr("shared"))
	a, err := f.matcher.LinkFile(first.DBID)
	require.NoError(t, err)
	b, err := f.matcher.LinkFile(second.DBID)
	require.NoError(t, err)
	require.Equal(t, a.ItemID, b.ItemID)

	item, oldItemID, err := f.matcher.Split(second.DBID)
	require.NoError(t, err)
	assert.Equal(t, a.ItemID, oldItemID)
	assert.NotEqual(t, a.ItemID, item.DBID)
	assert.Equal(t, database.ItemStatusVerified, item.Status)
	require.NotNil(t, item.Title)
	assert.Equal(t, "Alien", *item.Title)

	_, _, err = f.matcher.Split(second.DBID)
	require.ErrorIs(t, err, database.ErrInvalid)
}

func TestSplitUnlinkedFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	file := f.addFile(t, "/mnt/media1/library/loose.mkv", nil, nil)
	_, _, err := f.matcher.Split(file.DBID)
	require.ErrorIs(t, err, database.ErrNotFound)
}
