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
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/database/catalogdb"
)

type pickerFixture struct {
	catalog *catalogdb.CatalogDB
	space   map[string]uint64
	source  database.File
	drives  map[string]database.Drive
}

// newPickerFixture seeds a source drive holding one 1 GiB file plus extra
// drives whose free space the test controls by mount path.
func newPickerFixture(t *testing.T, mounts ...string) *pickerFixture {
	t.Helper()
	catalog, err := catalogdb.OpenCatalogDB(context.Background(),
		filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	f := &pickerFixture{
		catalog: catalog,
		space:   map[string]uint64{},
		drives:  map[string]database.Drive{},
	}

	sourceDrive, err := catalog.AddDrive(&database.Drive{MountPath: "/mnt/source"})
	require.NoError(t, err)
	f.drives["/mnt/source"] = sourceDrive
	root, err := catalog.AddRoot(&database.Root{DriveDBID: sourceDrive.DBID, Path: "/mnt/source/library"})
	require.NoError(t, err)

	now := time.Now()
	f.source, err = catalog.InsertFile(&database.File{
		RootDBID: root.DBID,
		Path:     "/mnt/source/library/movie.mkv",
		Size:     1 << 30,
		Mtime:    now.UnixNano(),
		Ext:      "mkv",
		LastSeen: &now,
	})
	require.NoError(t, err)

	for _, mount := range mounts {
		drive, err := catalog.AddDrive(&database.Drive{MountPath: mount})
		require.NoError(t, err)
		f.drives[mount] = drive
	}
	return f
}

func (f *pickerFixture) picker() *Picker {
	return NewPicker(f.catalog, func(_ context.Context, mount string) (uint64, uint64, error) {
		free, ok := f.space[mount]
		if !ok {
			return 0, 0, errors.New("mount not reachable")
		}
		return free, free * 2, nil
	})
}

func TestRequiredSpace(t *testing.T) {
	t.Parallel()

	// small files get the flat 10 GiB headroom
	assert.Equal(t, uint64(1<<30)+uint64(minHeadroom), requiredSpace(1<<30))
	// huge files get 10% instead
	huge := int64(200 * 1024 * 1024 * 1024)
	assert.Equal(t, uint64(huge+huge/10), requiredSpace(huge))
}

func TestPickDestinationsExcludesSourceDrive(t *testing.T) {
	t.Parallel()
	f := newPickerFixture(t, "/mnt/dest1")
	f.space["/mnt/source"] = 1 << 44
	f.space["/mnt/dest1"] = 1 << 44

	candidates, err := f.picker().PickDestinations(context.Background(), f.source.DBID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "/mnt/dest1", candidates[0].Drive.MountPath)
}

func TestPickDestinationsHeadroomBoundary(t *testing.T) {
	t.Parallel()
	f := newPickerFixture(t, "/mnt/tight", "/mnt/roomy")

	need := requiredSpace(f.source.Size)
	f.space["/mnt/tight"] = need - 1
	f.space["/mnt/roomy"] = need

	candidates, err := f.picker().PickDestinations(context.Background(), f.source.DBID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "/mnt/roomy", candidates[0].Drive.MountPath)
}

func TestPickDestinationsSkipsUnreachable(t *testing.T) {
	t.Parallel()
	f := newPickerFixture(t, "/mnt/dead", "/mnt/alive")
	// /mnt/dead has no space entry, the fake reports it unreachable
	f.space["/mnt/alive"] = 1 << 44

	candidates, err := f.picker().PickDestinations(context.Background(), f.source.DBID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "/mnt/alive", candidates[0].Drive.MountPath)
}

func TestPickDestinationsDenylist(t *testing.T) {
	t.Parallel()
	f := newPickerFixture(t, "/mnt/banned", "/mnt/ok")
	f.space["/mnt/banned"] = 1 << 44
	f.space["/mnt/ok"] = 1 << 44

	_, err := f.catalog.AddRule(&database.UserRule{
		RuleType:  database.RuleDenylist,
		DriveDBID: f.drives["/mnt/banned"].DBID,
	})
	require.NoError(t, err)

	candidates, err := f.picker().PickDestinations(context.Background(), f.source.DBID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "/mnt/ok", candidates[0].Drive.MountPath)
}

func TestPickDestinationsPreferredBeatsFreeSpace(t *testing.T) {
	t.Parallel()
	f := newPickerFixture(t, "/mnt/big", "/mnt/preferred")
	f.space["/mnt/big"] = 1 << 45
	f.space["/mnt/preferred"] = 1 << 44

	_, err := f.catalog.AddRule(&database.UserRule{
		RuleType:  database.RulePreferAll,
		DriveDBID: f.drives["/mnt/preferred"].DBID,
	})
	require.NoError(t, err)

	candidates, err := f.picker().PickDestinations(context.Background(), f.source.DBID)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "/mnt/preferred", candidates[0].Drive.MountPath)
	assert.True(t, candidates[0].Preferred)
	assert.Equal(t, "/mnt/big", candidates[1].Drive.MountPath)
}

func TestPickDestinationsOrdersByFreeSpace(t *testing.T) {
	t.Parallel()
	f := newPickerFixture(t, "/mnt/a", "/mnt/b", "/mnt/c")
	f.space["/mnt/a"] = 2 << 40
	f.space["/mnt/b"] = 8 << 40
	f.space["/mnt/c"] = 4 << 40

	candidates, err := f.picker().PickDestinations(context.Background(), f.source.DBID)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "/mnt/b", candidates[0].Drive.MountPath)
	assert.Equal(t, "/mnt/c", candidates[1].Drive.MountPath)
	assert.Equal(t, "/mnt/a", candidates[2].Drive.MountPath)
}

func TestPickDestinationsMissingFile(t *testing.T) {
	t.Parallel()
	f := newPickerFixture(t)

	_, err := f.picker().PickDestinations(context.Background(), 9999)
	require.ErrorIs(t, err, database.ErrNotFound)
}
