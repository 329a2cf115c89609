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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milestone-media/milestone/pkg/copier"
	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/database/catalogdb"
)

type queueFixture struct {
	catalog   *catalogdb.CatalogDB
	service   *Service
	source    database.File
	sourceDir string
	destDir   string
	destDrive database.Drive
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()

	catalog, err := catalogdb.OpenCatalogDB(context.Background(),
		filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	sourceDir := t.TempDir()
	destDir := t.TempDir()

	sourceDrive, err := catalog.AddDrive(&database.Drive{MountPath: sourceDir})
	require.NoError(t, err)
	destDrive, err := catalog.AddDrive(&database.Drive{MountPath: destDir})
	require.NoError(t, err)
	root, err := catalog.AddRoot(&database.Root{DriveDBID: sourceDrive.DBID, Path: sourceDir})
	require.NoError(t, err)

	sourcePath := filepath.Join(sourceDir, "movie.mkv")
	require.NoError(t, os.WriteFile(sourcePath, []byte("movie bytes"), 0o600))
	info, err := os.Stat(sourcePath)
	require.NoError(t, err)

	now := time.Now()
	source, err := catalog.InsertFile(&database.File{
		RootDBID: root.DBID,
		Path:     sourcePath,
		Size:     info.Size(),
		Mtime:    info.ModTime().UnixNano(),
		Ext:      "mkv",
		LastSeen: &now,
	})
	require.NoError(t, err)

	// every drive looks healthy and roomy to the picker
	picker := copier.NewPicker(catalog, func(_ context.Context, _ string) (uint64, uint64, error) {
		return 1 << 44, 1 << 45, nil
	})

	svc := NewService(catalog, picker, clockwork.NewRealClock())
	t.Cleanup(svc.Stop)

	return &queueFixture{
		catalog:   catalog,
		service:   svc,
		source:    source,
		sourceDir: sourceDir,
		destDir:   destDir,
		destDrive: destDrive,
	}
}

func waitForOpStatus(t *testing.T, catalog *catalogdb.CatalogDB, opID int64, status string) database.OperationDetail {
	t.Helper()
	var op database.OperationDetail
	require.Eventually(t, func() bool {
		var err error
		op, err = catalog.GetOperation(opID)
		return err == nil && op.Status == status
	}, 15*time.Second, 20*time.Millisecond)
	return op
}

func TestCreateCopyAutoPicksDestination(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	op, err := f.service.CreateCopy(context.Background(), f.source.DBID, nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, database.OpStatusPending, op.Status)
	assert.Equal(t, f.destDrive.DBID, op.DestDriveDBID)
	assert.Equal(t, filepath.Join(f.destDir, "movie.mkv"), op.DestPath)
	assert.Equal(t, f.source.Size, op.TotalSize)
	assert.True(t, op.VerifyHash)
}

func TestCreateCopyExplicitDestination(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	target := filepath.Join(f.destDir, "backups", "movie.mkv")
	op, err := f.service.CreateCopy(context.Background(), f.source.DBID, &f.destDrive.DBID, &target, false)
	require.NoError(t, err)
	assert.Equal(t, target, op.DestPath)
	assert.False(t, op.VerifyHash)
}

func TestCreateCopyDestinationOnDisk(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	existing := filepath.Join(f.destDir, "movie.mkv")
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0o600))

	_, err := f.service.CreateCopy(context.Background(), f.source.DBID, nil, nil, true)
	require.ErrorIs(t, err, database.ErrConflict)
}

func TestCreateCopyNoDestination(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	// denylist the only other drive
	_, err := f.catalog.AddRule(&database.UserRule{
		RuleType:  database.RuleDenylist,
		DriveDBID: f.destDrive.DBID,
	})
	require.NoError(t, err)

	_, err = f.service.CreateCopy(context.Background(), f.source.DBID, nil, nil, true)
	require.ErrorIs(t, err, database.ErrInvalid)
}

func TestQueueProcessesCopy(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	op, err := f.service.CreateCopy(context.Background(), f.source.DBID, nil, nil, true)
	require.NoError(t, err)

	f.service.Start(context.Background())
	done := waitForOpStatus(t, f.catalog, op.DBID, database.OpStatusCompleted)
	assert.Equal(t, op.TotalSize, done.Progress)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	copied, err := os.ReadFile(op.DestPath)
	require.NoError(t, err)
	assert.Equal(t, "movie bytes", string(copied))
}

func TestQueueFailsMissingSource(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	op, err := f.service.CreateCopy(context.Background(), f.source.DBID, nil, nil, true)
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.source.Path))

	f.service.Start(context.Background())
	failed := waitForOpStatus(t, f.catalog, op.DBID, database.OpStatusFailed)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "failed to stat source")
}

func TestOperationPauseResumeCancel(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	op, err := f.service.CreateCopy(context.Background(), f.source.DBID, nil, nil, true)
	require.NoError(t, err)

	require.NoError(t, f.service.PauseOperation(op.DBID))
	got, err := f.catalog.GetOperation(op.DBID)
	require.NoError(t, err)
	assert.Equal(t, database.OpStatusPaused, got.Status)

	// pausing twice is rejected
	require.ErrorIs(t, f.service.PauseOperation(op.DBID), database.ErrInvalid)

	require.NoError(t, f.service.ResumeOperation(op.DBID))
	got, err = f.catalog.GetOperation(op.DBID)
	require.NoError(t, err)
	assert.Equal(t, database.OpStatusPending, got.Status)

	require.NoError(t, f.service.CancelOperation(op.DBID))
	got, err = f.catalog.GetOperation(op.DBID)
	require.NoError(t, err)
	assert.Equal(t, database.OpStatusCancelled, got.Status)

	// terminal operations cannot be cancelled again
	require.ErrorIs(t, f.service.CancelOperation(op.DBID), database.ErrInvalid)
	require.ErrorIs(t, f.service.ResumeOperation(op.DBID), database.ErrInvalid)
}

func TestSetConcurrencyClamps(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	assert.Equal(t, MinConcurrency, f.service.SetConcurrency(0))
	assert.Equal(t, MaxConcurrency, f.service.SetConcurrency(50))
	assert.Equal(t, 4, f.service.SetConcurrency(4))
	assert.Equal(t, 4, f.service.Status().Concurrency)
}

func TestQueuePauseStopsClaims(t *testing.T) {
	t.Parallel()
	f := newQueueFixture(t)

	f.service.Start(context.Background())
	f.service.Pause()
	op, err := f.service.CreateCopy(context.Background(), f.source.DBID, nil, nil, true)
	require.NoError(t, err)

	// a paused queue never claims, even across several poll cycles
	assert.True(t, f.service.Status().Running)
	time.Sleep(2500 * time.Millisecond)
	got, err := f.catalog.GetOperation(op.DBID)
	require.NoError(t, err)
	assert.Equal(t, database.OpStatusPending, got.Status)

	f.service.Resume()
	waitForOpStatus(t, f.catalog, op.DBID, database.OpStatusCompleted)
}
