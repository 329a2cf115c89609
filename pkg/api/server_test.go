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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milestone-media/milestone/pkg/config"
	"github.com/milestone-media/milestone/pkg/copier"
	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/database/catalogdb"
	"github.com/milestone-media/milestone/pkg/exports"
	"github.com/milestone-media/milestone/pkg/hasher"
	"github.com/milestone-media/milestone/pkg/matcher"
	"github.com/milestone-media/milestone/pkg/opqueue"
	"github.com/milestone-media/milestone/pkg/scanner"
)

type apiFixture struct {
	catalog *catalogdb.CatalogDB
	router  http.Handler
}

func newAPIFixture(t *testing.T, writeMode bool) *apiFixture {
	t.Helper()

	dataDir := t.TempDir()
	cfg := config.NewInstance(writeMode, "", 0, dataDir)

	catalog, err := catalogdb.OpenCatalogDB(context.Background(),
		filepath.Join(dataDir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	clock := clockwork.NewRealClock()
	scanSvc := scanner.NewService(catalog, filepath.Join(dataDir, "logs"), clock)
	hashSvc := hasher.NewService(catalog)
	match := matcher.NewMatcher(catalog)
	picker := copier.NewPicker(catalog, func(_ context.Context, _ string) (uint64, uint64, error) {
		return 1 << 44, 1 << 45, nil
	})
	queue := opqueue.NewService(catalog, picker, clock)
	exporter := exports.NewExporter(catalog)

	server := NewServer(cfg, catalog, scanSvc, hashSvc, queue, match, picker, exporter)
	return &apiFixture{catalog: catalog, router: server.Router()}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestIndexHealthMode(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)

	w := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var index map[string]any
	decodeBody(t, w, &index)
	assert.Equal(t, "Milestone", index["name"])

	w = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/mode", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var mode map[string]any
	decodeBody(t, w, &mode)
	assert.Equal(t, false, mode["write_mode"])
}

func TestWriteModeGating(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)

	gated := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/ops/copy", map[string]any{"source_file_id": 1}},
		{http.MethodPost, "/ops/copy/batch", map[string]any{"media_item_id": 1}},
		{http.MethodPost, "/cleanup/quarantine", map[string]any{"file_ids": []int64{1}}},
		{http.MethodPost, "/cleanup/restore", map[string]any{"file_ids": []int64{1}}},
		{http.MethodPatch, "/items/1", map[string]any{"title": "x"}},
	}
	for _, tc := range gated {
		w := f.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", tc.method, tc.path)
	}

	// read endpoints stay open
	w := f.do(t, http.MethodGet, "/items/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterDrive(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)
	mount := t.TempDir()

	w := f.do(t, http.MethodPost, "/drives/register", map[string]any{"mount_path": mount})
	require.Equal(t, http.StatusCreated, w.Code)
	var drive driveResponse
	decodeBody(t, w, &drive)
	assert.Equal(t, mount, drive.MountPath)
	assert.Positive(t, drive.DBID)

	// duplicate registration conflicts
	w = f.do(t, http.MethodPost, "/drives/register", map[string]any{"mount_path": mount})
	assert.Equal(t, http.StatusConflict, w.Code)

	// nonexistent directory is rejected
	w = f.do(t, http.MethodPost, "/drives/register",
		map[string]any{"mount_path": filepath.Join(mount, "nope")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// missing field fails validation
	w = f.do(t, http.MethodPost, "/drives/register", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/drives/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list driveListResponse
	decodeBody(t, w, &list)
	assert.Len(t, list.Drives, 1)
}

func TestRootsEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)
	mount := t.TempDir()
	library := filepath.Join(mount, "library")
	require.NoError(t, os.MkdirAll(library, 0o750))

	w := f.do(t, http.MethodPost, "/drives/register", map[string]any{"mount_path": mount})
	require.Equal(t, http.StatusCreated, w.Code)
	var drive driveResponse
	decodeBody(t, w, &drive)

	w = f.do(t, http.MethodPost, "/roots/", map[string]any{
		"drive_id": drive.DBID, "path": library,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var root database.Root
	decodeBody(t, w, &root)
	assert.Equal(t, library, root.Path)

	// a root outside the drive mount is rejected
	w = f.do(t, http.MethodPost, "/roots/", map[string]any{
		"drive_id": drive.DBID, "path": t.TempDir(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, fmt.Sprintf("/roots/%d", root.DBID),
		map[string]any{"excluded": true})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &root)
	assert.True(t, root.Excluded)

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/roots/%d", root.DBID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodDelete, fmt.Sprintf("/roots/%d", root.DBID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDriveWithRoots(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)
	mount := t.TempDir()

	w := f.do(t, http.MethodPost, "/drives/register", map[string]any{"mount_path": mount})
	require.Equal(t, http.StatusCreated, w.Code)
	var drive driveResponse
	decodeBody(t, w, &drive)

	w = f.do(t, http.MethodPost, "/roots/", map[string]any{
		"drive_id": drive.DBID, "path": mount,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/drives/%d", drive.DBID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestFilesEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)

	w := f.do(t, http.MethodGet, "/files/?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list fileListResponse
	decodeBody(t, w, &list)
	assert.Equal(t, int64(0), list.Total)
	assert.Equal(t, 10, list.PageSize)

	w = f.do(t, http.MethodGet, "/files/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats database.FileStats
	decodeBody(t, w, &stats)
	assert.Equal(t, int64(0), stats.TotalFiles)

	w = f.do(t, http.MethodPost, "/files/9999/open-folder", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScanEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)

	w := f.do(t, http.MethodGet, "/scan/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status scanner.Status
	decodeBody(t, w, &status)
	assert.Equal(t, scanner.StateIdle, status.State)

	// controls are rejected while idle
	w = f.do(t, http.MethodPost, "/scan/control", map[string]any{"action": "pause"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodPost, "/scan/control", map[string]any{"action": "explode"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// unknown drives cannot be scanned
	w = f.do(t, http.MethodPost, "/scan/start", map[string]any{"drive_id": 42})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// a scan over zero roots completes immediately
	w = f.do(t, http.MethodPost, "/scan/start", map[string]any{"throttle": "fast"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool {
		resp := f.do(t, http.MethodGet, "/scan/status", nil)
		var s scanner.Status
		decodeBody(t, resp, &s)
		return s.State == scanner.StateCompleted
	}, 10*time.Second, 10*time.Millisecond)
}

func TestHashEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)

	w := f.do(t, http.MethodGet, "/hash/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status hasher.Status
	decodeBody(t, w, &status)
	assert.Equal(t, hasher.StateIdle, status.State)

	// nothing to hash yet
	w = f.do(t, http.MethodPost, "/hash/compute", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	decodeBody(t, w, &resp)
	assert.Equal(t, "no pending files to hash", resp["message"])

	w = f.do(t, http.MethodPost, "/hash/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Equal(t, false, resp["stopped"])

	w = f.do(t, http.MethodPost, "/hash/file/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestItemsEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, true)

	w := f.do(t, http.MethodGet, "/items/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list itemListResponse
	decodeBody(t, w, &list)
	assert.Equal(t, int64(0), list.Total)

	w = f.do(t, http.MethodGet, "/items/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/items/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// patch with no fields is rejected
	w = f.do(t, http.MethodPatch, "/items/1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// merge validation requires sources
	w = f.do(t, http.MethodPost, "/items/merge", map[string]any{"target_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/items/process", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats matcher.ProcessStats
	decodeBody(t, w, &stats)
	assert.Equal(t, int64(0), stats.Processed)
}

func TestOpsEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, true)

	w := f.do(t, http.MethodGet, "/ops/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list operationListResponse
	decodeBody(t, w, &list)
	assert.Equal(t, int64(0), list.Total)

	w = f.do(t, http.MethodGet, "/ops/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// copy of an unknown file
	w = f.do(t, http.MethodPost, "/ops/copy", map[string]any{"source_file_id": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/ops/queue/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]any
	decodeBody(t, w, &status)
	assert.Equal(t, false, status["running"])
	assert.InDelta(t, 0, status["pending_count"], 0.1)

	w = f.do(t, http.MethodPost, "/ops/queue/concurrency", map[string]any{"limit": 5})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &status)
	assert.InDelta(t, 5, status["concurrency"], 0.1)

	// limits outside 1..10 fail validation
	w = f.do(t, http.MethodPost, "/ops/queue/concurrency", map[string]any{"limit": 50})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/ops/9999/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRulesEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)
	mount := t.TempDir()

	w := f.do(t, http.MethodPost, "/drives/register", map[string]any{"mount_path": mount})
	require.Equal(t, http.StatusCreated, w.Code)
	var drive driveResponse
	decodeBody(t, w, &drive)

	w = f.do(t, http.MethodPost, "/ops/rules/", map[string]any{
		"rule_type": "prefer_all", "drive_id": drive.DBID, "priority": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var rule database.UserRule
	decodeBody(t, w, &rule)
	assert.Equal(t, database.RulePreferAll, rule.RuleType)

	// unknown rule types fail validation
	w = f.do(t, http.MethodPost, "/ops/rules/", map[string]any{
		"rule_type": "banish", "drive_id": drive.DBID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/ops/rules/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/ops/rules/%d", rule.DBID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodDelete, fmt.Sprintf("/ops/rules/%d", rule.DBID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCleanupRecommendationsEmpty(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)

	w := f.do(t, http.MethodGet, "/cleanup/recommendations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	decodeBody(t, w, &resp)
	assert.InDelta(t, 0, resp["total_items"], 0.1)
}

func TestExportEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, false)

	for path, filename := range map[string]string{
		"/exports/at-risk":    "at_risk_report.csv",
		"/exports/inventory":  "full_inventory.csv",
		"/exports/duplicates": "duplicates_report.csv",
	} {
		w := f.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv", path)
		assert.Contains(t, w.Header().Get("Content-Disposition"), filename, path)
		assert.NotEmpty(t, w.Body.String(), path)
	}
}
