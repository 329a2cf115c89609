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

// Package scanner walks library roots and reconciles the filesystem with
// the catalog: new files are inserted, changed files restatted, and files
// that disappeared are marked missing. Scans run in the background and can
// be paused, resumed, and cancelled.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/helpers/syncutil"
)

// Scan states.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StatePaused    = "paused"
	StateCompleted = "completed"
	StateCancelled = "cancelled"
)

// Throttle levels trade scan speed against disk contention.
const (
	ThrottleLow    = "low"
	ThrottleNormal = "normal"
	ThrottleFast   = "fast"
)

const pausePollInterval = 500 * time.Millisecond

// ThrottleDelay returns the per-file delay for a throttle level. Unknown
// levels behave like normal.
func ThrottleDelay(level string) time.Duration {
	switch level {
	case ThrottleLow:
		return 100 * time.Millisecond
	case ThrottleFast:
		return 0
	default:
		return 10 * time.Millisecond
	}
}

// ValidThrottle reports whether level names a known throttle setting.
func ValidThrottle(level string) bool {
	switch level {
	case ThrottleLow, ThrottleNormal, ThrottleFast:
		return true
	default:
		return false
	}
}

// Status is a snapshot of the running or last scan.
type Status struct {
	StartedAt    *time.Time `json:"started_at"`
	CurrentRoot  *string    `json:"current_root"`
	State        string     `json:"state"`
	SessionID    string     `json:"session_id"`
	FilesScanned int64      `json:"files_scanned"`
	FilesNew     int64      `json:"files_new"`
	FilesUpdated int64      `json:"files_updated"`
	FilesMissing int64      `json:"files_missing"`
}

// Service runs filesystem scans. At most one scan runs at a time.
type Service struct {
	catalog    database.CatalogI
	clock      clockwork.Clock
	startedAt  *time.Time
	currentRoot *string
	state      string
	sessionID  string
	logDir     string
	scanned    int64
	added      int64
	updated    int64
	missing    int64
	cancelReq  bool
	pauseReq   bool
	mu         syncutil.RWMutex
}

func NewService(catalog database.CatalogI, logDir string, clock clockwork.Clock) *Service {
	return &Service{
		catalog: catalog,
		clock:   clock,
		logDir:  logDir,
		state:   StateIdle,
	}
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		State:        s.state,
		SessionID:    s.sessionID,
		CurrentRoot:  s.currentRoot,
		FilesScanned: s.scanned,
		FilesNew:     s.added,
		FilesUpdated: s.updated,
		FilesMissing: s.missing,
		StartedAt:    s.startedAt,
	}
}

// Start launches a background scan of the given drive, or every drive when
// driveID is nil. Returns false if a scan is already in progress.
func (s *Service) Start(ctx context.Context, driveID *int64, throttle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning || s.state == StatePaused {
		return false
	}

	now := s.clock.Now()
	s.state = StateRunning
	s.sessionID = uuid.NewString()
	s.startedAt = &now
	s.currentRoot = nil
	s.scanned = 0
	s.added = 0
	s.updated = 0
	s.missing = 0
	s.cancelReq = false
	s.pauseReq = false

	go s.run(ctx, driveID, throttle)
	return true
}

// Pause asks the running scan to hold after the current file.
func (s *Service) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return false
	}
	s.pauseReq = true
	return true
}

// Resume continues a paused scan.
func (s *Service) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return false
	}
	s.pauseReq = false
	return true
}

// Cancel stops the scan. Files already reconciled stay in the catalog.
func (s *Service) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning && s.state != StatePaused {
		return false
	}
	s.cancelReq = true
	s.pauseReq = false
	return true
}

func (s *Service) cancelled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancelReq
}

// waitWhilePaused blocks while a pause is requested, flipping the public
// state so callers can observe it. Returns false when cancelled.
func (s *Service) waitWhilePaused(ctx context.Context) bool {
	for {
		s.mu.Lock()
		if s.cancelReq {
			s.mu.Unlock()
			return false
		}
		if !s.pauseReq {
			s.state = StateRunning
			s.mu.Unlock()
			return true
		}
		s.state = StatePaused
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-s.clock.After(pausePollInterval):
		}
	}
}

func (s *Service) run(ctx context.Context, driveID *int64, throttle string) {
	slog, err := newScanLog(s.logDir, s.sessionID, s.clock)
	if err != nil {
		log.Error().Err(err).Msg("failed to open scan logs")
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return
	}
	defer slog.Close()

	slog.Event("scan_started", map[string]any{
		"drive_id": driveID,
		"throttle": throttle,
	})

	roots, err := s.catalog.ListRoots(driveID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list roots for scan")
		slog.Event("scan_error", map[string]any{"error": err.Error()})
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return
	}

	for _, root := range roots {
		if root.Excluded {
			continue
		}
		if s.cancelled() || ctx.Err() != nil {
			break
		}

		s.mu.Lock()
		rootPath := root.Path
		s.currentRoot = &rootPath
		s.mu.Unlock()

		slog.Event("scanning_root", map[string]any{
			"root_id": root.DBID,
			"path":    root.Path,
		})

		added, updated := s.scanRoot(ctx, root, throttle, slog)
		slog.Event("root_complete", map[string]any{
			"root_id": root.DBID,
			"new":     added,
			"updated": updated,
		})
	}

	s.mu.Lock()
	if s.cancelReq || ctx.Err() != nil {
		s.state = StateCancelled
	} else {
		s.state = StateCompleted
	}
	finalState := s.state
	s.currentRoot = nil
	s.mu.Unlock()

	slog.Event("scan_complete", map[string]any{
		"state":         finalState,
		"files_scanned": s.Status().FilesScanned,
		"files_new":     s.Status().FilesNew,
		"files_updated": s.Status().FilesUpdated,
		"files_missing": s.Status().FilesMissing,
	})
	log.Info().
		Str("state", finalState).
		Str("session_id", s.sessionID).
		Msg("scan finished")
}

// scanRoot walks one root and reconciles every regular file it finds, then
// marks files not seen by this pass as missing.
func (s *Service) scanRoot(ctx context.Context, root database.Root, throttle string, slog *scanLog) (added, updated int64) {
	delay := ThrottleDelay(throttle)
	scanTime := s.clock.Now()

	err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
		if s.cancelled() || ctx.Err() != nil {
			slog.Event("scan_cancelled", map[string]any{"root": root.Path})
			return fs.SkipAll
		}
		if !s.waitWhilePaused(ctx) {
			return fs.SkipAll
		}
		if err != nil {
			slog.Event("file_error", map[string]any{"path": path, "error": err.Error()})
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Event("file_error", map[string]any{"path": path, "error": err.Error()})
			return nil
		}

		isNew, wasUpdated, err := s.reconcileFile(root.DBID, path, info, scanTime)
		if err != nil {
			slog.Event("file_error", map[string]any{"path": path, "error": err.Error()})
			return nil
		}

		s.mu.Lock()
		s.scanned++
		if isNew {
			s.added++
			added++
		}
		if wasUpdated {
			s.updated++
			updated++
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-ctx.Done():
				return fs.SkipAll
			case <-s.clock.After(delay):
			}
		}
		return nil
	})
	if err != nil {
		slog.Event("file_error", map[string]any{"path": root.Path, "error": err.Error()})
	}

	if s.cancelled() || ctx.Err() != nil {
		return added, updated
	}

	missing, err := s.catalog.MarkMissingFiles(root.DBID, scanTime)
	if err != nil {
		log.Error().Err(err).Int64("root_id", root.DBID).Msg("failed to mark missing files")
		return added, updated
	}
	s.mu.Lock()
	s.missing += missing
	s.mu.Unlock()
	return added, updated
}

func (s *Service) reconcileFile(rootID int64, path string, info fs.FileInfo, scanTime time.Time) (isNew, updated bool, err error) {
	size := info.Size()
	mtime := info.ModTime().UnixNano()
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	existing, err := s.catalog.FindFileByPath(rootID, path)
	switch {
	case err == nil:
		if existing.Mtime != mtime {
			err = s.catalog.UpdateFileStat(existing.DBID, size, mtime, ext, scanTime)
			return false, true, err
		}
		return false, false, s.catalog.TouchFile(existing.DBID, scanTime)
	case errors.Is(err, database.ErrNotFound):
		_, err = s.catalog.InsertFile(&database.File{
			RootDBID:   rootID,
			Path:       path,
			Size:       size,
			Mtime:      mtime,
			Ext:        ext,
			LastSeen:   &scanTime,
			HashStatus: database.HashStatusPending,
		})
		return true, false, err
	default:
		return false, false, err
	}
}
