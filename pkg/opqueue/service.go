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

// Package opqueue drains the persistent operation queue. Operations live in
// the catalog, so a restart resumes exactly where the previous process
// stopped. The queue also owns quarantine moves, the only other place
// Milestone touches files on disk.
package opqueue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/milestone-media/milestone/pkg/copier"
	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/helpers/syncutil"
)

const (
	DefaultConcurrency = 2
	MinConcurrency     = 1
	MaxConcurrency     = 10

	pausedPollInterval  = time.Second
	busyPollInterval    = 500 * time.Millisecond
	idlePollInterval    = 2 * time.Second
	// progressWriteRate caps catalog progress updates per operation.
	progressWriteRate = rate.Limit(2)
)

// Status is a snapshot of the queue.
type Status struct {
	Running     bool `json:"running"`
	Paused      bool `json:"paused"`
	Concurrency int  `json:"concurrency"`
	ActiveCount int  `json:"active_count"`
}

// Service is the background worker pool for queued operations.
type Service struct {
	catalog     database.CatalogI
	picker      *copier.Picker
	clock       clockwork.Clock
	cancel      context.CancelFunc
	active      map[int64]context.CancelFunc
	concurrency int
	running     bool
	paused      bool
	mu          syncutil.Mutex
}

func NewService(catalog database.CatalogI, picker *copier.Picker, clock clockwork.Clock) *Service {
	return &Service{
		catalog:     catalog,
		picker:      picker,
		clock:       clock,
		concurrency: DefaultConcurrency,
		active:      make(map[int64]context.CancelFunc),
	}
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:     s.running,
		Paused:      s.paused,
		Concurrency: s.concurrency,
		ActiveCount: len(s.active),
	}
}

// Start launches the worker loop. Safe to call when already running.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.paused = false

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.worker(workerCtx)
	log.Info().Msg("operation queue started")
}

// Stop halts the worker loop and cancels in-flight operations.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	log.Info().Msg("operation queue stopped")
}

// Pause stops claiming new operations. In-flight operations finish.
func (s *Service) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume continues claiming operations after a pause.
func (s *Service) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// SetConcurrency clamps and applies the parallel operation limit.
func (s *Service) SetConcurrency(limit int) int {
	if limit < MinConcurrency {
		limit = MinConcurrency
	}
	if limit > MaxConcurrency {
		limit = MaxConcurrency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concurrency = limit
	return limit
}

func (s *Service) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		running := s.running
		paused := s.paused
		room := s.concurrency - len(s.active)
		s.mu.Unlock()

		if !running {
			return
		}
		if paused {
			s.sleep(ctx, pausedPollInterval)
			continue
		}
		if room <= 0 {
			s.sleep(ctx, busyPollInterval)
			continue
		}

		pending, err := s.catalog.ListPendingOperations(room)
		if err != nil {
			log.Error().Err(err).Msg("failed to fetch pending operations")
			s.sleep(ctx, idlePollInterval)
			continue
		}
		if len(pending) == 0 {
			s.sleep(ctx, idlePollInterval)
			continue
		}

		for _, op := range pending {
			s.claimAndRun(ctx, op)
		}
		s.sleep(ctx, busyPollInterval)
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-s.clock.After(d):
	}
}

// claimAndRun attempts the pending->running transition; losing the claim to
// a concurrent cancel is not an error.
func (s *Service) claimAndRun(ctx context.Context, op database.OperationDetail) {
	claimed, err := s.catalog.TransitionOperation(
		op.DBID, []string{database.OpStatusPending}, database.OpStatusRunning, nil)
	if err != nil {
		log.Error().Err(err).Int64("op_id", op.DBID).Msg("failed to claim operation")
		return
	}
	if !claimed {
		return
	}

	opCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.active[op.DBID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.active, op.DBID)
			s.mu.Unlock()
		}()
		s.process(opCtx, op)
	}()
}

func (s *Service) process(ctx context.Context, op database.OperationDetail) {
	log.Info().
		Int64("op_id", op.DBID).
		Str("source", op.SourcePath).
		Str("dest", op.DestPath).
		Msg("processing operation")

	if op.Type != database.OpTypeCopy {
		s.fail(op.DBID, fmt.Sprintf("unknown operation type: %s", op.Type))
		return
	}

	limiter := rate.NewLimiter(progressWriteRate, 1)
	progress := func(copied int64) {
		if !limiter.Allow() {
			return
		}
		if err := s.catalog.SetOperationProgress(op.DBID, copied); err != nil {
			log.Warn().Err(err).Int64("op_id", op.DBID).Msg("failed to write progress")
		}
	}

	err := copier.SafeCopy(ctx, op.SourcePath, op.DestPath, copier.CopyOptions{
		VerifyHash: op.VerifyHash,
		Progress:   progress,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Cancelled via the API; the status row was already moved.
			log.Info().Int64("op_id", op.DBID).Msg("operation cancelled")
			return
		}
		s.fail(op.DBID, err.Error())
		return
	}

	if err := s.catalog.SetOperationProgress(op.DBID, op.TotalSize); err != nil {
		log.Warn().Err(err).Int64("op_id", op.DBID).Msg("failed to write final progress")
	}
	_, err = s.catalog.TransitionOperation(
		op.DBID, []string{database.OpStatusRunning}, database.OpStatusCompleted, nil)
	if err != nil {
		log.Error().Err(err).Int64("op_id", op.DBID).Msg("failed to complete operation")
	}
}

func (s *Service) fail(opID int64, msg string) {
	_, err := s.catalog.TransitionOperation(
		opID, []string{database.OpStatusRunning}, database.OpStatusFailed, &msg)
	if err != nil {
		log.Error().Err(err).Int64("op_id", opID).Msg("failed to mark operation failed")
	}
	log.Warn().Int64("op_id", opID).Str("error", msg).Msg("operation failed")
}

// cancelActive aborts the in-flight copy for an operation, if any.
func (s *Service) cancelActive(opID int64) {
	s.mu.Lock()
	cancel, ok := s.active[opID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// PauseOperation moves one operation to paused. A running copy is aborted;
// its partial temp file is discarded and the copy restarts on resume.
func (s *Service) PauseOperation(opID int64) error {
	moved, err := s.catalog.TransitionOperation(opID,
		[]string{database.OpStatusPending, database.OpStatusRunning},
		database.OpStatusPaused, nil)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("operation is not pausable: %w", database.ErrInvalid)
	}
	s.cancelActive(opID)
	return nil
}

// ResumeOperation returns a paused operation to the pending queue.
func (s *Service) ResumeOperation(opID int64) error {
	moved, err := s.catalog.TransitionOperation(opID,
		[]string{database.OpStatusPaused}, database.OpStatusPending, nil)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("operation is not paused: %w", database.ErrInvalid)
	}
	return nil
}

// CancelOperation terminally cancels an operation and aborts its copy.
func (s *Service) CancelOperation(opID int64) error {
	moved, err := s.catalog.TransitionOperation(opID,
		[]string{database.OpStatusPending, database.OpStatusRunning, database.OpStatusPaused},
		database.OpStatusCancelled, nil)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("operation is already finished: %w", database.ErrInvalid)
	}
	s.cancelActive(opID)
	return nil
}

// CreateCopy queues a copy of the source file. When destDriveID is nil the
// picker chooses the best destination. When destPath is nil the file keeps
// its name at the destination drive's mount root.
func (s *Service) CreateCopy(ctx context.Context, sourceFileID int64, destDriveID *int64, destPath *string, verifyHash bool) (database.OperationDetail, error) {
	source, err := s.catalog.GetFileDetail(sourceFileID)
	if err != nil {
		return database.OperationDetail{}, err
	}

	var destDrive database.Drive
	if destDriveID == nil {
		candidates, err := s.picker.PickDestinations(ctx, sourceFileID)
		if err != nil {
			return database.OperationDetail{}, err
		}
		if len(candidates) == 0 {
			return database.OperationDetail{},
				fmt.Errorf("no suitable destination drives: %w", database.ErrInvalid)
		}
		destDrive = candidates[0].Drive
	} else {
		destDrive, err = s.catalog.GetDrive(*destDriveID)
		if err != nil {
			return database.OperationDetail{}, err
		}
	}

	target := ""
	if destPath != nil {
		target = *destPath
	} else {
		target = filepath.Join(destDrive.MountPath, filepath.Base(source.Path))
	}

	if _, err := os.Stat(target); err == nil {
		return database.OperationDetail{},
			fmt.Errorf("destination already exists: %s: %w", target, database.ErrConflict)
	}

	op, err := s.catalog.AddOperation(&database.Operation{
		Type:           database.OpTypeCopy,
		Status:         database.OpStatusPending,
		SourceFileDBID: sourceFileID,
		DestDriveDBID:  destDrive.DBID,
		DestPath:       target,
		TotalSize:      source.Size,
		VerifyHash:     verifyHash,
	})
	if err != nil {
		return database.OperationDetail{}, err
	}
	return s.catalog.GetOperation(op.DBID)
}
