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

package hasher

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/helpers/syncutil"
)

// Queue states.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateComplete = "complete"
	StateStopped  = "stopped"
)

// Status is a snapshot of the hash queue.
type Status struct {
	CurrentFile    *string `json:"current_file"`
	State          string  `json:"state"`
	FilesTotal     int     `json:"files_total"`
	FilesProcessed int     `json:"files_processed"`
	QueueSize      int     `json:"queue_size"`
}

// Service owns the background hash queue. One file is hashed at a time;
// hashing is disk-bound and running several at once on spinning media only
// slows everything down.
type Service struct {
	catalog     database.CatalogI
	cancel      context.CancelFunc
	currentFile *string
	state       string
	queue       []int64
	total       int
	processed   int
	mu          syncutil.RWMutex
}

func NewService(catalog database.CatalogI) *Service {
	return &Service{
		catalog: catalog,
		state:   StateIdle,
		queue:   make([]int64, 0),
	}
}

// EnqueuePending loads every file still awaiting hashes into the queue.
// Returns the queue size. Fails if the queue is running.
func (s *Service) EnqueuePending() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return 0, database.ErrConflict
	}
	ids, err := s.catalog.ListHashPendingFileIDs()
	if err != nil {
		return 0, err
	}
	s.queue = ids
	return len(ids), nil
}

// Start begins processing the queue in the background. When fileIDs is
// non-empty it replaces the queue. Returns false if already running.
func (s *Service) Start(ctx context.Context, fileIDs []int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return false
	}
	if len(fileIDs) > 0 {
		s.queue = append([]int64(nil), fileIDs...)
	}
	s.state = StateRunning
	s.total = len(s.queue)
	s.processed = 0

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(workerCtx)
	return true
}

// Stop halts queue processing after the current file. Returns false if the
// queue is not running.
func (s *Service) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return false
	}
	if s.cancel != nil {
		s.cancel()
	}
	return true
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		State:          s.state,
		FilesTotal:     s.total,
		FilesProcessed: s.processed,
		CurrentFile:    s.currentFile,
		QueueSize:      len(s.queue),
	}
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.finish(StateStopped)
			return
		default:
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			s.finish(StateComplete)
			return
		}
		fileID := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.hashOne(fileID)

		s.mu.Lock()
		s.processed++
		s.mu.Unlock()
	}
}

func (s *Service) finish(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.currentFile = nil
	s.cancel = nil
}

// HashFile hashes a single file immediately, outside the queue, and returns
// the updated row.
func (s *Service) HashFile(fileID int64) (database.File, error) {
	file, err := s.catalog.GetFile(fileID)
	if err != nil {
		return database.File{}, err
	}

	if err := s.catalog.SetFileHashStatus(fileID, database.HashStatusComputing); err != nil {
		return database.File{}, err
	}

	quickSig, qErr := QuickSignature(file.Path)
	fullHash, fErr := FullHash(file.Path)
	if qErr != nil || fErr != nil {
		if err := s.catalog.SetFileHashes(fileID, nil, nil, database.HashStatusError); err != nil {
			return database.File{}, err
		}
	} else {
		err = s.catalog.SetFileHashes(fileID, &quickSig, &fullHash, database.HashStatusComplete)
		if err != nil {
			return database.File{}, err
		}
	}
	return s.catalog.GetFile(fileID)
}

func (s *Service) hashOne(fileID int64) {
	file, err := s.catalog.GetFile(fileID)
	if err != nil {
		log.Warn().Err(err).Int64("file_id", fileID).Msg("skipping missing file in hash queue")
		return
	}

	s.mu.Lock()
	path := file.Path
	s.currentFile = &path
	s.mu.Unlock()

	if err := s.catalog.SetFileHashStatus(fileID, database.HashStatusComputing); err != nil {
		log.Error().Err(err).Int64("file_id", fileID).Msg("failed to mark file computing")
		return
	}

	quickSig, qErr := QuickSignature(file.Path)
	fullHash, fErr := FullHash(file.Path)
	if qErr != nil || fErr != nil {
		log.Warn().
			AnErr("quick_sig_error", qErr).
			AnErr("full_hash_error", fErr).
			Str("path", file.Path).
			Msg("failed to hash file")
		if err := s.catalog.SetFileHashes(fileID, nil, nil, database.HashStatusError); err != nil {
			log.Error().Err(err).Int64("file_id", fileID).Msg("failed to record hash error")
		}
		return
	}

	err = s.catalog.SetFileHashes(fileID, &quickSig, &fullHash, database.HashStatusComplete)
	if err != nil {
		log.Error().Err(err).Int64("file_id", fileID).Msg("failed to store file hashes")
		return
	}
	log.Debug().Str("path", file.Path).Str("full_hash", fullHash).Msg("hashed file")
}
