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
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/milestone-media/milestone/pkg/database"
)

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	filter := database.OperationFilter{
		Status:   queryStrPtr(r, "status"),
		Type:     queryStrPtr(r, "type"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 50),
	}

	ops, total, err := s.catalog.ListOperations(filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, operationListResponse{
		Operations: ops,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	})
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "opID"))
	if err != nil {
		writeError(w, err)
		return
	}

	op, err := s.catalog.GetOperation(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleCreateCopy(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	verify := true
	if req.VerifyHash != nil {
		verify = *req.VerifyHash
	}

	op, err := s.queue.CreateCopy(r.Context(), req.SourceFileID, req.DestDriveID, req.DestPath, verify)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

func (s *Server) handleCreateCopyBatch(w http.ResponseWriter, r *http.Request) {
	var req batchCopyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	verify := true
	if req.VerifyHash != nil {
		verify = *req.VerifyHash
	}

	files, err := s.catalog.GetItemFiles(req.MediaItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(files) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "no files found for media item"})
		return
	}

	created := make([]database.OperationDetail, 0, len(files))
	failures := make([]map[string]any, 0)
	for _, file := range files {
		op, err := s.queue.CreateCopy(r.Context(), file.DBID, nil, nil, verify)
		if err != nil {
			failures = append(failures, map[string]any{
				"file_id": file.DBID,
				"error":   err.Error(),
			})
			continue
		}
		created = append(created, op)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("created %d copy operations", len(created)),
		"operations": created,
		"errors":     failures,
	})
}

func (s *Server) handleDestinations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}

	candidates, err := s.picker.PickDestinations(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drives": candidates})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, _ *http.Request) {
	pending, err := s.catalog.CountOperationsByStatus(database.OpStatusPending)
	if err != nil {
		writeError(w, err)
		return
	}
	running, err := s.catalog.CountOperationsByStatus(database.OpStatusRunning)
	if err != nil {
		writeError(w, err)
		return
	}

	status := s.queue.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":       status.Running,
		"paused":        status.Paused,
		"concurrency":   status.Concurrency,
		"active_count":  status.ActiveCount,
		"pending_count": pending,
		"running_count": running,
	})
}

func (s *Server) handleQueueStart(w http.ResponseWriter, _ *http.Request) {
	// the worker pool outlives the request
	s.queue.Start(context.Background())
	writeJSON(w, http.StatusOK, messageResponse{Message: "queue started"})
}

func (s *Server) handleQueueStop(w http.ResponseWriter, _ *http.Request) {
	s.queue.Stop()
	writeJSON(w, http.StatusOK, messageResponse{Message: "queue stopped"})
}

func (s *Server) handleQueuePause(w http.ResponseWriter, _ *http.Request) {
	s.queue.Pause()
	writeJSON(w, http.StatusOK, messageResponse{Message: "queue paused"})
}

func (s *Server) handleQueueResume(w http.ResponseWriter, _ *http.Request) {
	s.queue.Resume()
	writeJSON(w, http.StatusOK, messageResponse{Message: "queue resumed"})
}

func (s *Server) handleQueueConcurrency(w http.ResponseWriter, r *http.Request) {
	var req concurrencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	limit := s.queue.SetConcurrency(req.Limit)
	writeJSON(w, http.StatusOK, map[string]any{"concurrency": limit})
}

func (s *Server) handleListRules(w http.ResponseWriter, _ *http.Request) {
	rules, err := s.catalog.ListRules()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	rule, err := s.catalog.AddRule(&database.UserRule{
		RuleType:  req.RuleType,
		DriveDBID: req.DriveID,
		Priority:  req.Priority,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "ruleID"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.catalog.DeleteRule(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "rule deleted"})
}

func (s *Server) handlePauseOperation(w http.ResponseWriter, r *http.Request) {
	s.operationAction(w, r, s.queue.PauseOperation, "paused")
}

func (s *Server) handleResumeOperation(w http.ResponseWriter, r *http.Request) {
	s.operationAction(w, r, s.queue.ResumeOperation, "resumed")
}

func (s *Server) handleCancelOperation(w http.ResponseWriter, r *http.Request) {
	s.operationAction(w, r, s.queue.CancelOperation, "cancelled")
}

func (s *Server) operationAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(int64) error,
	verb string,
) {
	id, err := pathID(chi.URLParam(r, "opID"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := action(id); err != nil {
		writeError(w, err)
		return
	}

	op, err := s.catalog.GetOperation(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "operation " + verb,
		"operation": op,
	})
}
