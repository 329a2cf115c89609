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
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHashCompute(w http.ResponseWriter, r *http.Request) {
	var req hashComputeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, err)
		return
	}

	if len(req.FileIDs) == 0 {
		queued, err := s.hasher.EnqueuePending()
		if err != nil {
			writeError(w, err)
			return
		}
		if queued == 0 {
			writeJSON(w, http.StatusOK, map[string]any{
				"message": "no pending files to hash",
				"queued":  0,
			})
			return
		}
	}

	// hashing continues after the request returns
	if !s.hasher.Start(context.Background(), req.FileIDs) {
		writeJSON(w, http.StatusConflict, errorBody{Detail: "hash computation already running"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "hash computation started",
		"status":  s.hasher.Status(),
	})
}

func (s *Server) handleHashStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hasher.Status())
}

func (s *Server) handleHashStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stopped": s.hasher.Stop()})
}

func (s *Server) handleHashFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}

	file, err := s.hasher.HashFile(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}
