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
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/milestone-media/milestone/pkg/database"
)

func (s *Server) handleCreateRoot(w http.ResponseWriter, r *http.Request) {
	var req createRootRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	drive, err := s.catalog.GetDrive(req.DriveID)
	if err != nil {
		writeError(w, err)
		return
	}

	path := filepath.Clean(req.Path)
	if !strings.HasPrefix(path, drive.MountPath) {
		writeBadRequest(w, fmt.Sprintf("root path must be under the drive mount %s", drive.MountPath))
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		writeBadRequest(w, fmt.Sprintf("root path is not an accessible directory: %s", path))
		return
	}

	root, err := s.catalog.AddRoot(&database.Root{
		DriveDBID: drive.DBID,
		Path:      path,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, root)
}

func (s *Server) handleListRoots(w http.ResponseWriter, r *http.Request) {
	roots, err := s.catalog.ListRoots(queryInt64Ptr(r, "drive_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roots": roots})
}

func (s *Server) handlePatchRoot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "rootID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req patchRootRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.catalog.UpdateRootExcluded(id, *req.Excluded); err != nil {
		writeError(w, err)
		return
	}

	root, err := s.catalog.GetRoot(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, root)
}

func (s *Server) handleDeleteRoot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "rootID"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.catalog.DeleteRoot(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "root deleted"})
}
