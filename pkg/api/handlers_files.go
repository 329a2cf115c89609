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
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/database"
)

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	filter := database.FileFilter{
		RootDBID:     queryInt64Ptr(r, "root_id"),
		Ext:          queryStrPtr(r, "ext"),
		MinSize:      queryInt64Ptr(r, "min_size"),
		MaxSize:      queryInt64Ptr(r, "max_size"),
		PathContains: queryStrPtr(r, "path_contains"),
		Missing:      queryBoolPtr(r, "missing"),
		Page:         queryInt(r, "page", 1),
		PageSize:     queryInt(r, "page_size", 100),
	}

	files, total, err := s.catalog.ListFiles(filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fileListResponse{
		Files:    files,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

func (s *Server) handleFileStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.catalog.FileStats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleOpenExplorer(w http.ResponseWriter, r *http.Request) {
	s.openFileLocation(w, r, true)
}

func (s *Server) handleOpenFolder(w http.ResponseWriter, r *http.Request) {
	s.openFileLocation(w, r, false)
}

// openFileLocation asks the host desktop to reveal a file or its folder.
// Best-effort: the command is fired and forgotten, only the file's presence
// on disk is checked first.
func (s *Server) openFileLocation(w http.ResponseWriter, r *http.Request, selectFile bool) {
	id, err := pathID(chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}

	file, err := s.catalog.GetFile(id)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := os.Stat(file.Path); err != nil {
		writeBadRequest(w, fmt.Sprintf("file is not present on disk: %s", file.Path))
		return
	}

	cmd := revealCommand(file.Path, selectFile)
	if cmd == nil {
		writeBadRequest(w, fmt.Sprintf("opening a file browser is not supported on %s", runtime.GOOS))
		return
	}
	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Str("path", file.Path).Msg("failed to launch file browser")
		writeError(w, err)
		return
	}
	go func() {
		// reap the child so it does not linger as a zombie
		_ = cmd.Wait()
	}()

	writeJSON(w, http.StatusOK, messageResponse{Message: "opened " + file.Path})
}

func revealCommand(path string, selectFile bool) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		if selectFile {
			return exec.Command("open", "-R", path)
		}
		return exec.Command("open", filepath.Dir(path))
	case "windows":
		if selectFile {
			return exec.Command("explorer", "/select,", path)
		}
		return exec.Command("explorer", filepath.Dir(path))
	case "linux":
		return exec.Command("xdg-open", filepath.Dir(path))
	default:
		return nil
	}
}
