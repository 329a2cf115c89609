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

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/helpers"
)

func (s *Server) driveWithSpace(r *http.Request, drive database.Drive) driveResponse {
	resp := driveResponse{Drive: drive}
	free, total, err := helpers.DiskSpace(r.Context(), drive.MountPath)
	if err != nil {
		log.Debug().Err(err).Str("mount", drive.MountPath).Msg("drive unreachable")
		return resp
	}
	resp.FreeSpace = &free
	resp.TotalSpace = &total
	return resp
}

func (s *Server) handleRegisterDrive(w http.ResponseWriter, r *http.Request) {
	var req registerDriveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	mountPath := filepath.Clean(req.MountPath)
	info, err := os.Stat(mountPath)
	if err != nil || !info.IsDir() {
		writeBadRequest(w, fmt.Sprintf("mount path is not an accessible directory: %s", mountPath))
		return
	}

	drive := database.Drive{MountPath: mountPath}
	if serial, label := helpers.VolumeIdentity(r.Context(), mountPath); serial != "" || label != "" {
		if serial != "" {
			drive.VolumeSerial = &serial
		}
		if label != "" {
			drive.VolumeLabel = &label
		}
	}

	created, err := s.catalog.AddDrive(&drive)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().Str("mount", created.MountPath).Int64("drive_id", created.DBID).
		Msg("drive registered")
	writeJSON(w, http.StatusCreated, s.driveWithSpace(r, created))
}

func (s *Server) handleListDrives(w http.ResponseWriter, r *http.Request) {
	drives, err := s.catalog.ListDrives()
	if err != nil {
		writeError(w, err)
		return
	}

	resp := driveListResponse{Drives: make([]driveResponse, 0, len(drives))}
	for _, drive := range drives {
		resp.Drives = append(resp.Drives, s.driveWithSpace(r, drive))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteDrive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "driveID"))
	if err != nil {
		writeError(w, err)
		return
	}

	referenced, err := s.catalog.DriveReferenced(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if referenced {
		writeJSON(w, http.StatusConflict, errorBody{
			Detail: "drive has roots or operations attached; remove them first",
		})
		return
	}

	if err := s.catalog.DeleteDrive(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "drive deleted"})
}
