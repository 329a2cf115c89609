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
	"fmt"
	"io"
	"net/http"

	"github.com/milestone-media/milestone/pkg/scanner"
)

func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	var req scanStartRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, err)
		return
	}

	throttle := req.Throttle
	if throttle == "" {
		throttle = scanner.ThrottleNormal
	}

	if req.DriveID != nil {
		if _, err := s.catalog.GetDrive(*req.DriveID); err != nil {
			writeError(w, err)
			return
		}
	}

	// the scan outlives the request
	if !s.scanner.Start(context.Background(), req.DriveID, throttle) {
		writeBadRequest(w, "a scan is already in progress")
		return
	}
	writeJSON(w, http.StatusOK, s.scanner.Status())
}

func (s *Server) handleScanStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scanner.Status())
}

func (s *Server) handleScanControl(w http.ResponseWriter, r *http.Request) {
	var req scanControlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var ok bool
	switch req.Action {
	case "pause":
		ok = s.scanner.Pause()
	case "resume":
		ok = s.scanner.Resume()
	case "cancel":
		ok = s.scanner.Cancel()
	}
	if !ok {
		writeBadRequest(w, fmt.Sprintf("cannot %s a scan in state %s", req.Action, s.scanner.Status().State))
		return
	}
	writeJSON(w, http.StatusOK, s.scanner.Status())
}
