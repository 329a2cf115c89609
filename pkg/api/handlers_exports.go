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
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

func (s *Server) handleExportAtRisk(w http.ResponseWriter, _ *http.Request) {
	s.serveCSV(w, "at_risk_report.csv", s.exporter.WriteAtRisk)
}

func (s *Server) handleExportInventory(w http.ResponseWriter, _ *http.Request) {
	s.serveCSV(w, "full_inventory.csv", s.exporter.WriteInventory)
}

func (s *Server) handleExportDuplicates(w http.ResponseWriter, _ *http.Request) {
	s.serveCSV(w, "duplicates_report.csv", s.exporter.WriteDuplicates)
}

// serveCSV renders a report to a buffer first so a query failure can still
// produce a clean error response.
func (s *Server) serveCSV(w http.ResponseWriter, filename string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Warn().Err(err).Str("filename", filename).Msg("failed to stream csv export")
	}
}
