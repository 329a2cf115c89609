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
	"net/http"
	"sort"

	"github.com/milestone-media/milestone/pkg/database"
)

const (
	minCleanupCopies   = 3
	maxCleanupResults  = 500
	cleanupResultLimit = 100
)

type cleanupFileRef struct {
	Path  string `json:"path"`
	Drive string `json:"drive"`
	ID    int64  `json:"id"`
	Size  int64  `json:"size"`
}

type cleanupRecommendation struct {
	Title         *string          `json:"title"`
	Type          string           `json:"type"`
	FilesToDelete []cleanupFileRef `json:"files_to_delete"`
	FilesToKeep   []cleanupFileRef `json:"files_to_keep"`
	ItemID        int64            `json:"item_id"`
	TotalCopies   int64            `json:"total_copies"`
	KeepCount     int              `json:"keep_count"`
	DeleteCount   int              `json:"delete_count"`
	SavingsBytes  int64            `json:"savings_bytes"`
}

// handleRecommendations lists items with redundant copies and proposes
// which files to quarantine. Files on preferred drives and primary copies
// are kept; at least two copies always survive. Nothing is ever deleted
// automatically.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	minCopies := int64(queryInt(r, "min_copies", minCleanupCopies))
	if minCopies < minCleanupCopies {
		minCopies = minCleanupCopies
	}
	limit := int64(queryInt(r, "limit", cleanupResultLimit))
	if limit < 1 || limit > maxCleanupResults {
		limit = cleanupResultLimit
	}

	items, err := s.catalog.ListItemsWithMinCopies(minCopies, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	// every prefer rule counts here, regardless of media type
	preferred := map[int64]bool{}
	rules, err := s.catalog.ListRules()
	if err != nil {
		writeError(w, err)
		return
	}
	for _, rule := range rules {
		if rule.RuleType != database.RuleDenylist {
			preferred[rule.DriveDBID] = true
		}
	}

	recommendations := make([]cleanupRecommendation, 0)
	var totalSavings, totalDeletes int64

	for _, item := range items {
		files, err := s.catalog.GetItemFiles(item.DBID)
		if err != nil {
			writeError(w, err)
			return
		}

		sort.SliceStable(files, func(i, j int) bool {
			if files[i].IsPrimary != files[j].IsPrimary {
				return files[i].IsPrimary
			}
			return files[i].Size > files[j].Size
		})

		var keep, remove []cleanupFileRef
		for _, f := range files {
			ref := cleanupFileRef{
				ID:    f.DBID,
				Path:  f.Path,
				Size:  f.Size,
				Drive: f.MountPath,
			}
			if f.IsPrimary || preferred[f.DriveDBID] {
				keep = append(keep, ref)
			} else {
				remove = append(remove, ref)
			}
		}
		for len(keep) < 2 && len(remove) > 0 {
			keep = append(keep, remove[0])
			remove = remove[1:]
		}
		if len(remove) == 0 {
			continue
		}

		var savings int64
		for _, f := range remove {
			savings += f.Size
		}
		totalSavings += savings
		totalDeletes += int64(len(remove))

		recommendations = append(recommendations, cleanupRecommendation{
			ItemID:        item.DBID,
			Title:         item.Title,
			Type:          item.Type,
			TotalCopies:   item.CopyCount,
			KeepCount:     len(keep),
			DeleteCount:   len(remove),
			SavingsBytes:  savings,
			FilesToDelete: remove,
			FilesToKeep:   keep,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations":       recommendations,
		"total_items":           len(recommendations),
		"total_files_to_delete": totalDeletes,
		"total_savings_bytes":   totalSavings,
	})
}

func (s *Server) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	var req quarantineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result := s.queue.Quarantine(req.FileIDs, req.QuarantinePath)
	writeJSON(w, http.StatusOK, map[string]any{
		"moved":         len(result.Files),
		"errors":        len(result.Errors),
		"files":         result.Files,
		"error_details": result.Errors,
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result := s.queue.Restore(req.FileIDs)
	writeJSON(w, http.StatusOK, map[string]any{
		"restored":      len(result.Files),
		"errors":        len(result.Errors),
		"files":         result.Files,
		"error_details": result.Errors,
	})
}
