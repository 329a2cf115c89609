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

	"github.com/go-chi/chi/v5"

	"github.com/milestone-media/milestone/pkg/database"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	filter := database.ItemFilter{
		Type:      queryStrPtr(r, "type"),
		Status:    queryStrPtr(r, "status"),
		Search:    queryStrPtr(r, "search"),
		MinCopies: queryInt64Ptr(r, "min_copies"),
		MaxCopies: queryInt64Ptr(r, "max_copies"),
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "page_size", 50),
	}

	items, total, err := s.catalog.ListItems(filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, itemListResponse{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

func (s *Server) handleItemStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.catalog.ItemStats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := s.catalog.GetItem(id)
	if err != nil {
		writeError(w, err)
		return
	}
	files, err := s.catalog.GetItemFiles(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, itemDetailResponse{
		MediaItem: item,
		Files:     files,
		CopyCount: len(files),
	})
}

func (s *Server) handlePatchItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req patchItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Title == nil && req.Year == nil && req.Season == nil &&
		req.Episode == nil && req.Type == nil {
		writeBadRequest(w, "no updates provided")
		return
	}

	err = s.catalog.UpdateItem(id, req.Title, req.Year, req.Season, req.Episode, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := s.catalog.GetItem(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleMergeItems(w http.ResponseWriter, r *http.Request) {
	var req mergeItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	moved, err := s.matcher.Merge(req.TargetID, req.SourceIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target_id":   req.TargetID,
		"moved_files": moved,
		"merged":      len(req.SourceIDs),
	})
}

func (s *Server) handleSplitFile(w http.ResponseWriter, r *http.Request) {
	var req splitFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	item, previousItemID, err := s.matcher.Split(req.FileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"new_item":         item,
		"previous_item_id": previousItemID,
	})
}

func (s *Server) handleProcessUnlinked(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.matcher.ProcessUnlinked()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
