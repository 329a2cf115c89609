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

// Package matcher groups catalog files into media items. Files matching on
// full hash join an existing item outright; files matching only on quick
// signature join it too but flag the item for manual verification. Files
// with no match become new items named from their parsed path.
package matcher

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/parser"
)

// Matcher links files to media items using the catalog.
type Matcher struct {
	catalog database.CatalogI
}

func NewMatcher(catalog database.CatalogI) *Matcher {
	return &Matcher{catalog: catalog}
}

// FindMatch locates an existing item for the given fingerprints. A full
// hash match is authoritative. A quick signature match is probable only, so
// the matched item is downgraded to needs_verification.
func (m *Matcher) FindMatch(quickSig, fullHash *string) (int64, bool, error) {
	if fullHash != nil {
		itemID, found, err := m.catalog.FindItemIDByFullHash(*fullHash)
		if err != nil {
			return 0, false, err
		}
		if found {
			return itemID, true, nil
		}
	}

	if quickSig != nil {
		itemID, found, err := m.catalog.FindItemIDByQuickSig(*quickSig)
		if err != nil {
			return 0, false, err
		}
		if found {
			err := m.catalog.SetItemStatus(itemID, database.ItemStatusNeedsVerification)
			if err != nil {
				return 0, false, err
			}
			return itemID, true, nil
		}
	}

	return 0, false, nil
}

// LinkResult describes what happened to one file.
type LinkResult struct {
	ItemID  int64
	Created bool
	Skipped bool
}

// LinkFile attaches a file to an item, creating a new item from parsed
// metadata when nothing matches. Non-video files and files already linked
// are skipped.
func (m *Matcher) LinkFile(fileID int64) (LinkResult, error) {
	file, err := m.catalog.GetFile(fileID)
	if err != nil {
		return LinkResult{}, err
	}

	if !parser.IsVideoFile(file.Path) {
		return LinkResult{Skipped: true}, nil
	}

	if _, linked, err := m.catalog.GetFileLink(fileID); err != nil {
		return LinkResult{}, err
	} else if linked {
		return LinkResult{Skipped: true}, nil
	}

	itemID, found, err := m.FindMatch(file.QuickSig, file.FullHash)
	if err != nil {
		return LinkResult{}, err
	}
	if found {
		if err := m.catalog.LinkFileToItem(itemID, fileID, false); err != nil {
			if errors.Is(err, database.ErrConflict) {
				return LinkResult{ItemID: itemID, Skipped: true}, nil
			}
			return LinkResult{}, err
		}
		return LinkResult{ItemID: itemID}, nil
	}

	parsed := parser.ParsePath(file.Path)
	item, err := m.catalog.CreateItemWithFile(&database.MediaItem{
		Type:    parsed.Type,
		Title:   parsed.Title,
		Year:    parsed.Year,
		Season:  parsed.Season,
		Episode: parsed.Episode,
		Status:  database.ItemStatusAuto,
	}, fileID)
	if err != nil {
		return LinkResult{}, err
	}
	return LinkResult{ItemID: item.DBID, Created: true}, nil
}

// ProcessStats summarizes one matching pass.
type ProcessStats struct {
	Processed int64 `json:"processed"`
	NewItems  int64 `json:"new_items"`
	Linked    int64 `json:"linked"`
	Skipped   int64 `json:"skipped"`
}

// ProcessUnlinked runs the matcher over every file without an item link.
func (m *Matcher) ProcessUnlinked() (ProcessStats, error) {
	var stats ProcessStats

	ids, err := m.catalog.ListUnlinkedFileIDs()
	if err != nil {
		return stats, err
	}

	for _, fileID := range ids {
		result, err := m.LinkFile(fileID)
		if err != nil {
			log.Warn().Err(err).Int64("file_id", fileID).Msg("failed to match file")
			stats.Skipped++
			continue
		}
		if result.Skipped {
			stats.Skipped++
			continue
		}
		stats.Processed++
		if result.Created {
			stats.NewItems++
		} else {
			stats.Linked++
		}
	}
	return stats, nil
}

// Merge folds the source items into the target and marks the result
// verified, since a human asked for it.
func (m *Matcher) Merge(targetID int64, sourceIDs []int64) (int64, error) {
	moved, err := m.catalog.MergeItems(targetID, sourceIDs)
	if err != nil {
		return 0, err
	}
	if err := m.catalog.SetItemStatus(targetID, database.ItemStatusVerified); err != nil {
		return moved, err
	}
	return moved, nil
}

// Split detaches a file from its item into a fresh item parsed from its
// path. Splitting the only file of an item is rejected.
func (m *Matcher) Split(fileID int64) (database.MediaItem, int64, error) {
	link, linked, err := m.catalog.GetFileLink(fileID)
	if err != nil {
		return database.MediaItem{}, 0, err
	}
	if !linked {
		return database.MediaItem{}, 0, database.ErrNotFound
	}

	count, err := m.catalog.CountItemFiles(link.MediaItemDBID)
	if err != nil {
		return database.MediaItem{}, 0, err
	}
	if count <= 1 {
		return database.MediaItem{}, 0, database.ErrInvalid
	}

	file, err := m.catalog.GetFile(fileID)
	if err != nil {
		return database.MediaItem{}, 0, err
	}
	parsed := parser.ParsePath(file.Path)

	item, err := m.catalog.SplitFileToNewItem(fileID, &database.MediaItem{
		Type:    parsed.Type,
		Title:   parsed.Title,
		Year:    parsed.Year,
		Season:  parsed.Season,
		Episode: parsed.Episode,
		Status:  database.ItemStatusVerified,
	})
	if err != nil {
		return database.MediaItem{}, 0, err
	}
	return item, link.MediaItemDBID, nil
}
