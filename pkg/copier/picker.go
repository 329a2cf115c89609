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

package copier

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/helpers"
)

const (
	// minHeadroom is the flat free-space buffer a destination must keep
	// after the copy.
	minHeadroom = 10 * 1024 * 1024 * 1024
	// preferredBoost pushes rule-preferred drives above any amount of raw
	// free space.
	preferredBoost = 10 * 1024 * 1024 * 1024 * 1024 * 1024
)

// SpaceFunc reports free and total bytes for a mount path. Production uses
// helpers.DiskSpace; tests inject fakes.
type SpaceFunc func(ctx context.Context, mountPath string) (free, total uint64, err error)

// Candidate is a destination drive that passed all filters, with its score.
type Candidate struct {
	Drive      database.Drive `json:"drive"`
	FreeSpace  uint64         `json:"free_space"`
	TotalSpace uint64         `json:"total_space"`
	Score      uint64         `json:"score"`
	Preferred  bool           `json:"preferred"`
}

// Picker selects destination drives for redundancy copies.
type Picker struct {
	catalog database.CatalogI
	space   SpaceFunc
}

func NewPicker(catalog database.CatalogI, space SpaceFunc) *Picker {
	if space == nil {
		space = helpers.DiskSpace
	}
	return &Picker{catalog: catalog, space: space}
}

// requiredSpace is the file size plus headroom: at least 10 GiB or 10% of
// the file size, whichever is larger.
func requiredSpace(fileSize int64) uint64 {
	headroom := int64(minHeadroom)
	if tenth := fileSize / 10; tenth > headroom {
		headroom = tenth
	}
	return uint64(fileSize + headroom) //nolint:gosec // sizes are non-negative
}

// PickDestinations ranks drives able to receive a copy of the file. The
// source drive, denylisted drives, and drives without enough free space are
// excluded. Preferred drives (per user rules for the file's media type)
// sort first, then by free space descending.
func (p *Picker) PickDestinations(ctx context.Context, sourceFileID int64) ([]Candidate, error) {
	source, err := p.catalog.GetFileDetail(sourceFileID)
	if err != nil {
		return nil, err
	}

	mediaType, err := p.catalog.ItemMediaType(sourceFileID)
	if err != nil {
		return nil, err
	}

	denied, preferred, err := p.catalog.PreferredDriveIDs(mediaType)
	if err != nil {
		return nil, err
	}

	drives, err := p.catalog.ListDrives()
	if err != nil {
		return nil, err
	}

	need := requiredSpace(source.Size)
	candidates := make([]Candidate, 0, len(drives))
	for _, drive := range drives {
		if drive.DBID == source.DriveDBID || denied[drive.DBID] {
			continue
		}

		free, total, err := p.space(ctx, drive.MountPath)
		if err != nil {
			// Unreachable drives are silently skipped, matching how a
			// detached USB disk should behave.
			log.Debug().Err(err).Str("mount", drive.MountPath).Msg("skipping unreadable drive")
			continue
		}
		if free < need {
			continue
		}

		candidate := Candidate{
			Drive:      drive,
			FreeSpace:  free,
			TotalSpace: total,
			Score:      free,
			Preferred:  preferred[drive.DBID],
		}
		if candidate.Preferred {
			candidate.Score += preferredBoost
		}
		candidates = append(candidates, candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}
