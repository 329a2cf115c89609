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

package catalogdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/milestone-media/milestone/pkg/database"
)

func (db *CatalogDB) ListItemsWithMinCopies(minCopies, limit int64) ([]database.ItemWithCount, error) {
	return sqlListItemsWithMinCopies(db.ctx, db.sql, minCopies, limit)
}

func (db *CatalogDB) ExportAtRisk() ([]database.AtRiskRow, error) {
	return sqlExportAtRisk(db.ctx, db.sql)
}

func (db *CatalogDB) ExportInventory() ([]database.InventoryRow, error) {
	return sqlExportInventory(db.ctx, db.sql)
}

func (db *CatalogDB) ExportDuplicates() ([]database.DuplicateRow, error) {
	return sqlExportDuplicates(db.ctx, db.sql)
}

func intCell(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func stringCell(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

// sqlListItemsWithMinCopies returns items with at least the given number of
// linked copies, most copies first. These are the cleanup candidates.
func sqlListItemsWithMinCopies(ctx context.Context, db *sql.DB, minCopies, limit int64) ([]database.ItemWithCount, error) {
	rows, err := db.QueryContext(ctx, `
		select i.DBID, i.Type, i.Title, i.Year, i.Season, i.Episode,
			i.Status, i.CreatedAt, count(mif.DBID)
		from MediaItems i
		join MediaItemFiles mif on i.DBID = mif.MediaItemDBID
		group by i.DBID
		having count(mif.DBID) >= ?
		order by count(mif.DBID) desc
		limit ?;
	`, minCopies, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cleanup candidates: %w", err)
	}
	defer closeRows(rows)

	items := make([]database.ItemWithCount, 0)
	for rows.Next() {
		var row database.ItemWithCount
		item, err := scanItem(rows, &row.CopyCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		row.MediaItem = item
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item rows: %w", err)
	}
	return items, nil
}

// sqlExportAtRisk lists every item with one copy or none, the media a
// single drive failure would take out.
func sqlExportAtRisk(ctx context.Context, db *sql.DB) ([]database.AtRiskRow, error) {
	rows, err := db.QueryContext(ctx, `
		select i.DBID, i.Type, i.Title, i.Year, i.Season, i.Episode, i.Status,
			count(mif.DBID), coalesce(sum(f.Size), 0),
			coalesce(group_concat(f.Path, '|'), '')
		from MediaItems i
		left join MediaItemFiles mif on i.DBID = mif.MediaItemDBID
		left join Files f on mif.FileDBID = f.DBID
		group by i.DBID
		having count(mif.DBID) <= 1
		order by count(mif.DBID), i.Title;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query at-risk items: %w", err)
	}
	defer closeRows(rows)

	out := make([]database.AtRiskRow, 0)
	for rows.Next() {
		var row database.AtRiskRow
		var title sql.NullString
		var year, season, episode sql.NullInt64
		err := rows.Scan(
			&row.ItemID, &row.Type, &title, &year, &season, &episode,
			&row.Status, &row.CopyCount, &row.TotalSize, &row.FilePaths,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan at-risk row: %w", err)
		}
		row.Title = stringCell(title)
		row.Year = intCell(year)
		row.Season = intCell(season)
		row.Episode = intCell(episode)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate at-risk rows: %w", err)
	}
	return out, nil
}

// sqlExportInventory lists one row per linked file across the whole catalog.
func sqlExportInventory(ctx context.Context, db *sql.DB) ([]database.InventoryRow, error) {
	rows, err := db.QueryContext(ctx, `
		select i.DBID, i.Type, i.Title, i.Year, i.Season, i.Episode, i.Status,
			f.DBID, f.Path, f.Size, f.Ext, f.QuickSig, f.FullHash, f.HashStatus,
			d.MountPath, d.VolumeLabel, mif.IsPrimary
		from MediaItems i
		join MediaItemFiles mif on i.DBID = mif.MediaItemDBID
		join Files f on mif.FileDBID = f.DBID
		join Roots r on f.RootDBID = r.DBID
		join Drives d on r.DriveDBID = d.DBID
		order by i.Title, i.Season, i.Episode, f.Path;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer closeRows(rows)

	out := make([]database.InventoryRow, 0)
	for rows.Next() {
		var row database.InventoryRow
		var title, quickSig, fullHash, volumeLabel sql.NullString
		var year, season, episode sql.NullInt64
		var isPrimary bool
		err := rows.Scan(
			&row.ItemID, &row.Type, &title, &year, &season, &episode, &row.Status,
			&row.FileID, &row.Path, &row.Size, &row.Ext, &quickSig, &fullHash,
			&row.HashStatus, &row.Drive, &volumeLabel, &isPrimary,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		row.Title = stringCell(title)
		row.Year = intCell(year)
		row.Season = intCell(season)
		row.Episode = intCell(episode)
		row.QuickSig = stringCell(quickSig)
		row.FullHash = stringCell(fullHash)
		row.VolumeLabel = stringCell(volumeLabel)
		row.IsPrimary = strconv.FormatBool(isPrimary)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inventory rows: %w", err)
	}
	return out, nil
}

// sqlExportDuplicates lists items with three or more copies, candidates for
// cleanup, with a summary of where the copies live.
func sqlExportDuplicates(ctx context.Context, db *sql.DB) ([]database.DuplicateRow, error) {
	rows, err := db.QueryContext(ctx, `
		select i.DBID, i.Type, i.Title, i.Year,
			count(mif.DBID), coalesce(sum(f.Size), 0),
			coalesce(group_concat(d.MountPath || ':' || f.Path, '|'), '')
		from MediaItems i
		join MediaItemFiles mif on i.DBID = mif.MediaItemDBID
		join Files f on mif.FileDBID = f.DBID
		join Roots r on f.RootDBID = r.DBID
		join Drives d on r.DriveDBID = d.DBID
		group by i.DBID
		having count(mif.DBID) >= 3
		order by count(mif.DBID) desc, coalesce(sum(f.Size), 0) desc;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}
	defer closeRows(rows)

	out := make([]database.DuplicateRow, 0)
	for rows.Next() {
		var row database.DuplicateRow
		var title sql.NullString
		var year sql.NullInt64
		err := rows.Scan(
			&row.ItemID, &row.Type, &title, &year,
			&row.CopyCount, &row.TotalSize, &row.Locations,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan duplicate row: %w", err)
		}
		row.Title = stringCell(title)
		row.Year = intCell(year)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duplicate rows: %w", err)
	}
	return out, nil
}
