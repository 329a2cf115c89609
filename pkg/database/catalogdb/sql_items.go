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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/milestone-media/milestone/pkg/database"
)

func (db *CatalogDB) GetItem(id int64) (database.MediaItem, error) {
	return sqlGetItem(db.ctx, db.sql, id)
}

func (db *CatalogDB) ListItems(filter database.ItemFilter) ([]database.ItemWithCount, int64, error) {
	return sqlListItems(db.ctx, db.sql, filter)
}

func (db *CatalogDB) ItemStats() (database.ItemStats, error) {
	return sqlItemStats(db.ctx, db.sql)
}

func (db *CatalogDB) GetItemFiles(itemID int64) ([]database.ItemFileDetail, error) {
	return sqlGetItemFiles(db.ctx, db.sql, itemID)
}

func (db *CatalogDB) UpdateItem(id int64, title *string, year, season, episode *int64, mediaType *string) error {
	return sqlUpdateItem(db.ctx, db.sql, id, title, year, season, episode, mediaType)
}

func (db *CatalogDB) FindItemIDByFullHash(fullHash string) (int64, bool, error) {
	return sqlFindItemIDByFileColumn(db.ctx, db.sql, "FullHash", fullHash)
}

func (db *CatalogDB) FindItemIDByQuickSig(quickSig string) (int64, bool, error) {
	return sqlFindItemIDByFileColumn(db.ctx, db.sql, "QuickSig", quickSig)
}

func (db *CatalogDB) SetItemStatus(id int64, status string) error {
	return sqlSetItemStatus(db.ctx, db.sql, id, status)
}

func (db *CatalogDB) GetFileLink(fileID int64) (database.MediaItemFile, bool, error) {
	return sqlGetFileLink(db.ctx, db.sql, fileID)
}

func (db *CatalogDB) CountItemFiles(itemID int64) (int64, error) {
	return sqlCountItemFiles(db.ctx, db.sql, itemID)
}

func (db *CatalogDB) LinkFileToItem(itemID, fileID int64, isPrimary bool) error {
	return sqlLinkFileToItem(db.ctx, db.sql, itemID, fileID, isPrimary)
}

func (db *CatalogDB) CreateItemWithFile(item *database.MediaItem, fileID int64) (database.MediaItem, error) {
	return sqlCreateItemWithFile(db.ctx, db.sql, item, fileID)
}

func (db *CatalogDB) MergeItems(targetID int64, sourceIDs []int64) (int64, error) {
	return sqlMergeItems(db.ctx, db.sql, targetID, sourceIDs)
}

func (db *CatalogDB) SplitFileToNewItem(fileID int64, item *database.MediaItem) (database.MediaItem, error) {
	return sqlSplitFileToNewItem(db.ctx, db.sql, fileID, item)
}

func (db *CatalogDB) ItemMediaType(fileID int64) (*string, error) {
	return sqlItemMediaType(db.ctx, db.sql, fileID)
}

const itemColumns = "DBID, Type, Title, Year, Season, Episode, Status, CreatedAt"

func scanItem(row interface{ Scan(...any) error }, extra ...any) (database.MediaItem, error) {
	var item database.MediaItem
	var title sql.NullString
	var year, season, episode sql.NullInt64
	var createdAt int64
	dest := []any{
		&item.DBID, &item.Type, &title, &year, &season, &episode,
		&item.Status, &createdAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return item, err
	}
	item.Title = nullableString(title)
	item.Year = nullableInt(year)
	item.Season = nullableInt(season)
	item.Episode = nullableInt(episode)
	item.CreatedAt = unixToTime(createdAt)
	return item, nil
}

func sqlGetItem(ctx context.Context, db *sql.DB, id int64) (database.MediaItem, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		"select "+itemColumns+" from MediaItems where DBID = ? limit 1;", id))
	if errors.Is(err, sql.ErrNoRows) {
		return item, fmt.Errorf("media item %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return item, fmt.Errorf("failed to scan media item row: %w", err)
	}
	return item, nil
}

func itemFilterClauses(filter database.ItemFilter) (where, having string, args, havingArgs []any) {
	conditions := make([]string, 0, 3)
	args = make([]any, 0, 3)

	if filter.Type != nil {
		conditions = append(conditions, "i.Type = ?")
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		conditions = append(conditions, "i.Status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Search != nil {
		conditions = append(conditions, "i.Title like ?")
		args = append(args, "%"+*filter.Search+"%")
	}
	where = "1=1"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " and ")
	}

	havingConds := make([]string, 0, 2)
	havingArgs = make([]any, 0, 2)
	if filter.MinCopies != nil {
		havingConds = append(havingConds, "count(mif.DBID) >= ?")
		havingArgs = append(havingArgs, *filter.MinCopies)
	}
	if filter.MaxCopies != nil {
		havingConds = append(havingConds, "count(mif.DBID) <= ?")
		havingArgs = append(havingArgs, *filter.MaxCopies)
	}
	having = "1=1"
	if len(havingConds) > 0 {
		having = strings.Join(havingConds, " and ")
	}
	return where, having, args, havingArgs
}

func sqlListItems(ctx context.Context, db *sql.DB, filter database.ItemFilter) ([]database.ItemWithCount, int64, error) {
	where, having, args, havingArgs := itemFilterClauses(filter)

	countQuery := `
		select count(*) from (
			select i.DBID
			from MediaItems i
			left join MediaItemFiles mif on i.DBID = mif.MediaItemDBID
			where ` + where + `
			group by i.DBID
			having ` + having + `
		);`
	var total int64
	err := db.QueryRowContext(ctx, countQuery, append(args, havingArgs...)...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count media items: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize, 500)
	query := `
		select i.DBID, i.Type, i.Title, i.Year, i.Season, i.Episode,
			i.Status, i.CreatedAt, count(mif.DBID)
		from MediaItems i
		left join MediaItemFiles mif on i.DBID = mif.MediaItemDBID
		where ` + where + `
		group by i.DBID
		having ` + having + `
		order by i.Title, i.DBID
		limit ? offset ?;`
	queryArgs := append(args, havingArgs...)
	queryArgs = append(queryArgs, limit, offset)

	rows, err := db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query media items: %w", err)
	}
	defer closeRows(rows)

	items := make([]database.ItemWithCount, 0, limit)
	for rows.Next() {
		var row database.ItemWithCount
		item, err := scanItem(rows, &row.CopyCount)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan media item row: %w", err)
		}
		row.MediaItem = item
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate media item rows: %w", err)
	}
	return items, total, nil
}

func sqlItemStats(ctx context.Context, db *sql.DB) (database.ItemStats, error) {
	stats := database.ItemStats{
		ByType:      make(map[string]int64),
		ByCopyCount: make(map[int64]int64),
	}

	err := db.QueryRowContext(ctx,
		"select count(*) from MediaItems;").Scan(&stats.TotalItems)
	if err != nil {
		return stats, fmt.Errorf("failed to count media items: %w", err)
	}

	err = db.QueryRowContext(ctx,
		"select count(*) from MediaItems where Status = ?;",
		database.ItemStatusNeedsVerification).Scan(&stats.NeedsVerification)
	if err != nil {
		return stats, fmt.Errorf("failed to count unverified items: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		"select Type, count(*) from MediaItems group by Type;")
	if err != nil {
		return stats, fmt.Errorf("failed to query item type stats: %w", err)
	}
	defer closeRows(rows)
	for rows.Next() {
		var mediaType string
		var count int64
		if err := rows.Scan(&mediaType, &count); err != nil {
			return stats, fmt.Errorf("failed to scan item type row: %w", err)
		}
		stats.ByType[mediaType] = count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate item type rows: %w", err)
	}

	copyRows, err := db.QueryContext(ctx, `
		select copies, count(*) from (
			select count(mif.DBID) as copies
			from MediaItems i
			left join MediaItemFiles mif on i.DBID = mif.MediaItemDBID
			group by i.DBID
		)
		group by copies;
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to query copy count stats: %w", err)
	}
	defer closeRows(copyRows)
	for copyRows.Next() {
		var copies, count int64
		if err := copyRows.Scan(&copies, &count); err != nil {
			return stats, fmt.Errorf("failed to scan copy count row: %w", err)
		}
		stats.ByCopyCount[copies] = count
	}
	if err := copyRows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate copy count rows: %w", err)
	}
	return stats, nil
}

func sqlGetItemFiles(ctx context.Context, db *sql.DB, itemID int64) ([]database.ItemFileDetail, error) {
	rows, err := db.QueryContext(ctx, `
		select f.DBID, f.RootDBID, f.Path, f.Size, f.Mtime, f.Ext,
			f.LastSeen, f.QuickSig, f.FullHash, f.HashStatus,
			r.Path, r.DriveDBID, d.MountPath, mif.IsPrimary
		from MediaItemFiles mif
		join Files f on mif.FileDBID = f.DBID
		join Roots r on f.RootDBID = r.DBID
		join Drives d on r.DriveDBID = d.DBID
		where mif.MediaItemDBID = ?
		order by f.DBID;
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item files: %w", err)
	}
	defer closeRows(rows)

	details := make([]database.ItemFileDetail, 0)
	for rows.Next() {
		var detail database.ItemFileDetail
		file, err := scanFile(rows,
			&detail.RootPath, &detail.DriveDBID, &detail.MountPath, &detail.IsPrimary)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item file row: %w", err)
		}
		detail.File = file
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item file rows: %w", err)
	}
	return details, nil
}

func sqlUpdateItem(ctx context.Context, db *sql.DB, id int64, title *string, year, season, episode *int64, mediaType *string) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if title != nil {
		sets = append(sets, "Title = ?")
		args = append(args, *title)
	}
	if year != nil {
		sets = append(sets, "Year = ?")
		args = append(args, *year)
	}
	if season != nil {
		sets = append(sets, "Season = ?")
		args = append(args, *season)
	}
	if episode != nil {
		sets = append(sets, "Episode = ?")
		args = append(args, *episode)
	}
	if mediaType != nil {
		sets = append(sets, "Type = ?")
		args = append(args, *mediaType)
	}
	if len(sets) == 0 {
		return fmt.Errorf("no fields to update: %w", database.ErrInvalid)
	}
	args = append(args, id)

	res, err := db.ExecContext(ctx,
		"update MediaItems set "+strings.Join(sets, ", ")+" where DBID = ?;", args...)
	if err != nil {
		return fmt.Errorf("failed to update media item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("media item %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// sqlFindItemIDByFileColumn looks up the item linked to any file carrying
// the given fingerprint value. Column is always a trusted constant.
func sqlFindItemIDByFileColumn(ctx context.Context, db *sql.DB, column, value string) (int64, bool, error) {
	var itemID int64
	err := db.QueryRowContext(ctx, `
		select mif.MediaItemDBID
		from Files f
		join MediaItemFiles mif on f.DBID = mif.FileDBID
		where f.`+column+` = ?
		order by mif.MediaItemDBID
		limit 1;
	`, value).Scan(&itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find item by %s: %w", column, err)
	}
	return itemID, true, nil
}

func sqlSetItemStatus(ctx context.Context, db *sql.DB, id int64, status string) error {
	res, err := db.ExecContext(ctx,
		"update MediaItems set Status = ? where DBID = ?;", status, id)
	if err != nil {
		return fmt.Errorf("failed to set item status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("media item %d: %w", id, database.ErrNotFound)
	}
	return nil
}

func sqlGetFileLink(ctx context.Context, db *sql.DB, fileID int64) (database.MediaItemFile, bool, error) {
	var link database.MediaItemFile
	err := db.QueryRowContext(ctx, `
		select DBID, MediaItemDBID, FileDBID, IsPrimary
		from MediaItemFiles where FileDBID = ? limit 1;
	`, fileID).Scan(&link.DBID, &link.MediaItemDBID, &link.FileDBID, &link.IsPrimary)
	if errors.Is(err, sql.ErrNoRows) {
		return link, false, nil
	}
	if err != nil {
		return link, false, fmt.Errorf("failed to scan file link row: %w", err)
	}
	return link, true, nil
}

func sqlCountItemFiles(ctx context.Context, db *sql.DB, itemID int64) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx,
		"select count(*) from MediaItemFiles where MediaItemDBID = ?;", itemID).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count item files: %w", err)
	}
	return count, nil
}

func sqlLinkFileToItem(ctx context.Context, db *sql.DB, itemID, fileID int64, isPrimary bool) error {
	_, err := db.ExecContext(ctx, `
		insert into MediaItemFiles (MediaItemDBID, FileDBID, IsPrimary)
		values (?, ?, ?);
	`, itemID, fileID, isPrimary)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("file %d is already linked: %w", fileID, database.ErrConflict)
		}
		return fmt.Errorf("failed to link file to item: %w", err)
	}
	return nil
}

func sqlCreateItemWithFile(ctx context.Context, db *sql.DB, item *database.MediaItem, fileID int64) (database.MediaItem, error) {
	row := *item
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if row.Status == "" {
		row.Status = database.ItemStatusAuto
	}
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			insert into MediaItems (Type, Title, Year, Season, Episode, Status, CreatedAt)
			values (?, ?, ?, ?, ?, ?, ?);
		`,
			row.Type, stringOrNull(row.Title), intOrNull(row.Year),
			intOrNull(row.Season), intOrNull(row.Episode),
			row.Status, timeToUnix(row.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert media item: %w", err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID for media item: %w", err)
		}
		row.DBID = lastID

		_, err = tx.ExecContext(ctx, `
			insert into MediaItemFiles (MediaItemDBID, FileDBID, IsPrimary)
			values (?, ?, 1);
		`, row.DBID, fileID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("file %d is already linked: %w", fileID, database.ErrConflict)
			}
			return fmt.Errorf("failed to link file to new item: %w", err)
		}
		return nil
	})
	if err != nil {
		return row, err
	}
	return row, nil
}

// sqlMergeItems moves every file link from the source items onto the target
// and deletes the emptied sources. Returns the number of links moved.
func sqlMergeItems(ctx context.Context, db *sql.DB, targetID int64, sourceIDs []int64) (int64, error) {
	var moved int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		var exists int64
		err := tx.QueryRowContext(ctx,
			"select count(*) from MediaItems where DBID = ?;", targetID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check merge target: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("media item %d: %w", targetID, database.ErrNotFound)
		}

		for _, sourceID := range sourceIDs {
			if sourceID == targetID {
				return fmt.Errorf("cannot merge item into itself: %w", database.ErrInvalid)
			}
			res, err := tx.ExecContext(ctx, `
				update MediaItemFiles set MediaItemDBID = ?, IsPrimary = 0
				where MediaItemDBID = ?;
			`, targetID, sourceID)
			if err != nil {
				return fmt.Errorf("failed to move item links: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			moved += affected

			if _, err := tx.ExecContext(ctx,
				"delete from MediaItems where DBID = ?;", sourceID); err != nil {
				return fmt.Errorf("failed to delete merged item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// sqlSplitFileToNewItem detaches a linked file into its own item. The old
// item keeps its remaining links.
func sqlSplitFileToNewItem(ctx context.Context, db *sql.DB, fileID int64, item *database.MediaItem) (database.MediaItem, error) {
	row := *item
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if row.Status == "" {
		row.Status = database.ItemStatusVerified
	}
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		var linkID int64
		err := tx.QueryRowContext(ctx,
			"select DBID from MediaItemFiles where FileDBID = ? limit 1;", fileID).
			Scan(&linkID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("file %d has no item link: %w", fileID, database.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to find file link: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			insert into MediaItems (Type, Title, Year, Season, Episode, Status, CreatedAt)
			values (?, ?, ?, ?, ?, ?, ?);
		`,
			row.Type, stringOrNull(row.Title), intOrNull(row.Year),
			intOrNull(row.Season), intOrNull(row.Episode),
			row.Status, timeToUnix(row.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert split item: %w", err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID for split item: %w", err)
		}
		row.DBID = lastID

		_, err = tx.ExecContext(ctx, `
			update MediaItemFiles set MediaItemDBID = ?, IsPrimary = 1
			where DBID = ?;
		`, row.DBID, linkID)
		if err != nil {
			return fmt.Errorf("failed to move file link to split item: %w", err)
		}
		return nil
	})
	if err != nil {
		return row, err
	}
	return row, nil
}

// sqlItemMediaType returns the type of the item a file is linked to, or nil
// when the file is unlinked.
func sqlItemMediaType(ctx context.Context, db *sql.DB, fileID int64) (*string, error) {
	var mediaType string
	err := db.QueryRowContext(ctx, `
		select i.Type
		from MediaItemFiles mif
		join MediaItems i on mif.MediaItemDBID = i.DBID
		where mif.FileDBID = ?
		limit 1;
	`, fileID).Scan(&mediaType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item media type: %w", err)
	}
	return &mediaType, nil
}
