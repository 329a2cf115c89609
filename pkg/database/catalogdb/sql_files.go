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

func (db *CatalogDB) GetFile(id int64) (database.File, error) {
	return sqlGetFile(db.ctx, db.sql, id)
}

func (db *CatalogDB) GetFileDetail(id int64) (database.FileDetail, error) {
	return sqlGetFileDetail(db.ctx, db.sql, id)
}

func (db *CatalogDB) FindFileByPath(rootID int64, path string) (database.File, error) {
	return sqlFindFileByPath(db.ctx, db.sql, rootID, path)
}

func (db *CatalogDB) InsertFile(file *database.File) (database.File, error) {
	return sqlInsertFile(db.ctx, db.sql, file)
}

func (db *CatalogDB) UpdateFileStat(id, size, mtime int64, ext string, lastSeen time.Time) error {
	return sqlUpdateFileStat(db.ctx, db.sql, id, size, mtime, ext, lastSeen)
}

func (db *CatalogDB) TouchFile(id int64, lastSeen time.Time) error {
	return sqlTouchFile(db.ctx, db.sql, id, lastSeen)
}

func (db *CatalogDB) MarkMissingFiles(rootID int64, scanTime time.Time) (int64, error) {
	return sqlMarkMissingFiles(db.ctx, db.sql, rootID, scanTime)
}

func (db *CatalogDB) ListFiles(filter database.FileFilter) ([]database.File, int64, error) {
	return sqlListFiles(db.ctx, db.sql, filter)
}

func (db *CatalogDB) FileStats() (database.FileStats, error) {
	return sqlFileStats(db.ctx, db.sql)
}

func (db *CatalogDB) SetFileHashStatus(id int64, status string) error {
	return sqlSetFileHashStatus(db.ctx, db.sql, id, status)
}

func (db *CatalogDB) SetFileHashes(id int64, quickSig, fullHash *string, status string) error {
	return sqlSetFileHashes(db.ctx, db.sql, id, quickSig, fullHash, status)
}

func (db *CatalogDB) ListHashPendingFileIDs() ([]int64, error) {
	return sqlListFileIDs(db.ctx, db.sql, `
		select DBID from Files
		where HashStatus = 'pending' or HashStatus is null
		order by DBID;
	`)
}

func (db *CatalogDB) UpdateFilePath(id int64, path, hashStatus string) error {
	return sqlUpdateFilePath(db.ctx, db.sql, id, path, hashStatus)
}

func (db *CatalogDB) ListUnlinkedFileIDs() ([]int64, error) {
	return sqlListFileIDs(db.ctx, db.sql, `
		select f.DBID from Files f
		left join MediaItemFiles mif on f.DBID = mif.FileDBID
		where mif.FileDBID is null
		order by f.DBID;
	`)
}

const fileColumns = "DBID, RootDBID, Path, Size, Mtime, Ext, LastSeen, QuickSig, FullHash, HashStatus"

func scanFile(row interface{ Scan(...any) error }, extra ...any) (database.File, error) {
	var file database.File
	var lastSeen sql.NullInt64
	var quickSig, fullHash sql.NullString
	dest := []any{
		&file.DBID, &file.RootDBID, &file.Path, &file.Size, &file.Mtime,
		&file.Ext, &lastSeen, &quickSig, &fullHash, &file.HashStatus,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return file, err
	}
	file.LastSeen = nullableTime(lastSeen)
	file.QuickSig = nullableString(quickSig)
	file.FullHash = nullableString(fullHash)
	return file, nil
}

func sqlGetFile(ctx context.Context, db *sql.DB, id int64) (database.File, error) {
	file, err := scanFile(db.QueryRowContext(ctx,
		"select "+fileColumns+" from Files where DBID = ? limit 1;", id))
	if errors.Is(err, sql.ErrNoRows) {
		return file, fmt.Errorf("file %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return file, fmt.Errorf("failed to scan file row: %w", err)
	}
	return file, nil
}

func sqlGetFileDetail(ctx context.Context, db *sql.DB, id int64) (database.FileDetail, error) {
	var detail database.FileDetail
	row := db.QueryRowContext(ctx, `
		select f.DBID, f.RootDBID, f.Path, f.Size, f.Mtime, f.Ext,
			f.LastSeen, f.QuickSig, f.FullHash, f.HashStatus,
			r.Path, r.DriveDBID, d.MountPath
		from Files f
		join Roots r on f.RootDBID = r.DBID
		join Drives d on r.DriveDBID = d.DBID
		where f.DBID = ?
		limit 1;
	`, id)
	file, err := scanFile(row, &detail.RootPath, &detail.DriveDBID, &detail.MountPath)
	if errors.Is(err, sql.ErrNoRows) {
		return detail, fmt.Errorf("file %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return detail, fmt.Errorf("failed to scan file detail row: %w", err)
	}
	detail.File = file
	return detail, nil
}

func sqlFindFileByPath(ctx context.Context, db *sql.DB, rootID int64, path string) (database.File, error) {
	file, err := scanFile(db.QueryRowContext(ctx,
		"select "+fileColumns+" from Files where RootDBID = ? and Path = ? limit 1;",
		rootID, path))
	if errors.Is(err, sql.ErrNoRows) {
		return file, fmt.Errorf("file %s: %w", path, database.ErrNotFound)
	}
	if err != nil {
		return file, fmt.Errorf("failed to scan file row: %w", err)
	}
	return file, nil
}

func sqlInsertFile(ctx context.Context, db *sql.DB, file *database.File) (database.File, error) {
	row := *file
	if row.HashStatus == "" {
		row.HashStatus = database.HashStatusPending
	}
	res, err := db.ExecContext(ctx, `
		insert into Files (RootDBID, Path, Size, Mtime, Ext, LastSeen, HashStatus)
		values (?, ?, ?, ?, ?, ?, ?);
	`,
		row.RootDBID, row.Path, row.Size, row.Mtime, row.Ext,
		timeOrNull(row.LastSeen), row.HashStatus,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return row, fmt.Errorf("file %s: %w", row.Path, database.ErrConflict)
		}
		return row, fmt.Errorf("failed to insert file: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return row, fmt.Errorf("failed to get last insert ID for file: %w", err)
	}
	row.DBID = lastID
	return row, nil
}

func sqlUpdateFileStat(ctx context.Context, db *sql.DB, id, size, mtime int64, ext string, lastSeen time.Time) error {
	_, err := db.ExecContext(ctx, `
		update Files set Size = ?, Mtime = ?, Ext = ?, LastSeen = ?
		where DBID = ?;
	`, size, mtime, ext, timeToUnix(lastSeen), id)
	if err != nil {
		return fmt.Errorf("failed to update file stat: %w", err)
	}
	return nil
}

func sqlTouchFile(ctx context.Context, db *sql.DB, id int64, lastSeen time.Time) error {
	_, err := db.ExecContext(ctx,
		"update Files set LastSeen = ? where DBID = ?;", timeToUnix(lastSeen), id)
	if err != nil {
		return fmt.Errorf("failed to touch file: %w", err)
	}
	return nil
}

// sqlMarkMissingFiles clears LastSeen for every file under a root that was
// not observed by the scan that started at scanTime.
func sqlMarkMissingFiles(ctx context.Context, db *sql.DB, rootID int64, scanTime time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		update Files set LastSeen = null
		where RootDBID = ? and (LastSeen is null or LastSeen < ?);
	`, rootID, timeToUnix(scanTime))
	if err != nil {
		return 0, fmt.Errorf("failed to mark missing files: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

func fileFilterClauses(filter database.FileFilter) (string, []any) {
	conditions := make([]string, 0, 6)
	args := make([]any, 0, 6)

	if filter.RootDBID != nil {
		conditions = append(conditions, "RootDBID = ?")
		args = append(args, *filter.RootDBID)
	}
	if filter.Ext != nil {
		conditions = append(conditions, "Ext = ?")
		args = append(args, strings.ToLower(strings.TrimPrefix(*filter.Ext, ".")))
	}
	if filter.MinSize != nil {
		conditions = append(conditions, "Size >= ?")
		args = append(args, *filter.MinSize)
	}
	if filter.MaxSize != nil {
		conditions = append(conditions, "Size <= ?")
		args = append(args, *filter.MaxSize)
	}
	if filter.PathContains != nil {
		conditions = append(conditions, "Path like ?")
		args = append(args, "%"+*filter.PathContains+"%")
	}
	if filter.Missing != nil {
		if *filter.Missing {
			conditions = append(conditions, "LastSeen is null")
		} else {
			conditions = append(conditions, "LastSeen is not null")
		}
	}

	if len(conditions) == 0 {
		return "1=1", args
	}
	return strings.Join(conditions, " and "), args
}

func sqlListFiles(ctx context.Context, db *sql.DB, filter database.FileFilter) ([]database.File, int64, error) {
	where, args := fileFilterClauses(filter)

	var total int64
	err := db.QueryRowContext(ctx,
		"select count(*) from Files where "+where+";", args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count files: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize, 1000)
	query := "select " + fileColumns + " from Files where " + where +
		" order by Path limit ? offset ?;"
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query files: %w", err)
	}
	defer closeRows(rows)

	files := make([]database.File, 0, limit)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate file rows: %w", err)
	}
	return files, total, nil
}

func sqlFileStats(ctx context.Context, db *sql.DB) (database.FileStats, error) {
	var stats database.FileStats
	err := db.QueryRowContext(ctx,
		"select count(*), coalesce(sum(Size), 0) from Files;").
		Scan(&stats.TotalFiles, &stats.TotalSize)
	if err != nil {
		return stats, fmt.Errorf("failed to query file totals: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		select Ext, count(*), coalesce(sum(Size), 0)
		from Files
		where Ext != ''
		group by Ext
		order by count(*) desc
		limit 20;
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to query extension stats: %w", err)
	}
	defer closeRows(rows)

	stats.ByExtension = make([]database.ExtStat, 0, 20)
	for rows.Next() {
		var ext database.ExtStat
		if err := rows.Scan(&ext.Ext, &ext.Count, &ext.Size); err != nil {
			return stats, fmt.Errorf("failed to scan extension stat row: %w", err)
		}
		stats.ByExtension = append(stats.ByExtension, ext)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate extension stat rows: %w", err)
	}
	return stats, nil
}

func sqlSetFileHashStatus(ctx context.Context, db *sql.DB, id int64, status string) error {
	res, err := db.ExecContext(ctx,
		"update Files set HashStatus = ? where DBID = ?;", status, id)
	if err != nil {
		return fmt.Errorf("failed to set hash status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("file %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// sqlSetFileHashes writes both fingerprints and the final status in one
// transaction per file.
func sqlSetFileHashes(ctx context.Context, db *sql.DB, id int64, quickSig, fullHash *string, status string) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			update Files set QuickSig = ?, FullHash = ?, HashStatus = ?
			where DBID = ?;
		`, stringOrNull(quickSig), stringOrNull(fullHash), status, id)
		if err != nil {
			return fmt.Errorf("failed to set file hashes: %w", err)
		}
		return nil
	})
}

func sqlUpdateFilePath(ctx context.Context, db *sql.DB, id int64, path, hashStatus string) error {
	res, err := db.ExecContext(ctx,
		"update Files set Path = ?, HashStatus = ? where DBID = ?;", path, hashStatus, id)
	if err != nil {
		return fmt.Errorf("failed to update file path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("file %d: %w", id, database.ErrNotFound)
	}
	return nil
}

func sqlListFileIDs(ctx context.Context, db *sql.DB, query string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query file ids: %w", err)
	}
	defer closeRows(rows)

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan file id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file id rows: %w", err)
	}
	return ids, nil
}
