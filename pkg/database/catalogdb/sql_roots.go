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
	"time"

	"github.com/milestone-media/milestone/pkg/database"
)

func (db *CatalogDB) AddRoot(root *database.Root) (database.Root, error) {
	return sqlAddRoot(db.ctx, db.sql, root)
}

func (db *CatalogDB) GetRoot(id int64) (database.Root, error) {
	return sqlGetRoot(db.ctx, db.sql, id)
}

func (db *CatalogDB) ListRoots(driveID *int64) ([]database.Root, error) {
	return sqlListRoots(db.ctx, db.sql, driveID)
}

func (db *CatalogDB) UpdateRootExcluded(id int64, excluded bool) error {
	return sqlUpdateRootExcluded(db.ctx, db.sql, id, excluded)
}

func (db *CatalogDB) DeleteRoot(id int64) error {
	return sqlDeleteRoot(db.ctx, db.sql, id)
}

const rootColumns = "DBID, DriveDBID, Path, Excluded, CreatedAt"

func scanRoot(row interface{ Scan(...any) error }) (database.Root, error) {
	var root database.Root
	var createdAt int64
	err := row.Scan(&root.DBID, &root.DriveDBID, &root.Path, &root.Excluded, &createdAt)
	if err != nil {
		return root, err
	}
	root.CreatedAt = unixToTime(createdAt)
	return root, nil
}

func sqlAddRoot(ctx context.Context, db *sql.DB, root *database.Root) (database.Root, error) {
	row := *root
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	var exists int64
	err := db.QueryRowContext(ctx,
		"select count(*) from Drives where DBID = ?;", row.DriveDBID).Scan(&exists)
	if err != nil {
		return row, fmt.Errorf("failed to check drive for root: %w", err)
	}
	if exists == 0 {
		return row, fmt.Errorf("drive %d: %w", row.DriveDBID, database.ErrNotFound)
	}

	res, err := db.ExecContext(ctx, `
		insert into Roots (DriveDBID, Path, Excluded, CreatedAt)
		values (?, ?, ?, ?);
	`, row.DriveDBID, row.Path, row.Excluded, timeToUnix(row.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return row, fmt.Errorf("root %s: %w", row.Path, database.ErrConflict)
		}
		return row, fmt.Errorf("failed to insert root: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return row, fmt.Errorf("failed to get last insert ID for root: %w", err)
	}
	row.DBID = lastID
	return row, nil
}

func sqlGetRoot(ctx context.Context, db *sql.DB, id int64) (database.Root, error) {
	root, err := scanRoot(db.QueryRowContext(ctx,
		"select "+rootColumns+" from Roots where DBID = ? limit 1;", id))
	if errors.Is(err, sql.ErrNoRows) {
		return root, fmt.Errorf("root %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return root, fmt.Errorf("failed to scan root row: %w", err)
	}
	return root, nil
}

func sqlListRoots(ctx context.Context, db *sql.DB, driveID *int64) ([]database.Root, error) {
	query := "select " + rootColumns + " from Roots"
	args := make([]any, 0, 1)
	if driveID != nil {
		query += " where DriveDBID = ?"
		args = append(args, *driveID)
	}
	query += " order by DBID;"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roots: %w", err)
	}
	defer closeRows(rows)

	roots := make([]database.Root, 0)
	for rows.Next() {
		root, err := scanRoot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan root row: %w", err)
		}
		roots = append(roots, root)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate root rows: %w", err)
	}
	return roots, nil
}

func sqlUpdateRootExcluded(ctx context.Context, db *sql.DB, id int64, excluded bool) error {
	res, err := db.ExecContext(ctx,
		"update Roots set Excluded = ? where DBID = ?;", excluded, id)
	if err != nil {
		return fmt.Errorf("failed to update root: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("root %d: %w", id, database.ErrNotFound)
	}
	return nil
}

func sqlDeleteRoot(ctx context.Context, db *sql.DB, id int64) error {
	res, err := db.ExecContext(ctx, "delete from Roots where DBID = ?;", id)
	if err != nil {
		return fmt.Errorf("failed to delete root: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("root %d: %w", id, database.ErrNotFound)
	}
	return nil
}
