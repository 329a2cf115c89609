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

func (db *CatalogDB) AddDrive(drive *database.Drive) (database.Drive, error) {
	return sqlAddDrive(db.ctx, db.sql, drive)
}

func (db *CatalogDB) GetDrive(id int64) (database.Drive, error) {
	return sqlGetDrive(db.ctx, db.sql, "DBID = ?", id)
}

func (db *CatalogDB) GetDriveByMountPath(mountPath string) (database.Drive, error) {
	return sqlGetDrive(db.ctx, db.sql, "MountPath = ?", mountPath)
}

func (db *CatalogDB) ListDrives() ([]database.Drive, error) {
	return sqlListDrives(db.ctx, db.sql)
}

func (db *CatalogDB) DeleteDrive(id int64) error {
	return sqlDeleteDrive(db.ctx, db.sql, id)
}

func (db *CatalogDB) DriveReferenced(id int64) (bool, error) {
	return sqlDriveReferenced(db.ctx, db.sql, id)
}

const driveColumns = "DBID, MountPath, VolumeSerial, VolumeLabel, CreatedAt"

func scanDrive(row interface{ Scan(...any) error }) (database.Drive, error) {
	var drive database.Drive
	var serial, label sql.NullString
	var createdAt int64
	err := row.Scan(&drive.DBID, &drive.MountPath, &serial, &label, &createdAt)
	if err != nil {
		return drive, err
	}
	drive.VolumeSerial = nullableString(serial)
	drive.VolumeLabel = nullableString(label)
	drive.CreatedAt = unixToTime(createdAt)
	return drive, nil
}

func sqlAddDrive(ctx context.Context, db *sql.DB, drive *database.Drive) (database.Drive, error) {
	row := *drive
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx, `
		insert into Drives (MountPath, VolumeSerial, VolumeLabel, CreatedAt)
		values (?, ?, ?, ?);
	`,
		row.MountPath,
		stringOrNull(row.VolumeSerial),
		stringOrNull(row.VolumeLabel),
		timeToUnix(row.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return row, fmt.Errorf("drive %s: %w", row.MountPath, database.ErrConflict)
		}
		return row, fmt.Errorf("failed to insert drive: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return row, fmt.Errorf("failed to get last insert ID for drive: %w", err)
	}
	row.DBID = lastID
	return row, nil
}

func sqlGetDrive(ctx context.Context, db *sql.DB, where string, arg any) (database.Drive, error) {
	drive, err := scanDrive(db.QueryRowContext(ctx,
		"select "+driveColumns+" from Drives where "+where+" limit 1;", arg))
	if errors.Is(err, sql.ErrNoRows) {
		return drive, fmt.Errorf("drive: %w", database.ErrNotFound)
	}
	if err != nil {
		return drive, fmt.Errorf("failed to scan drive row: %w", err)
	}
	return drive, nil
}

func sqlListDrives(ctx context.Context, db *sql.DB) ([]database.Drive, error) {
	rows, err := db.QueryContext(ctx,
		"select "+driveColumns+" from Drives order by DBID;")
	if err != nil {
		return nil, fmt.Errorf("failed to query drives: %w", err)
	}
	defer closeRows(rows)

	drives := make([]database.Drive, 0)
	for rows.Next() {
		drive, err := scanDrive(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan drive row: %w", err)
		}
		drives = append(drives, drive)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drive rows: %w", err)
	}
	return drives, nil
}

func sqlDeleteDrive(ctx context.Context, db *sql.DB, id int64) error {
	res, err := db.ExecContext(ctx, "delete from Drives where DBID = ?;", id)
	if err != nil {
		return fmt.Errorf("failed to delete drive: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("drive %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// sqlDriveReferenced reports whether any root or rule still points at the
// drive. Deleting a referenced drive is forbidden.
func sqlDriveReferenced(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	var count int64
	err := db.QueryRowContext(ctx, `
		select
			(select count(*) from Roots where DriveDBID = ?) +
			(select count(*) from UserRules where DriveDBID = ?);
	`, id, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count drive references: %w", err)
	}
	return count > 0, nil
}
