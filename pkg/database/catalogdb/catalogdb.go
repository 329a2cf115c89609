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

// Package catalogdb is the SQLite implementation of the Milestone catalog:
// drives, roots, files, media items, user rules, and operations.
package catalogdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/milestone-media/milestone/pkg/database"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNullSQL = errors.New("catalog is not connected")

const sqliteConnParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// CatalogDB is the single source of truth for all Milestone entities.
// Writers serialize through SQLite; readers may run concurrently.
type CatalogDB struct {
	sql    *sql.DB
	ctx    context.Context
	dbPath string
}

// OpenCatalogDB opens (creating and migrating if necessary) the catalog at
// the given path.
func OpenCatalogDB(ctx context.Context, dbPath string) (*CatalogDB, error) {
	db := &CatalogDB{sql: nil, ctx: ctx, dbPath: dbPath}
	err := db.Open()
	return db, err
}

func (db *CatalogDB) Open() error {
	exists := true
	if _, err := os.Stat(db.dbPath); err != nil {
		exists = false
		if mkdirErr := os.MkdirAll(filepath.Dir(db.dbPath), 0o750); mkdirErr != nil {
			return fmt.Errorf("failed to create directory for database: %w", mkdirErr)
		}
	}
	sqlInstance, err := sql.Open("sqlite3", db.dbPath+sqliteConnParams)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.sql = sqlInstance
	if !exists {
		return db.Allocate()
	}
	return nil
}

func (db *CatalogDB) GetDBPath() string {
	return db.dbPath
}

func (db *CatalogDB) UnsafeGetSQLDb() *sql.DB {
	return db.sql
}

func (db *CatalogDB) Allocate() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return db.MigrateUp()
}

func (db *CatalogDB) MigrateUp() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	if err := database.MigrateUp(db.sql, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed to run catalog migrations: %w", err)
	}
	return nil
}

func (db *CatalogDB) Vacuum() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	if _, err := db.sql.ExecContext(db.ctx, "vacuum;"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

//goland:noinspection SqlWithoutWhere
func (db *CatalogDB) Truncate() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	sqlStmt := `
	delete from Operations;
	delete from UserRules;
	delete from MediaItemFiles;
	delete from MediaItems;
	delete from Files;
	delete from Roots;
	delete from Drives;
	vacuum;
	`
	if _, err := db.sql.ExecContext(db.ctx, sqlStmt); err != nil {
		return fmt.Errorf("failed to truncate database: %w", err)
	}
	return nil
}

func (db *CatalogDB) Close() error {
	if db.sql == nil {
		return nil
	}
	if err := db.sql.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SetSQLForTesting allows injection of a sql.DB instance for tests. The
// schema is allocated on the injected database.
func (db *CatalogDB) SetSQLForTesting(ctx context.Context, sqlDB *sql.DB) error {
	db.sql = sqlDB
	db.ctx = ctx
	return db.Allocate()
}

// withTx runs fn inside one transaction, rolling back on error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Timestamps are stored as unix seconds; zero maps to the zero time.

func timeToUnix(t time.Time) int64 {
	return t.Unix()
}

func unixToTime(v int64) time.Time {
	return time.Unix(v, 0)
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := unixToTime(v.Int64)
	return &t
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func stringOrNull(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func intOrNull(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func timeOrNull(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Unix()
}
