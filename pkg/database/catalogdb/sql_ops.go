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

func (db *CatalogDB) AddOperation(op *database.Operation) (database.Operation, error) {
	return sqlAddOperation(db.ctx, db.sql, op)
}

func (db *CatalogDB) GetOperation(id int64) (database.OperationDetail, error) {
	return sqlGetOperation(db.ctx, db.sql, id)
}

func (db *CatalogDB) ListOperations(filter database.OperationFilter) ([]database.OperationDetail, int64, error) {
	return sqlListOperations(db.ctx, db.sql, filter)
}

func (db *CatalogDB) ListPendingOperations(limit int) ([]database.OperationDetail, error) {
	return sqlListPendingOperations(db.ctx, db.sql, limit)
}

func (db *CatalogDB) TransitionOperation(id int64, from []string, to string, errMsg *string) (bool, error) {
	return sqlTransitionOperation(db.ctx, db.sql, id, from, to, errMsg)
}

func (db *CatalogDB) SetOperationProgress(id, progress int64) error {
	return sqlSetOperationProgress(db.ctx, db.sql, id, progress)
}

func (db *CatalogDB) CountOperationsByStatus(status string) (int64, error) {
	return sqlCountOperationsByStatus(db.ctx, db.sql, status)
}

const operationColumns = `o.DBID, o.Type, o.Status, o.SourceFileDBID, o.DestDriveDBID,
	o.DestPath, o.TotalSize, o.VerifyHash, o.Progress, o.Error,
	o.CreatedAt, o.StartedAt, o.CompletedAt`

func scanOperation(row interface{ Scan(...any) error }, extra ...any) (database.Operation, error) {
	var op database.Operation
	var errMsg sql.NullString
	var createdAt int64
	var startedAt, completedAt sql.NullInt64
	dest := []any{
		&op.DBID, &op.Type, &op.Status, &op.SourceFileDBID, &op.DestDriveDBID,
		&op.DestPath, &op.TotalSize, &op.VerifyHash, &op.Progress, &errMsg,
		&createdAt, &startedAt, &completedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return op, err
	}
	op.Error = nullableString(errMsg)
	op.CreatedAt = unixToTime(createdAt)
	op.StartedAt = nullableTime(startedAt)
	op.CompletedAt = nullableTime(completedAt)
	return op, nil
}

func sqlAddOperation(ctx context.Context, db *sql.DB, op *database.Operation) (database.Operation, error) {
	row := *op
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if row.Status == "" {
		row.Status = database.OpStatusPending
	}
	res, err := db.ExecContext(ctx, `
		insert into Operations
			(Type, Status, SourceFileDBID, DestDriveDBID, DestPath,
			 TotalSize, VerifyHash, Progress, CreatedAt)
		values (?, ?, ?, ?, ?, ?, ?, 0, ?);
	`,
		row.Type, row.Status, row.SourceFileDBID, row.DestDriveDBID,
		row.DestPath, row.TotalSize, row.VerifyHash, timeToUnix(row.CreatedAt),
	)
	if err != nil {
		return row, fmt.Errorf("failed to insert operation: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return row, fmt.Errorf("failed to get last insert ID for operation: %w", err)
	}
	row.DBID = lastID
	return row, nil
}

const operationDetailQuery = `
	select ` + operationColumns + `, f.Path, d.MountPath
	from Operations o
	join Files f on o.SourceFileDBID = f.DBID
	join Drives d on o.DestDriveDBID = d.DBID`

func sqlGetOperation(ctx context.Context, db *sql.DB, id int64) (database.OperationDetail, error) {
	var detail database.OperationDetail
	row := db.QueryRowContext(ctx, operationDetailQuery+" where o.DBID = ? limit 1;", id)
	op, err := scanOperation(row, &detail.SourcePath, &detail.DestMountPath)
	if errors.Is(err, sql.ErrNoRows) {
		return detail, fmt.Errorf("operation %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return detail, fmt.Errorf("failed to scan operation row: %w", err)
	}
	detail.Operation = op
	return detail, nil
}

func sqlListOperations(ctx context.Context, db *sql.DB, filter database.OperationFilter) ([]database.OperationDetail, int64, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Status != nil {
		conditions = append(conditions, "o.Status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Type != nil {
		conditions = append(conditions, "o.Type = ?")
		args = append(args, *filter.Type)
	}
	where := "1=1"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " and ")
	}

	var total int64
	err := db.QueryRowContext(ctx,
		"select count(*) from Operations o where "+where+";", args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count operations: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize, 500)
	query := operationDetailQuery + " where " + where +
		" order by o.CreatedAt desc, o.DBID desc limit ? offset ?;"
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query operations: %w", err)
	}
	defer closeRows(rows)

	ops, err := collectOperationDetails(rows)
	if err != nil {
		return nil, 0, err
	}
	return ops, total, nil
}

// sqlListPendingOperations returns the oldest pending operations first, the
// order the queue drains them in.
func sqlListPendingOperations(ctx context.Context, db *sql.DB, limit int) ([]database.OperationDetail, error) {
	rows, err := db.QueryContext(ctx,
		operationDetailQuery+" where o.Status = ? order by o.CreatedAt, o.DBID limit ?;",
		database.OpStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending operations: %w", err)
	}
	defer closeRows(rows)
	return collectOperationDetails(rows)
}

func collectOperationDetails(rows *sql.Rows) ([]database.OperationDetail, error) {
	ops := make([]database.OperationDetail, 0)
	for rows.Next() {
		var detail database.OperationDetail
		op, err := scanOperation(rows, &detail.SourcePath, &detail.DestMountPath)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		detail.Operation = op
		ops = append(ops, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operation rows: %w", err)
	}
	return ops, nil
}

// sqlTransitionOperation moves an operation from one of the allowed statuses
// to the target status atomically. It returns false without error when the
// operation exists but is not in an allowed status, which lets callers race
// safely over the same row. Terminal statuses set CompletedAt, running sets
// StartedAt on first entry.
func sqlTransitionOperation(ctx context.Context, db *sql.DB, id int64, from []string, to string, errMsg *string) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("empty transition source set: %w", database.ErrInvalid)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	now := timeToUnix(time.Now())

	sets := []string{"Status = ?"}
	args := []any{to}
	if database.IsTerminalOpStatus(to) {
		sets = append(sets, "CompletedAt = ?")
		args = append(args, now)
	}
	if to == database.OpStatusRunning {
		sets = append(sets, "StartedAt = coalesce(StartedAt, ?)")
		args = append(args, now)
	}
	if errMsg != nil {
		sets = append(sets, "Error = ?")
		args = append(args, *errMsg)
	}
	args = append(args, id)
	for _, status := range from {
		args = append(args, status)
	}

	res, err := db.ExecContext(ctx,
		"update Operations set "+strings.Join(sets, ", ")+
			" where DBID = ? and Status in ("+placeholders+");", args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition operation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists int64
	err = db.QueryRowContext(ctx,
		"select count(*) from Operations where DBID = ?;", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check operation: %w", err)
	}
	if exists == 0 {
		return false, fmt.Errorf("operation %d: %w", id, database.ErrNotFound)
	}
	return false, nil
}

func sqlSetOperationProgress(ctx context.Context, db *sql.DB, id, progress int64) error {
	_, err := db.ExecContext(ctx,
		"update Operations set Progress = ? where DBID = ?;", progress, id)
	if err != nil {
		return fmt.Errorf("failed to set operation progress: %w", err)
	}
	return nil
}

func sqlCountOperationsByStatus(ctx context.Context, db *sql.DB, status string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx,
		"select count(*) from Operations where Status = ?;", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return count, nil
}
