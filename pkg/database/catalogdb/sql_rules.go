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

	"github.com/milestone-media/milestone/pkg/database"
)

func (db *CatalogDB) AddRule(rule *database.UserRule) (database.UserRule, error) {
	return sqlAddRule(db.ctx, db.sql, rule)
}

func (db *CatalogDB) ListRules() ([]database.UserRuleDetail, error) {
	return sqlListRules(db.ctx, db.sql)
}

func (db *CatalogDB) DeleteRule(id int64) error {
	return sqlDeleteRule(db.ctx, db.sql, id)
}

func (db *CatalogDB) PreferredDriveIDs(mediaType *string) (map[int64]bool, map[int64]bool, error) {
	return sqlPreferredDriveIDs(db.ctx, db.sql, mediaType)
}

func sqlAddRule(ctx context.Context, db *sql.DB, rule *database.UserRule) (database.UserRule, error) {
	row := *rule

	var exists int64
	err := db.QueryRowContext(ctx,
		"select count(*) from Drives where DBID = ?;", row.DriveDBID).Scan(&exists)
	if err != nil {
		return row, fmt.Errorf("failed to check drive for rule: %w", err)
	}
	if exists == 0 {
		return row, fmt.Errorf("drive %d: %w", row.DriveDBID, database.ErrNotFound)
	}

	res, err := db.ExecContext(ctx, `
		insert into UserRules (RuleType, DriveDBID, Priority)
		values (?, ?, ?);
	`, row.RuleType, row.DriveDBID, row.Priority)
	if err != nil {
		return row, fmt.Errorf("failed to insert rule: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return row, fmt.Errorf("failed to get last insert ID for rule: %w", err)
	}
	row.DBID = lastID
	return row, nil
}

func sqlListRules(ctx context.Context, db *sql.DB) ([]database.UserRuleDetail, error) {
	rows, err := db.QueryContext(ctx, `
		select ur.DBID, ur.RuleType, ur.DriveDBID, ur.Priority,
			d.MountPath, d.VolumeLabel
		from UserRules ur
		join Drives d on ur.DriveDBID = d.DBID
		order by ur.Priority desc, ur.DBID;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer closeRows(rows)

	rules := make([]database.UserRuleDetail, 0)
	for rows.Next() {
		var rule database.UserRuleDetail
		var label sql.NullString
		err := rows.Scan(
			&rule.DBID, &rule.RuleType, &rule.DriveDBID, &rule.Priority,
			&rule.MountPath, &label,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		rule.VolumeLabel = nullableString(label)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rule rows: %w", err)
	}
	return rules, nil
}

func sqlDeleteRule(ctx context.Context, db *sql.DB, id int64) error {
	res, err := db.ExecContext(ctx, "delete from UserRules where DBID = ?;", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// sqlPreferredDriveIDs resolves the rule set into two drive sets for the
// destination picker: denied drives and drives preferred for the given media
// type. prefer_all counts for every type.
func sqlPreferredDriveIDs(ctx context.Context, db *sql.DB, mediaType *string) (map[int64]bool, map[int64]bool, error) {
	rows, err := db.QueryContext(ctx,
		"select RuleType, DriveDBID from UserRules;")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer closeRows(rows)

	denied := make(map[int64]bool)
	preferred := make(map[int64]bool)
	for rows.Next() {
		var ruleType string
		var driveID int64
		if err := rows.Scan(&ruleType, &driveID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		switch ruleType {
		case database.RuleDenylist:
			denied[driveID] = true
		case database.RulePreferAll:
			preferred[driveID] = true
		case database.RulePreferMovie:
			if mediaType != nil && *mediaType == database.MediaTypeMovie {
				preferred[driveID] = true
			}
		case database.RulePreferTV:
			if mediaType != nil && *mediaType == database.MediaTypeTVEpisode {
				preferred[driveID] = true
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate rule rows: %w", err)
	}
	return denied, preferred, nil
}
