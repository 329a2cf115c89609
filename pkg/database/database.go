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

// Package database holds the catalog row types, status vocabulary, and the
// error taxonomy shared by every Milestone component. The concrete SQLite
// implementation lives in catalogdb.
package database

import (
	"database/sql"
	"errors"
	"time"
)

// Sentinel errors mapped to HTTP status codes at the API boundary.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInvalid           = errors.New("invalid request")
	ErrWriteModeDisabled = errors.New("write mode is disabled")
)

// Hash lifecycle of a file row.
const (
	HashStatusPending     = "pending"
	HashStatusComputing   = "computing"
	HashStatusComplete    = "complete"
	HashStatusError       = "error"
	HashStatusQuarantined = "quarantined"
)

// Media item types.
const (
	MediaTypeMovie     = "movie"
	MediaTypeTVEpisode = "tv_episode"
	MediaTypeUnknown   = "unknown"
)

// Media item verification statuses.
const (
	ItemStatusAuto              = "auto"
	ItemStatusNeedsVerification = "needs_verification"
	ItemStatusVerified          = "verified"
)

// User rule types.
const (
	RuleDenylist    = "denylist"
	RulePreferMovie = "prefer_movie"
	RulePreferTV    = "prefer_tv"
	RulePreferAll   = "prefer_all"
)

// Operation types and statuses.
const (
	OpTypeCopy = "copy"

	OpStatusPending   = "pending"
	OpStatusRunning   = "running"
	OpStatusPaused    = "paused"
	OpStatusCompleted = "completed"
	OpStatusFailed    = "failed"
	OpStatusCancelled = "cancelled"
)

// IsTerminalOpStatus reports whether an operation status never transitions
// again.
func IsTerminalOpStatus(status string) bool {
	switch status {
	case OpStatusCompleted, OpStatusFailed, OpStatusCancelled:
		return true
	default:
		return false
	}
}

/*
 * Structs for SQL records
 */

type Drive struct {
	CreatedAt    time.Time `json:"created_at"`
	MountPath    string    `json:"mount_path"`
	VolumeSerial *string   `json:"volume_serial"`
	VolumeLabel  *string   `json:"volume_label"`
	DBID         int64     `json:"id"`
}

type Root struct {
	CreatedAt time.Time `json:"created_at"`
	Path      string    `json:"path"`
	DBID      int64     `json:"id"`
	DriveDBID int64     `json:"drive_id"`
	Excluded  bool      `json:"excluded"`
}

type File struct {
	LastSeen   *time.Time `json:"last_seen"`
	QuickSig   *string    `json:"quick_sig"`
	FullHash   *string    `json:"full_hash"`
	Path       string     `json:"path"`
	Ext        string     `json:"ext"`
	HashStatus string     `json:"hash_status"`
	DBID       int64      `json:"id"`
	RootDBID   int64      `json:"root_id"`
	Size       int64      `json:"size"`
	Mtime      int64      `json:"mtime"` // unix nanoseconds
}

// FileDetail is a file joined with its root and drive, used wherever a
// component needs to reason about the file's physical location.
type FileDetail struct {
	File
	RootPath  string `json:"root_path"`
	MountPath string `json:"drive_path"`
	DriveDBID int64  `json:"drive_id"`
}

type MediaItem struct {
	CreatedAt time.Time `json:"created_at"`
	Title     *string   `json:"title"`
	Year      *int64    `json:"year"`
	Season    *int64    `json:"season"`
	Episode   *int64    `json:"episode"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	DBID      int64     `json:"id"`
}

type MediaItemFile struct {
	DBID          int64 `json:"id"`
	MediaItemDBID int64 `json:"media_item_id"`
	FileDBID      int64 `json:"file_id"`
	IsPrimary     bool  `json:"is_primary"`
}

// ItemWithCount is an item row with its copy count (number of linked files).
type ItemWithCount struct {
	MediaItem
	CopyCount int64 `json:"copy_count"`
}

// ItemFileDetail is a linked file with its link flag and location.
type ItemFileDetail struct {
	FileDetail
	IsPrimary bool `json:"is_primary"`
}

type UserRule struct {
	RuleType  string `json:"rule_type"`
	DBID      int64  `json:"id"`
	DriveDBID int64  `json:"drive_id"`
	Priority  int64  `json:"priority"`
}

// UserRuleDetail is a rule joined with its drive, for API listings.
type UserRuleDetail struct {
	UserRule
	MountPath   string  `json:"mount_path"`
	VolumeLabel *string `json:"volume_label"`
}

type Operation struct {
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	Error          *string    `json:"error"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	DestPath       string     `json:"dest_path"`
	DBID           int64      `json:"id"`
	SourceFileDBID int64      `json:"source_file_id"`
	DestDriveDBID  int64      `json:"dest_drive_id"`
	TotalSize      int64      `json:"total_size"`
	Progress       int64      `json:"progress"`
	VerifyHash     bool       `json:"verify_hash"`
}

// OperationDetail is an operation joined with its source file path and
// destination drive mount.
type OperationDetail struct {
	Operation
	SourcePath    string `json:"source_path"`
	DestMountPath string `json:"dest_drive_path"`
}

/*
 * Filters and aggregates
 */

type FileFilter struct {
	RootDBID     *int64
	Ext          *string
	MinSize      *int64
	MaxSize      *int64
	PathContains *string
	Missing      *bool
	Page         int
	PageSize     int
}

type ItemFilter struct {
	Type      *string
	Status    *string
	Search    *string
	MinCopies *int64
	MaxCopies *int64
	Page      int
	PageSize  int
}

type OperationFilter struct {
	Status   *string
	Type     *string
	Page     int
	PageSize int
}

type ExtStat struct {
	Ext   string `json:"ext"`
	Count int64  `json:"count"`
	Size  int64  `json:"size"`
}

type FileStats struct {
	ByExtension []ExtStat `json:"by_extension"`
	TotalFiles  int64     `json:"total_files"`
	TotalSize   int64     `json:"total_size"`
}

type ItemStats struct {
	ByType            map[string]int64 `json:"by_type"`
	ByCopyCount       map[int64]int64  `json:"by_copy_count"`
	TotalItems        int64            `json:"total_items"`
	NeedsVerification int64            `json:"needs_verification"`
}

/*
 * CSV export rows. Nullable columns are strings so empty values render as
 * empty cells rather than zeroes.
 */

type AtRiskRow struct {
	Type      string `csv:"Type"`
	Title     string `csv:"Title"`
	Year      string `csv:"Year"`
	Season    string `csv:"Season"`
	Episode   string `csv:"Episode"`
	Status    string `csv:"Status"`
	FilePaths string `csv:"File Paths"`
	ItemID    int64  `csv:"Item ID"`
	CopyCount int64  `csv:"Copy Count"`
	TotalSize int64  `csv:"Total Size (bytes)"`
}

type InventoryRow struct {
	Type        string `csv:"Type"`
	Title       string `csv:"Title"`
	Year        string `csv:"Year"`
	Season      string `csv:"Season"`
	Episode     string `csv:"Episode"`
	Status      string `csv:"Status"`
	Path        string `csv:"Path"`
	Ext         string `csv:"Extension"`
	QuickSig    string `csv:"Quick Signature"`
	FullHash    string `csv:"Full Hash"`
	HashStatus  string `csv:"Hash Status"`
	Drive       string `csv:"Drive"`
	VolumeLabel string `csv:"Volume Label"`
	IsPrimary   string `csv:"Is Primary"`
	ItemID      int64  `csv:"Item ID"`
	FileID      int64  `csv:"File ID"`
	Size        int64  `csv:"Size (bytes)"`
}

type DuplicateRow struct {
	Type      string `csv:"Type"`
	Title     string `csv:"Title"`
	Year      string `csv:"Year"`
	Locations string `csv:"Locations"`
	ItemID    int64  `csv:"Item ID"`
	CopyCount int64  `csv:"Copy Count"`
	TotalSize int64  `csv:"Total Size (bytes)"`
}

/*
 * Interfaces for external deps
 */

type GenericDBI interface {
	Open() error
	UnsafeGetSQLDb() *sql.DB
	Allocate() error
	MigrateUp() error
	Vacuum() error
	Truncate() error
	Close() error
	GetDBPath() string
}

// CatalogI is the full catalog contract. Handlers and services depend on
// this interface; catalogdb provides the SQLite implementation.
type CatalogI interface {
	GenericDBI

	// Drives
	AddDrive(drive *Drive) (Drive, error)
	GetDrive(id int64) (Drive, error)
	GetDriveByMountPath(mountPath string) (Drive, error)
	ListDrives() ([]Drive, error)
	DeleteDrive(id int64) error
	DriveReferenced(id int64) (bool, error)

	// Roots
	AddRoot(root *Root) (Root, error)
	GetRoot(id int64) (Root, error)
	ListRoots(driveID *int64) ([]Root, error)
	UpdateRootExcluded(id int64, excluded bool) error
	DeleteRoot(id int64) error

	// Files
	GetFile(id int64) (File, error)
	GetFileDetail(id int64) (FileDetail, error)
	FindFileByPath(rootID int64, path string) (File, error)
	InsertFile(file *File) (File, error)
	UpdateFileStat(id, size, mtime int64, ext string, lastSeen time.Time) error
	TouchFile(id int64, lastSeen time.Time) error
	MarkMissingFiles(rootID int64, scanTime time.Time) (int64, error)
	ListFiles(filter FileFilter) ([]File, int64, error)
	FileStats() (FileStats, error)
	SetFileHashStatus(id int64, status string) error
	SetFileHashes(id int64, quickSig, fullHash *string, status string) error
	ListHashPendingFileIDs() ([]int64, error)
	UpdateFilePath(id int64, path, hashStatus string) error
	ListUnlinkedFileIDs() ([]int64, error)

	// Media items
	GetItem(id int64) (MediaItem, error)
	ListItems(filter ItemFilter) ([]ItemWithCount, int64, error)
	ItemStats() (ItemStats, error)
	GetItemFiles(itemID int64) ([]ItemFileDetail, error)
	UpdateItem(id int64, title *string, year, season, episode *int64, mediaType *string) error
	FindItemIDByFullHash(fullHash string) (int64, bool, error)
	FindItemIDByQuickSig(quickSig string) (int64, bool, error)
	SetItemStatus(id int64, status string) error
	GetFileLink(fileID int64) (MediaItemFile, bool, error)
	CountItemFiles(itemID int64) (int64, error)
	LinkFileToItem(itemID, fileID int64, isPrimary bool) error
	CreateItemWithFile(item *MediaItem, fileID int64) (MediaItem, error)
	MergeItems(targetID int64, sourceIDs []int64) (int64, error)
	SplitFileToNewItem(fileID int64, item *MediaItem) (MediaItem, error)
	ItemMediaType(fileID int64) (*string, error)

	// User rules
	AddRule(rule *UserRule) (UserRule, error)
	ListRules() ([]UserRuleDetail, error)
	DeleteRule(id int64) error
	PreferredDriveIDs(mediaType *string) (map[int64]bool, map[int64]bool, error)

	// Operations
	AddOperation(op *Operation) (Operation, error)
	GetOperation(id int64) (OperationDetail, error)
	ListOperations(filter OperationFilter) ([]OperationDetail, int64, error)
	ListPendingOperations(limit int) ([]OperationDetail, error)
	TransitionOperation(id int64, from []string, to string, errMsg *string) (bool, error)
	SetOperationProgress(id, progress int64) error
	CountOperationsByStatus(status string) (int64, error)

	// Cleanup and exports
	ListItemsWithMinCopies(minCopies, limit int64) ([]ItemWithCount, error)
	ExportAtRisk() ([]AtRiskRow, error)
	ExportInventory() ([]InventoryRow, error)
	ExportDuplicates() ([]DuplicateRow, error)
}

// Database is a portable handle for the catalog, mirroring how components
// receive their database dependencies.
type Database struct {
	Catalog CatalogI
}
