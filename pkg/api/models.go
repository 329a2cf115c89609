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

package api

import "github.com/milestone-media/milestone/pkg/database"

// Request payloads. Validation tags are enforced by decodeJSON.

type registerDriveRequest struct {
	MountPath string `json:"mount_path" validate:"required"`
}

type createRootRequest struct {
	Path    string `json:"path"     validate:"required"`
	DriveID int64  `json:"drive_id" validate:"required"`
}

type patchRootRequest struct {
	Excluded *bool `json:"excluded" validate:"required"`
}

type scanStartRequest struct {
	DriveID  *int64 `json:"drive_id"`
	Throttle string `json:"throttle" validate:"omitempty,oneof=low normal fast"`
}

type scanControlRequest struct {
	Action string `json:"action" validate:"required,oneof=pause resume cancel"`
}

type hashComputeRequest struct {
	FileIDs []int64 `json:"file_ids"`
}

type mergeItemsRequest struct {
	SourceIDs []int64 `json:"source_ids" validate:"required,min=1"`
	TargetID  int64   `json:"target_id"  validate:"required"`
}

type splitFileRequest struct {
	FileID int64 `json:"file_id" validate:"required"`
}

type patchItemRequest struct {
	Title   *string `json:"title"`
	Year    *int64  `json:"year"`
	Season  *int64  `json:"season"`
	Episode *int64  `json:"episode"`
	Type    *string `json:"type" validate:"omitempty,oneof=movie tv_episode unknown"`
}

type copyRequest struct {
	DestDriveID  *int64  `json:"dest_drive_id"`
	DestPath     *string `json:"dest_path"`
	VerifyHash   *bool   `json:"verify_hash"`
	SourceFileID int64   `json:"source_file_id" validate:"required"`
}

type batchCopyRequest struct {
	VerifyHash  *bool `json:"verify_hash"`
	MediaItemID int64 `json:"media_item_id" validate:"required"`
}

type ruleRequest struct {
	RuleType string `json:"rule_type" validate:"required,oneof=denylist prefer_movie prefer_tv prefer_all"`
	DriveID  int64  `json:"drive_id"  validate:"required"`
	Priority int64  `json:"priority"`
}

type concurrencyRequest struct {
	Limit int `json:"limit" validate:"required,min=1,max=10"`
}

type quarantineRequest struct {
	QuarantinePath *string `json:"quarantine_path"`
	FileIDs        []int64 `json:"file_ids" validate:"required,min=1"`
}

type restoreRequest struct {
	FileIDs []int64 `json:"file_ids" validate:"required,min=1"`
}

// Response payloads.

type driveResponse struct {
	database.Drive
	FreeSpace  *uint64 `json:"free_space"`
	TotalSpace *uint64 `json:"total_space"`
}

type driveListResponse struct {
	Drives []driveResponse `json:"drives"`
}

type fileListResponse struct {
	Files    []database.File `json:"files"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type itemListResponse struct {
	Items    []database.ItemWithCount `json:"items"`
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
}

type itemDetailResponse struct {
	database.MediaItem
	Files     []database.ItemFileDetail `json:"files"`
	CopyCount int                       `json:"copy_count"`
}

type operationListResponse struct {
	Operations []database.OperationDetail `json:"operations"`
	Total      int64                      `json:"total"`
	Page       int                        `json:"page"`
	PageSize   int                        `json:"page_size"`
}

type messageResponse struct {
	Message string `json:"message"`
}
