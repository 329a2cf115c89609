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

package opqueue

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/database"
)

const quarantineDirName = ".quarantine"

// QuarantinedFile records one successful quarantine move.
type QuarantinedFile struct {
	FileID         int64  `json:"file_id"`
	OriginalPath   string `json:"original_path"`
	QuarantinePath string `json:"quarantine_path"`
}

// RestoredFile records one successful restore.
type RestoredFile struct {
	FileID       int64  `json:"file_id"`
	RestoredPath string `json:"restored_path"`
}

// FileError reports a per-file failure without aborting the batch.
type FileError struct {
	FileID int64  `json:"file_id"`
	Error  string `json:"error"`
}

// QuarantineResult summarizes a quarantine batch.
type QuarantineResult struct {
	Files  []QuarantinedFile `json:"files"`
	Errors []FileError       `json:"error_details"`
}

// RestoreResult summarizes a restore batch.
type RestoreResult struct {
	Files  []RestoredFile `json:"files"`
	Errors []FileError    `json:"error_details"`
}

// Quarantine moves files into {drive}/.quarantine/{date}/{relative path},
// preserving their layout under the drive so they can be restored later.
// Nothing is ever deleted. Each file fails or succeeds independently.
func (s *Service) Quarantine(fileIDs []int64, baseOverride *string) QuarantineResult {
	result := QuarantineResult{
		Files:  make([]QuarantinedFile, 0, len(fileIDs)),
		Errors: make([]FileError, 0),
	}
	dateDir := s.clock.Now().Format("2006-01-02")

	for _, fileID := range fileIDs {
		detail, err := s.catalog.GetFileDetail(fileID)
		if err != nil {
			result.Errors = append(result.Errors, FileError{FileID: fileID, Error: "file not found"})
			continue
		}

		if _, err := os.Stat(detail.Path); err != nil {
			result.Errors = append(result.Errors,
				FileError{FileID: fileID, Error: "file does not exist on disk"})
			continue
		}

		base := filepath.Join(detail.MountPath, quarantineDirName, dateDir)
		if baseOverride != nil {
			base = *baseOverride
		}

		relPath, err := filepath.Rel(detail.MountPath, detail.Path)
		if err != nil {
			result.Errors = append(result.Errors, FileError{FileID: fileID, Error: err.Error()})
			continue
		}
		dest := filepath.Join(base, relPath)

		if err := moveFile(detail.Path, dest); err != nil {
			result.Errors = append(result.Errors, FileError{FileID: fileID, Error: err.Error()})
			continue
		}

		err = s.catalog.UpdateFilePath(fileID, dest, database.HashStatusQuarantined)
		if err != nil {
			log.Error().Err(err).Int64("file_id", fileID).Msg("failed to record quarantine move")
			result.Errors = append(result.Errors, FileError{FileID: fileID, Error: err.Error()})
			continue
		}

		log.Info().Str("from", detail.Path).Str("to", dest).Msg("quarantined file")
		result.Files = append(result.Files, QuarantinedFile{
			FileID:         fileID,
			OriginalPath:   detail.Path,
			QuarantinePath: dest,
		})
	}
	return result
}

// Restore moves quarantined files back to the locations encoded in their
// quarantine paths and resets them for re-hashing.
func (s *Service) Restore(fileIDs []int64) RestoreResult {
	result := RestoreResult{
		Files:  make([]RestoredFile, 0, len(fileIDs)),
		Errors: make([]FileError, 0),
	}

	for _, fileID := range fileIDs {
		file, err := s.catalog.GetFile(fileID)
		if err != nil || file.HashStatus != database.HashStatusQuarantined {
			result.Errors = append(result.Errors,
				FileError{FileID: fileID, Error: "file not found or not quarantined"})
			continue
		}

		originalPath, err := originalPathFromQuarantine(file.Path)
		if err != nil {
			result.Errors = append(result.Errors, FileError{FileID: fileID, Error: err.Error()})
			continue
		}

		if err := moveFile(file.Path, originalPath); err != nil {
			result.Errors = append(result.Errors, FileError{FileID: fileID, Error: err.Error()})
			continue
		}

		err = s.catalog.UpdateFilePath(fileID, originalPath, database.HashStatusPending)
		if err != nil {
			log.Error().Err(err).Int64("file_id", fileID).Msg("failed to record restore")
			result.Errors = append(result.Errors, FileError{FileID: fileID, Error: err.Error()})
			continue
		}

		log.Info().Str("from", file.Path).Str("to", originalPath).Msg("restored file")
		result.Files = append(result.Files, RestoredFile{
			FileID:       fileID,
			RestoredPath: originalPath,
		})
	}
	return result
}

// originalPathFromQuarantine reverses the quarantine layout:
// {drive}/.quarantine/{date}/{relative path} -> {drive}/{relative path}.
func originalPathFromQuarantine(quarantinePath string) (string, error) {
	sep := string(filepath.Separator)
	parts := strings.SplitN(quarantinePath, quarantineDirName, 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", fmt.Errorf("cannot determine original path for %s", quarantinePath)
	}

	drive := strings.TrimRight(parts[0], sep)
	// parts[1] is "/{date}/{relative path}": drop the leading empty
	// element and the date folder.
	relParts := strings.Split(parts[1], sep)
	if len(relParts) < 3 {
		return "", fmt.Errorf("cannot determine original path for %s", quarantinePath)
	}
	segments := append([]string{drive}, relParts[2:]...)
	return filepath.Join(segments...), nil
}

func moveFile(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}
