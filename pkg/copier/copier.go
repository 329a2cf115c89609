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

// Package copier performs verified file copies and picks destination drives
// for new redundancy copies.
package copier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/hasher"
)

const copyChunkSize = 1024 * 1024

var (
	ErrDestinationExists = errors.New("destination already exists")
	ErrSizeMismatch      = errors.New("size mismatch after copy")
	ErrHashMismatch      = errors.New("hash mismatch after copy")
)

// CopyOptions control SafeCopy behavior.
type CopyOptions struct {
	// Progress, when set, is called with cumulative bytes copied.
	Progress func(bytesCopied int64)
	// VerifyHash re-hashes both sides after the copy and compares.
	VerifyHash bool
	// Overwrite allows replacing an existing destination.
	Overwrite bool
}

// SafeCopy copies source to dest through a temp file: write, verify size,
// optionally verify SHA-256, then rename into place. The temp file is
// removed on any failure, so a crashed or cancelled copy never leaves a
// partial file at the destination path.
func SafeCopy(ctx context.Context, sourcePath, destPath string, opts CopyOptions) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("source is not a regular file: %s", sourcePath)
	}

	if _, err := os.Stat(destPath); err == nil && !opts.Overwrite {
		return fmt.Errorf("%w: %s", ErrDestinationExists, destPath)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tempPath := destPath + ".tmp"
	if err := copyToTemp(ctx, sourcePath, tempPath, opts.Progress); err != nil {
		removeTemp(tempPath)
		return err
	}

	tempInfo, err := os.Stat(tempPath)
	if err != nil {
		removeTemp(tempPath)
		return fmt.Errorf("failed to stat copied file: %w", err)
	}
	if tempInfo.Size() != info.Size() {
		removeTemp(tempPath)
		return fmt.Errorf("%w: source=%d copied=%d", ErrSizeMismatch, info.Size(), tempInfo.Size())
	}

	if opts.VerifyHash {
		if err := verifyCopy(sourcePath, tempPath); err != nil {
			removeTemp(tempPath)
			return err
		}
	}

	if opts.Overwrite {
		if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
			removeTemp(tempPath)
			return fmt.Errorf("failed to remove existing destination: %w", err)
		}
	}
	if err := os.Rename(tempPath, destPath); err != nil {
		removeTemp(tempPath)
		return fmt.Errorf("failed to rename copied file: %w", err)
	}

	log.Info().
		Str("source", sourcePath).
		Str("dest", destPath).
		Str("size", humanize.Bytes(uint64(info.Size()))). //nolint:gosec
		Msg("copy complete")
	return nil
}

// copyToTemp streams source into the temp file, checking for cancellation
// between chunks.
func copyToTemp(ctx context.Context, sourcePath, tempPath string, progress func(int64)) error {
	src, err := os.Open(sourcePath) //nolint:gosec // path comes from the catalog
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) //nolint:gosec
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	buf := make([]byte, copyChunkSize)
	var copied int64
	for {
		if ctx.Err() != nil {
			_ = dst.Close()
			return fmt.Errorf("copy interrupted: %w", ctx.Err())
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				_ = dst.Close()
				return fmt.Errorf("failed to write temp file: %w", writeErr)
			}
			copied += int64(n)
			if progress != nil {
				progress(copied)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = dst.Close()
			return fmt.Errorf("failed to read source: %w", readErr)
		}
	}

	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return nil
}

func verifyCopy(sourcePath, tempPath string) error {
	sourceHash, err := hasher.FullHash(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to hash source: %w", err)
	}
	destHash, err := hasher.FullHash(tempPath)
	if err != nil {
		return fmt.Errorf("failed to hash copy: %w", err)
	}
	if sourceHash != destHash {
		return fmt.Errorf("%w: source=%s copy=%s", ErrHashMismatch, sourceHash, destHash)
	}
	return nil
}

func removeTemp(tempPath string) {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", tempPath).Msg("failed to remove temp file")
	}
}
