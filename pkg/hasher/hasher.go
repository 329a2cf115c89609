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

// Package hasher computes file fingerprints and runs the background hash
// queue. Every file gets a cheap quick signature for candidate matching and
// a full SHA-256 for exact duplicate detection.
package hasher

import (
	"crypto/md5" //nolint:gosec // quick signatures are fingerprints, not security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const (
	// chunkSize is the read size for full hashing.
	chunkSize = 1024 * 1024
	// quickSigSize is how much of the head and tail goes into the quick
	// signature.
	quickSigSize = 1024 * 1024
)

// QuickSignature fingerprints a file from its size plus truncated MD5s of
// the first and last megabyte, formatted "size:first:last". For files at or
// under one megabyte the tail hash equals the head hash.
func QuickSignature(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	size := info.Size()

	f, err := os.Open(path) //nolint:gosec // path comes from the catalog
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	first := make([]byte, quickSigSize)
	n, err := io.ReadFull(f, first)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read file head: %w", err)
	}
	first = first[:n]
	firstSum := md5.Sum(first) //nolint:gosec
	firstHash := hex.EncodeToString(firstSum[:])[:16]

	lastHash := firstHash
	if size > quickSigSize {
		if _, err := f.Seek(-quickSigSize, io.SeekEnd); err != nil {
			return "", fmt.Errorf("failed to seek file tail: %w", err)
		}
		last := make([]byte, quickSigSize)
		n, err := io.ReadFull(f, last)
		if err != nil && err != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("failed to read file tail: %w", err)
		}
		lastSum := md5.Sum(last[:n]) //nolint:gosec
		lastHash = hex.EncodeToString(lastSum[:])[:16]
	}

	return fmt.Sprintf("%d:%s:%s", size, firstHash, lastHash), nil
}

// FullHash computes the SHA-256 of the whole file, reading in one-megabyte
// chunks.
func FullHash(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the catalog
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
