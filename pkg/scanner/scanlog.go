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

package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// scanLog writes each scan session to a pair of files: a machine-readable
// JSONL stream and a plain text log, named scan_<timestamp>.{jsonl,log}.
type scanLog struct {
	clock     clockwork.Clock
	jsonlFile *os.File
	textFile  *os.File
	sessionID string
}

func newScanLog(dir, sessionID string, clock clockwork.Clock) (*scanLog, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create scan log directory: %w", err)
	}
	stamp := clock.Now().Format("20060102_150405")

	jsonlPath := filepath.Join(dir, "scan_"+stamp+".jsonl")
	jsonlFile, err := os.OpenFile(jsonlPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to open jsonl scan log: %w", err)
	}

	textPath := filepath.Join(dir, "scan_"+stamp+".log")
	textFile, err := os.OpenFile(textPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec
	if err != nil {
		_ = jsonlFile.Close()
		return nil, fmt.Errorf("failed to open text scan log: %w", err)
	}

	return &scanLog{
		clock:     clock,
		jsonlFile: jsonlFile,
		textFile:  textFile,
		sessionID: sessionID,
	}, nil
}

// Event writes one scan event to both logs. Log write failures are reported
// but never interrupt a scan.
func (l *scanLog) Event(eventType string, data map[string]any) {
	timestamp := l.clock.Now().Format(time.RFC3339)

	entry := make(map[string]any, len(data)+3)
	entry["timestamp"] = timestamp
	entry["session_id"] = l.sessionID
	entry["type"] = eventType
	for k, v := range data {
		entry[k] = v
	}

	line, err := json.Marshal(entry)
	if err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal scan event")
		return
	}
	if _, err := l.jsonlFile.Write(append(line, '\n')); err != nil {
		log.Warn().Err(err).Msg("failed to write jsonl scan log")
	}

	text := fmt.Sprintf("[%s] %s: %v\n", timestamp, eventType, data)
	if _, err := l.textFile.WriteString(text); err != nil {
		log.Warn().Err(err).Msg("failed to write text scan log")
	}
}

func (l *scanLog) Close() {
	if err := l.jsonlFile.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close jsonl scan log")
	}
	if err := l.textFile.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close text scan log")
	}
}
