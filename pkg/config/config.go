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

// Package config loads Milestone settings from the environment, with an
// optional .env file for local development. Safe-by-default: write mode is
// off unless explicitly enabled.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// AppVersion is the Milestone release version.
const AppVersion = "0.1.0"

const (
	EnvWriteMode = "MILESTONE_WRITE_MODE"
	EnvAPIHost   = "MILESTONE_API_HOST"
	EnvAPIPort   = "MILESTONE_API_PORT"
	EnvLogLevel  = "MILESTONE_LOG_LEVEL"
	EnvDataDir   = "MILESTONE_DATA_DIR"

	DefaultAPIHost = "127.0.0.1"
	DefaultAPIPort = 8000
	DefaultDataDir = "data"

	CatalogFile = "milestone.db"
	LogFile     = "milestone.log"
	ScanLogsDir = "logs"
)

// Instance holds the resolved configuration for a Milestone process.
// Values are fixed at load time; there is no runtime reload.
type Instance struct {
	apiHost   string
	logLevel  string
	dataDir   string
	apiPort   int
	writeMode bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first if present; real environment variables win.
func Load() (*Instance, error) {
	// godotenv does not overwrite variables already set in the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Instance{
		apiHost:  DefaultAPIHost,
		apiPort:  DefaultAPIPort,
		logLevel: "info",
		dataDir:  DefaultDataDir,
	}

	if v, ok := os.LookupEnv(EnvWriteMode); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", EnvWriteMode, v, err)
		}
		cfg.writeMode = enabled
	}

	if v, ok := os.LookupEnv(EnvAPIHost); ok && v != "" {
		cfg.apiHost = v
	}

	if v, ok := os.LookupEnv(EnvAPIPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s value %q", EnvAPIPort, v)
		}
		cfg.apiPort = port
	}

	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		cfg.logLevel = strings.ToLower(v)
	}

	if v, ok := os.LookupEnv(EnvDataDir); ok && v != "" {
		cfg.dataDir = v
	}

	return cfg, nil
}

// NewInstance builds a configuration directly, bypassing the environment.
// Used by tests and embedding callers.
func NewInstance(writeMode bool, host string, port int, dataDir string) *Instance {
	if host == "" {
		host = DefaultAPIHost
	}
	if port == 0 {
		port = DefaultAPIPort
	}
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	return &Instance{
		apiHost:   host,
		apiPort:   port,
		logLevel:  "info",
		dataDir:   dataDir,
		writeMode: writeMode,
	}
}

// WriteMode reports whether destructive endpoints are enabled.
func (c *Instance) WriteMode() bool {
	return c.writeMode
}

func (c *Instance) APIHost() string {
	return c.apiHost
}

func (c *Instance) APIPort() int {
	return c.apiPort
}

func (c *Instance) DataDir() string {
	return c.dataDir
}

// CatalogPath is the location of the SQLite catalog file.
func (c *Instance) CatalogPath() string {
	return filepath.Join(c.dataDir, CatalogFile)
}

// ScanLogDir is where scan event logs are written.
func (c *Instance) ScanLogDir() string {
	return filepath.Join(c.dataDir, ScanLogsDir)
}

// LogLevel maps the configured level string to a zerolog level, defaulting
// to info on unrecognized values.
func (c *Instance) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.logLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
