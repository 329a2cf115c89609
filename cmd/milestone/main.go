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

// Milestone catalogs a media library spread across local drives and keeps
// enough verified copies of everything to survive a disk failure.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/api"
	"github.com/milestone-media/milestone/pkg/config"
	"github.com/milestone-media/milestone/pkg/copier"
	"github.com/milestone-media/milestone/pkg/database/catalogdb"
	"github.com/milestone-media/milestone/pkg/exports"
	"github.com/milestone-media/milestone/pkg/hasher"
	"github.com/milestone-media/milestone/pkg/helpers"
	"github.com/milestone-media/milestone/pkg/matcher"
	"github.com/milestone-media/milestone/pkg/opqueue"
	"github.com/milestone-media/milestone/pkg/scanner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	if err := helpers.InitLogging(cfg, []io.Writer{console}); err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := catalogdb.OpenCatalogDB(ctx, cfg.CatalogPath())
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() {
		if err := catalog.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close catalog")
		}
	}()
	if err := catalog.MigrateUp(); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}

	clock := clockwork.NewRealClock()
	scanSvc := scanner.NewService(catalog, cfg.ScanLogDir(), clock)
	hashSvc := hasher.NewService(catalog)
	match := matcher.NewMatcher(catalog)
	picker := copier.NewPicker(catalog, nil)
	exporter := exports.NewExporter(catalog)

	queue := opqueue.NewService(catalog, picker, clock)
	queue.Start(ctx)
	defer queue.Stop()

	log.Info().
		Str("version", config.AppVersion).
		Bool("write_mode", cfg.WriteMode()).
		Str("catalog", cfg.CatalogPath()).
		Msg("milestone starting")
	if !cfg.WriteMode() {
		log.Info().Msgf("write mode is off, set %s=true to enable copy and quarantine endpoints", config.EnvWriteMode)
	}

	server := api.NewServer(cfg, catalog, scanSvc, hashSvc, queue, match, picker, exporter)
	return server.Start(ctx)
}
