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

// Package api exposes the Milestone HTTP surface: catalog CRUD, scan and
// hash control, the operation queue, cleanup, and CSV exports. Destructive
// endpoints are gated behind write mode.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/milestone-media/milestone/pkg/config"
	"github.com/milestone-media/milestone/pkg/copier"
	"github.com/milestone-media/milestone/pkg/database"
	"github.com/milestone-media/milestone/pkg/exports"
	"github.com/milestone-media/milestone/pkg/hasher"
	"github.com/milestone-media/milestone/pkg/matcher"
	"github.com/milestone-media/milestone/pkg/opqueue"
	"github.com/milestone-media/milestone/pkg/scanner"
)

const requestTimeout = 60 * time.Second

// Server wires the HTTP handlers to the services.
type Server struct {
	cfg      *config.Instance
	catalog  database.CatalogI
	scanner  *scanner.Service
	hasher   *hasher.Service
	queue    *opqueue.Service
	matcher  *matcher.Matcher
	picker   *copier.Picker
	exporter *exports.Exporter
}

func NewServer(
	cfg *config.Instance,
	catalog database.CatalogI,
	scanSvc *scanner.Service,
	hashSvc *hasher.Service,
	queue *opqueue.Service,
	match *matcher.Matcher,
	picker *copier.Picker,
	exporter *exports.Exporter,
) *Server {
	return &Server{
		cfg:      cfg,
		catalog:  catalog,
		scanner:  scanSvc,
		hasher:   hashSvc,
		queue:    queue,
		matcher:  match,
		picker:   picker,
		exporter: exporter,
	}
}

// requireWriteMode blocks destructive endpoints unless write mode is on.
func (s *Server) requireWriteMode(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.WriteMode() {
			writeError(w, database.ErrWriteModeDisabled)
			return
		}
		next(w, r)
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/mode", s.handleMode)

	r.Route("/drives", func(r chi.Router) {
		r.Post("/register", s.handleRegisterDrive)
		r.Get("/", s.handleListDrives)
		r.Delete("/{driveID}", s.handleDeleteDrive)
	})

	r.Route("/roots", func(r chi.Router) {
		r.Post("/", s.handleCreateRoot)
		r.Get("/", s.handleListRoots)
		r.Patch("/{rootID}", s.handlePatchRoot)
		r.Delete("/{rootID}", s.handleDeleteRoot)
	})

	r.Route("/files", func(r chi.Router) {
		r.Get("/", s.handleListFiles)
		r.Get("/stats", s.handleFileStats)
		r.Post("/{fileID}/open-explorer", s.handleOpenExplorer)
		r.Post("/{fileID}/open-folder", s.handleOpenFolder)
	})

	r.Route("/scan", func(r chi.Router) {
		r.Post("/start", s.handleScanStart)
		r.Get("/status", s.handleScanStatus)
		r.Post("/control", s.handleScanControl)
	})

	r.Route("/hash", func(r chi.Router) {
		r.Post("/compute", s.handleHashCompute)
		r.Get("/status", s.handleHashStatus)
		r.Post("/stop", s.handleHashStop)
		r.Post("/file/{fileID}", s.handleHashFile)
	})

	r.Route("/items", func(r chi.Router) {
		r.Get("/", s.handleListItems)
		r.Get("/stats", s.handleItemStats)
		r.Get("/{itemID}", s.handleGetItem)
		r.Patch("/{itemID}", s.requireWriteMode(s.handlePatchItem))
		r.Post("/merge", s.handleMergeItems)
		r.Post("/split", s.handleSplitFile)
		r.Post("/process", s.handleProcessUnlinked)
	})

	r.Route("/ops", func(r chi.Router) {
		r.Get("/", s.handleListOperations)
		r.Post("/copy", s.requireWriteMode(s.handleCreateCopy))
		r.Post("/copy/batch", s.requireWriteMode(s.handleCreateCopyBatch))
		r.Get("/destinations/{fileID}", s.handleDestinations)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/status", s.handleQueueStatus)
			r.Post("/start", s.handleQueueStart)
			r.Post("/stop", s.handleQueueStop)
			r.Post("/pause", s.handleQueuePause)
			r.Post("/resume", s.handleQueueResume)
			r.Post("/concurrency", s.handleQueueConcurrency)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Delete("/{ruleID}", s.handleDeleteRule)
		})

		r.Get("/{opID}", s.handleGetOperation)
		r.Post("/{opID}/pause", s.handlePauseOperation)
		r.Post("/{opID}/resume", s.handleResumeOperation)
		r.Post("/{opID}/cancel", s.handleCancelOperation)
	})

	r.Route("/cleanup", func(r chi.Router) {
		r.Get("/recommendations", s.handleRecommendations)
		r.Post("/quarantine", s.requireWriteMode(s.handleQuarantine))
		r.Post("/restore", s.requireWriteMode(s.handleRestore))
	})

	r.Route("/exports", func(r chi.Router) {
		r.Get("/at-risk", s.handleExportAtRisk)
		r.Get("/inventory", s.handleExportInventory)
		r.Get("/duplicates", s.handleExportDuplicates)
	})

	return r
}

// Start serves HTTP until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.APIHost(), strconv.Itoa(s.cfg.APIPort()))
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "Milestone",
		"version": config.AppVersion,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"write_mode": s.cfg.WriteMode()})
}
