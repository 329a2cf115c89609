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

// Package exports renders catalog reports as CSV.
package exports

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/milestone-media/milestone/pkg/database"
)

// Exporter writes CSV reports from catalog queries.
type Exporter struct {
	catalog database.CatalogI
}

func NewExporter(catalog database.CatalogI) *Exporter {
	return &Exporter{catalog: catalog}
}

// WriteAtRisk writes every single-copy item, the media that one drive
// failure would take out.
func (e *Exporter) WriteAtRisk(w io.Writer) error {
	rows, err := e.catalog.ExportAtRisk()
	if err != nil {
		return fmt.Errorf("failed to query at-risk items: %w", err)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write at-risk csv: %w", err)
	}
	return nil
}

// WriteInventory writes the full catalog, one row per linked file.
func (e *Exporter) WriteInventory(w io.Writer) error {
	rows, err := e.catalog.ExportInventory()
	if err != nil {
		return fmt.Errorf("failed to query inventory: %w", err)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write inventory csv: %w", err)
	}
	return nil
}

// WriteDuplicates writes items with more than one copy and where the
// copies live.
func (e *Exporter) WriteDuplicates(w io.Writer) error {
	rows, err := e.catalog.ExportDuplicates()
	if err != nil {
		return fmt.Errorf("failed to query duplicates: %w", err)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write duplicates csv: %w", err)
	}
	return nil
}
