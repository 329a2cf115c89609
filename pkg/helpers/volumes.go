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

package helpers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
)

// volumeInfoTimeout bounds every disk metadata query; a wedged mount must
// not stall API requests or the destination picker.
const volumeInfoTimeout = 5 * time.Second

// DiskSpace returns live free and total bytes for a mount path.
func DiskSpace(ctx context.Context, mountPath string) (free, total uint64, err error) {
	ctx, cancel := context.WithTimeout(ctx, volumeInfoTimeout)
	defer cancel()

	usage, err := disk.UsageWithContext(ctx, mountPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query disk usage for %s: %w", mountPath, err)
	}
	return usage.Free, usage.Total, nil
}

// VolumeIdentity returns the volume serial and label for the device backing
// a mount path. Both are best-effort: either may be empty when the platform
// or device does not expose them.
func VolumeIdentity(ctx context.Context, mountPath string) (serial, label string) {
	ctx, cancel := context.WithTimeout(ctx, volumeInfoTimeout)
	defer cancel()

	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return "", ""
	}

	var device string
	for i := range partitions {
		if partitions[i].Mountpoint == mountPath {
			device = partitions[i].Device
			break
		}
	}
	if device == "" {
		return "", ""
	}

	name := strings.TrimPrefix(device, "/dev/")
	if s, err := disk.SerialNumberWithContext(ctx, device); err == nil {
		serial = s
	}
	if l, err := disk.LabelWithContext(ctx, name); err == nil {
		label = l
	}
	return serial, label
}
