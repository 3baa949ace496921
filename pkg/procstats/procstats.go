// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package procstats reads per-process and per-host resource usage for
// the controller's stats and status HTTP endpoints (spec §6,
// SPEC_FULL.md §12.2/§13), backed by gopsutil the way procnet already
// uses it for the bot supervisor's port discovery.
package procstats

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is one process's point-in-time resource usage, matching
// the /stats/{port} payload shape of SPEC_FULL.md §13.
type ProcessStats struct {
	PID          int32   `json:"pid"`
	CPUPercent   float64 `json:"cpu_percent"`
	MemoryBytes  uint64  `json:"memory_bytes"`
}

// Status is a process's coarse lifecycle state, matching the
// /status/{port} payload shape of SPEC_FULL.md §13.
type Status string

const (
	StatusRunning Status = "running"
	StatusZombie  Status = "zombie"
	StatusStopped Status = "stopped"
	StatusExited  Status = "exited"
	StatusUnknown Status = "unknown"
)

// ForPID returns the current CPU and memory usage of pid.
func ForPID(ctx context.Context, pid int32) (ProcessStats, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("looking up process %d: %w", pid, err)
	}
	cpuPct, err := p.PercentWithContext(ctx, 0)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("reading cpu usage for %d: %w", pid, err)
	}
	memInfo, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("reading memory usage for %d: %w", pid, err)
	}
	return ProcessStats{PID: pid, CPUPercent: cpuPct, MemoryBytes: memInfo.RSS}, nil
}

// StatusForPID reports pid's coarse lifecycle state, collapsing
// gopsutil's process.Status() codes ("R", "S", "T", "Z", ...) down to
// the five states the HTTP surface exposes.
func StatusForPID(ctx context.Context, pid int32) Status {
	p, err := process.NewProcess(pid)
	if err != nil {
		return StatusExited
	}
	running, err := p.IsRunningWithContext(ctx)
	if err != nil || !running {
		return StatusExited
	}
	statuses, err := p.StatusWithContext(ctx)
	if err != nil || len(statuses) == 0 {
		return StatusUnknown
	}
	switch statuses[0] {
	case process.Zombie:
		return StatusZombie
	case process.Stop:
		return StatusStopped
	case process.Running, process.Sleep, process.Idle, process.Wait, process.Lock:
		return StatusRunning
	default:
		return StatusUnknown
	}
}

// HostStats is the controller host's own resource usage, backing
// /stats/host.
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    uint64  `json:"memory_used_bytes"`
	MemoryTotal   uint64  `json:"memory_total_bytes"`
}

// Host returns the controller host's current CPU and memory usage.
func Host(ctx context.Context) (HostStats, error) {
	cpuPcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return HostStats{}, fmt.Errorf("reading host cpu usage: %w", err)
	}
	var cpuPct float64
	if len(cpuPcts) > 0 {
		cpuPct = cpuPcts[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return HostStats{}, fmt.Errorf("reading host memory usage: %w", err)
	}
	return HostStats{
		CPUPercent:    cpuPct,
		MemoryPercent: vm.UsedPercent,
		MemoryUsed:    vm.Used,
		MemoryTotal:   vm.Total,
	}, nil
}
