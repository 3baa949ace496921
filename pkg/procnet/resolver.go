// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package procnet implements the PID→Port Resolver: given an OS process
// id, find the first IPv4 TCP local port that process is listening on.
// Grounded on original_source's netstat2-based get_ipv4_port_for_pid,
// reimplemented against gopsutil/v3/net, the connection-inspection
// library carried over from the gravwell-gravwell example.
package procnet

import (
	"context"
	"errors"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// ErrNoPortFound is returned once polling is exhausted without observing
// a listening port for the given pid.
var ErrNoPortFound = errors.New("no ipv4 tcp port found for pid")

// FindPort returns the first IPv4 TCP local port owned by pid, among its
// LISTEN-state connections, or an error if it has none right now.
func FindPort(pid int32) (uint32, error) {
	conns, err := psnet.ConnectionsPid("tcp4", pid)
	if err != nil {
		return 0, err
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && c.Laddr.Port != 0 {
			return c.Laddr.Port, nil
		}
	}
	return 0, ErrNoPortFound
}

// PollForPort polls FindPort up to attempts times, interval apart,
// matching spec §4.2/§4.3's "polled up to 10 times at 3-second intervals
// after spawning a bot" discovery window.
func PollForPort(ctx context.Context, pid int32, attempts int, interval time.Duration) (uint32, error) {
	var lastErr error = ErrNoPortFound
	for i := 0; i < attempts; i++ {
		if port, err := FindPort(pid); err == nil {
			return port, nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(interval):
		}
	}
	return 0, lastErr
}
