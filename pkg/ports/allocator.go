// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package ports implements the Port Allocator: handing out disjoint,
// currently-unbound TCP ports in a bounded range. Verification is
// "bind then immediately release" as spec §4.2 requires — the allocator
// does not keep a long-lived listener, it only proves the port was free
// at the instant of the check, and callers are left to tolerate the
// resulting bind-at-connect-time race (the proxy session, for one,
// retries its dial to the SC2 engine).
package ports

import (
	"fmt"
	"net"
	"sort"
	"sync"
)

// Allocator hands out free ports from [start, end). Internally it keeps
// the teacher's sequential-scan-plus-release-reuse behavior (pkg/discovery's
// PortsState) rather than scanning the whole range on every call.
type Allocator struct {
	mu       sync.Mutex
	start    int32
	end      int32
	lastUsed int32
	released []int32
}

// NewAllocator returns an Allocator over the half-open range [start, end).
func NewAllocator(start, end int32) (*Allocator, error) {
	if start >= end {
		return nil, fmt.Errorf("invalid port range [%d, %d)", start, end)
	}
	return &Allocator{start: start, end: end, lastUsed: start - 1}, nil
}

// candidate returns the next port to try without verifying it is bindable.
func (a *Allocator) candidate() (int32, error) {
	if len(a.released) > 0 {
		port := a.released[len(a.released)-1]
		a.released = a.released[:len(a.released)-1]
		return port, nil
	}
	if a.lastUsed+1 >= a.start && a.lastUsed+1 < a.end {
		a.lastUsed++
		return a.lastUsed, nil
	}
	return 0, fmt.Errorf("no free ports in range [%d, %d)", a.start, a.end)
}

// Allocate returns a port that was free at the moment of the check:
// it binds a loopback TCP listener on the candidate port, then
// immediately releases it. It tries successive candidates until one
// binds or the range is exhausted.
func (a *Allocator) Allocate() (int32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tried := 0
	maxTries := int(a.end - a.start + 1)
	for tried < maxTries {
		tried++
		port, err := a.candidate()
		if err != nil {
			return 0, err
		}
		if bindAndRelease(port) {
			return port, nil
		}
		// Candidate was bound by someone else; do not return it to the
		// released pool, just keep scanning forward.
	}
	return 0, fmt.Errorf("no bindable ports found in range [%d, %d)", a.start, a.end)
}

// AllocateN returns n pairwise-distinct, currently bindable ports.
func (a *Allocator) AllocateN(n int) ([]int32, error) {
	out := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		p, err := a.Allocate()
		if err != nil {
			a.releaseAll(out)
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Release returns a port to the pool so it can be reused by a later
// Allocate call, matching PortsState.Sync's released-port bookkeeping.
func (a *Allocator) Release(port int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = append(a.released, port)
	sort.Slice(a.released, func(i, j int) bool { return a.released[i] < a.released[j] })
}

func (a *Allocator) releaseAll(ports []int32) {
	for _, p := range ports {
		a.released = append(a.released, p)
	}
}

// bindAndRelease reports whether port was free at the time of the check.
func bindAndRelease(port int32) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
