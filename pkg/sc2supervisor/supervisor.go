// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package sc2supervisor starts and supervises the SC2 engine processes
// backing a match's two seats, one engine per seat (spec §4.4). It
// shares the lifecycle semantics of botsupervisor.Supervisor but fixes
// the launch arguments to SC2's own binary flags instead of dispatching
// on bot_type, and it exposes each engine behind a TCP reverse proxy on
// its own externally-reachable port rather than the engine's raw listen
// port, matching spec §4.4's "expose it via a WebSocket reverse
// endpoint so that bot sessions reach SC2 through the controller" --
// google/tcpproxy splices the bytes straight through, so the SC2
// engine's own WebSocket handshake and framing pass untouched. Whether
// the engine is actually ready to accept that traffic is discovered the
// same way spec §4.5's CreateGame phase already discovers it: by
// pinging over the proxied connection and backing off, not by a
// separate TCP-level probe here.
package sc2supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/tcpproxy"
	"go.uber.org/zap"

	"github.com/aiarena/sc2-match-controller/pkg/ports"
	"github.com/aiarena/sc2-match-controller/pkg/procexec"
)

const reverseDialTimeout = 30 * time.Second

// StartError is returned for any failure starting an SC2 engine.
type StartError struct {
	Detail string
}

func (e *StartError) Error() string { return "sc2 engine start failed: " + e.Detail }

// StartRequest describes one SC2 engine instance to launch.
type StartRequest struct {
	BinaryPath string
	DataDir    string
	TempDir    string
	Seat       string // "1" or "2", used for log file naming
}

// Handle is a running SC2 engine's supervision record.
type Handle struct {
	Process      *procexec.Process
	InternalPort int32
	ExternalPort int32
	ExternalAddr string // host:port the proxy session dials to reach this engine
	reverse      *tcpproxy.Proxy
}

// Supervisor starts and tracks SC2 engine child processes.
type Supervisor struct {
	exec      procexec.Executor
	allocator *ports.Allocator
	logger    *zap.SugaredLogger
	host      string

	mu       sync.Mutex
	children []*Handle
}

// New returns a Supervisor launching engines via executor, allocating
// their internal and external ports from allocator, and exposing
// external addresses on host (normally the controller's own bind
// address, since the reverse proxy endpoint is the controller itself).
func New(executor procexec.Executor, allocator *ports.Allocator, host string, logger *zap.SugaredLogger) *Supervisor {
	return &Supervisor{exec: executor, allocator: allocator, host: host, logger: logger}
}

// Start launches one SC2 engine for req and brings up its reverse proxy
// endpoint immediately; the engine's own readiness is discovered later
// by the proxy session's CreateGame warm-up pings, not here.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (*Handle, error) {
	internalPort, err := s.allocator.Allocate()
	if err != nil {
		return nil, &StartError{Detail: err.Error()}
	}
	externalPort, err := s.allocator.Allocate()
	if err != nil {
		s.allocator.Release(internalPort)
		return nil, &StartError{Detail: err.Error()}
	}

	args := []string{
		"-listen", "0.0.0.0",
		"-port", fmt.Sprint(internalPort),
		"-dataDir", req.DataDir,
		"-displayMode", "0",
		"-tempDir", req.TempDir,
	}

	stdoutPath := filepath.Join(req.TempDir, "sc2_seat"+req.Seat+"_stdout.log")
	stderrPath := filepath.Join(req.TempDir, "sc2_seat"+req.Seat+"_stderr.log")
	stdout, err := os.Create(stdoutPath)
	if err != nil {
		s.releasePorts(internalPort, externalPort)
		return nil, &StartError{Detail: err.Error()}
	}
	stderr, err := os.Create(stderrPath)
	if err != nil {
		stdout.Close()
		s.releasePorts(internalPort, externalPort)
		return nil, &StartError{Detail: err.Error()}
	}

	proc, err := s.exec.Start(ctx, req.BinaryPath, args, req.TempDir, stdout, stderr)
	if err != nil {
		s.releasePorts(internalPort, externalPort)
		return nil, &StartError{Detail: err.Error()}
	}

	reverse := &tcpproxy.Proxy{}
	reverse.AddRoute(fmt.Sprintf(":%d", externalPort), &tcpproxy.DialProxy{
		Addr:        fmt.Sprintf("127.0.0.1:%d", internalPort),
		DialTimeout: reverseDialTimeout,
	})
	if err := reverse.Start(); err != nil {
		_ = proc.Terminate(true)
		s.releasePorts(internalPort, externalPort)
		return nil, &StartError{Detail: fmt.Sprintf("starting reverse proxy on port %d: %v", externalPort, err)}
	}

	h := &Handle{
		Process:      proc,
		InternalPort: internalPort,
		ExternalPort: externalPort,
		ExternalAddr: fmt.Sprintf("%s:%d", s.host, externalPort),
		reverse:      reverse,
	}
	s.mu.Lock()
	s.children = append(s.children, h)
	s.mu.Unlock()
	return h, nil
}

func (s *Supervisor) releasePorts(internal, external int32) {
	s.allocator.Release(internal)
	s.allocator.Release(external)
}

// TerminateAll kills every tracked engine; engines are always killed
// rather than asked to exit gracefully, matching spec §4.4.
func (s *Supervisor) TerminateAll() {
	s.mu.Lock()
	handles := s.children
	s.children = nil
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *Handle) {
			defer wg.Done()
			h.reverse.Close()
			_ = h.reverse.Wait()
			if !h.Process.Exited() {
				if err := h.Process.Terminate(true); err != nil {
					s.logger.Warnw("killing sc2 engine", "addr", h.ExternalAddr, "error", err)
				}
			}
			s.releasePorts(h.InternalPort, h.ExternalPort)
		}(h)
	}
	wg.Wait()
}

// Shutdown is an alias for TerminateAll, matching the "shutdown" verb
// the orchestrator issues to every supervisor on process exit.
func (s *Supervisor) Shutdown() { s.TerminateAll() }
