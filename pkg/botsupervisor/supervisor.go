// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package botsupervisor starts and supervises bot processes, dispatching
// on bot_type the way spec §4.3 requires, and discovers each bot's
// listening port so the proxy can route its WebSocket traffic.
package botsupervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aiarena/sc2-match-controller/pkg/procexec"
	"github.com/aiarena/sc2-match-controller/pkg/procnet"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

const (
	earlyExitCheck  = 2 * time.Second
	portPollAttempt = 10
	portPollWait    = 3 * time.Second
	gracefulWait    = 5 * time.Second
)

// StartError is returned for any failure in starting or discovering a bot.
type StartError struct {
	Detail string
}

func (e *StartError) Error() string { return "bot start failed: " + e.Detail }

// StartRequest describes one bot to launch.
type StartRequest struct {
	BotDir      string
	BotName     string
	BotType     sc2types.BotType
	PythonBin   string
	GamePort    int32
	LadderHost  string
	StartPort   int32
	OpponentID  string
}

// dispatch resolves the exec path and argument prefix for a bot_type,
// per spec §4.3's table.
func dispatch(req StartRequest) (string, []string, error) {
	switch req.BotType {
	case sc2types.BotTypePython:
		bin := req.PythonBin
		if bin == "" {
			bin = "python3"
		}
		return bin, []string{"run.py"}, nil
	case sc2types.BotTypeDotnetCore:
		return "dotnet", []string{req.BotName + ".dll"}, nil
	case sc2types.BotTypeJava:
		return "java", []string{"-jar", req.BotName + ".jar"}, nil
	case sc2types.BotTypeNodeJs:
		return "node", []string{req.BotName + ".js"}, nil
	case sc2types.BotTypeCppWin32:
		return "wine", []string{req.BotName + ".exe"}, nil
	case sc2types.BotTypeCppLinux:
		bin := filepath.Join(req.BotDir, req.BotName)
		if err := os.Chmod(bin, 0o777); err != nil {
			return "", nil, fmt.Errorf("chmod %s: %w", bin, err)
		}
		return "./" + req.BotName, nil, nil
	default:
		return "", nil, fmt.Errorf("unknown bot_type %q", req.BotType)
	}
}

// Handle is a running bot's supervision record, keyed by its discovered
// listening port (its "process key").
type Handle struct {
	Process    *procexec.Process
	ProcessKey uint32
	BotName    string
	StartedAt  time.Time
	StdoutPath string
	StderrPath string
}

// Supervisor starts and tracks bot child processes.
type Supervisor struct {
	exec   procexec.Executor
	logger *zap.SugaredLogger

	mu       sync.Mutex
	children map[uint32]*Handle
}

// New returns a Supervisor using the given Executor to launch children.
func New(executor procexec.Executor, logger *zap.SugaredLogger) *Supervisor {
	return &Supervisor{
		exec:     executor,
		logger:   logger,
		children: map[uint32]*Handle{},
	}
}

// Start launches req's bot, waits out the early-exit window, then
// discovers its listening port via the PID->port resolver; that port
// becomes the process key other operations address it by.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (*Handle, error) {
	cmdName, prefixArgs, err := dispatch(req)
	if err != nil {
		return nil, &StartError{Detail: err.Error()}
	}
	args := append(append([]string{}, prefixArgs...),
		"--GamePort", fmt.Sprint(req.GamePort),
		"--LadderServer", req.LadderHost,
		"--StartPort", fmt.Sprint(req.StartPort),
		"--OpponentId", req.OpponentID,
	)

	stdoutPath := filepath.Join(req.BotDir, req.BotName+"_stdout.log")
	stderrPath := filepath.Join(req.BotDir, req.BotName+"_stderr.log")
	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return nil, &StartError{Detail: err.Error()}
	}
	stderr, err := os.Create(stderrPath)
	if err != nil {
		stdout.Close()
		return nil, &StartError{Detail: err.Error()}
	}

	proc, err := s.exec.Start(ctx, cmdName, args, req.BotDir, stdout, stderr)
	if err != nil {
		return nil, &StartError{Detail: err.Error()}
	}

	select {
	case <-time.After(earlyExitCheck):
	case <-ctx.Done():
	}
	if proc.Exited() {
		return nil, &StartError{Detail: fmt.Sprintf("%s exited immediately: %v", req.BotName, proc.WaitErr())}
	}

	port, err := procnet.PollForPort(ctx, int32(proc.PID()), portPollAttempt, portPollWait)
	if err != nil {
		_ = proc.Terminate(true)
		return nil, &StartError{Detail: fmt.Sprintf("discovering %s's port: %v", req.BotName, err)}
	}

	h := &Handle{
		Process:    proc,
		ProcessKey: port,
		BotName:    req.BotName,
		StartedAt:  time.Now(),
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
	}
	s.mu.Lock()
	s.children[port] = h
	s.mu.Unlock()
	return h, nil
}

// Terminate stops the child keyed by processKey, gracefully unless kill
// is set: it polls for a natural exit up to gracefulWait before killing.
func (s *Supervisor) Terminate(key uint32, kill bool) error {
	s.mu.Lock()
	h, ok := s.children[key]
	delete(s.children, key)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no child registered for process key %d", key)
	}
	return terminateOne(h, kill)
}

func terminateOne(h *Handle, kill bool) error {
	if h.Process.Exited() {
		return nil
	}
	if kill {
		return h.Process.Terminate(true)
	}
	if err := h.Process.Terminate(false); err != nil {
		return err
	}
	if h.Process.Wait(gracefulWait) {
		return nil
	}
	return h.Process.Terminate(true)
}

// TerminateAll stops every tracked child; mode selects graceful vs kill
// semantics, matching spec §4.3's terminate_all contract.
func (s *Supervisor) TerminateAll(mode string) {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.children))
	for _, h := range s.children {
		handles = append(handles, h)
	}
	s.children = map[uint32]*Handle{}
	s.mu.Unlock()

	kill := mode == "kill"
	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *Handle) {
			defer wg.Done()
			if err := terminateOne(h, kill); err != nil {
				s.logger.Warnw("terminating bot", "bot", h.BotName, "error", err)
			}
		}(h)
	}
	wg.Wait()
}

// Stats is the per-child status snapshot exposed over the controller's
// HTTP stats endpoints.
type Stats struct {
	ProcessKey uint32 `json:"process_key"`
	BotName    string `json:"bot_name"`
	PID        int    `json:"pid"`
	Running    bool   `json:"running"`
	UptimeSecs float64 `json:"uptime_secs"`
}

// Stats returns the status snapshot for the child keyed by processKey.
func (s *Supervisor) Stats(key uint32) (Stats, bool) {
	s.mu.Lock()
	h, ok := s.children[key]
	s.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return Stats{
		ProcessKey: h.ProcessKey,
		BotName:    h.BotName,
		PID:        h.Process.PID(),
		Running:    !h.Process.Exited(),
		UptimeSecs: time.Since(h.StartedAt).Seconds(),
	}, true
}

// StatsAll returns a snapshot for every tracked child.
func (s *Supervisor) StatsAll() []Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stats, 0, len(s.children))
	for _, h := range s.children {
		out = append(out, Stats{
			ProcessKey: h.ProcessKey,
			BotName:    h.BotName,
			PID:        h.Process.PID(),
			Running:    !h.Process.Exited(),
			UptimeSecs: time.Since(h.StartedAt).Seconds(),
		})
	}
	return out
}

// Status reports whether the child keyed by processKey is still running.
func (s *Supervisor) Status(key uint32) (running, known bool) {
	s.mu.Lock()
	h, ok := s.children[key]
	s.mu.Unlock()
	if !ok {
		return false, false
	}
	return !h.Process.Exited(), true
}
