// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package sc2types

import (
	"errors"
	"sync"
)

// PlayerEndpoint is a connected bot-facing WebSocket, identified by the
// remote address until the orchestrator has associated it with a seat.
type PlayerEndpoint struct {
	PlayerNum *PlayerNum
	BotName   *string
}

// SC2URL is one allocatable SC2 engine endpoint.
type SC2URL struct {
	URL       string
	Allocated bool
}

// ProxyState is the per-match shared state owned exclusively by the
// orchestrator. Proxy Sessions borrow it under a short-lived lock for
// reads and single-field updates; no suspension point may occur while
// holding the lock.
type ProxyState struct {
	mu sync.Mutex

	Match      *Match
	MapPath    string
	PortConfig *PortConfig
	GameResult *GameResult
	Ready      bool

	players map[string]*PlayerEndpoint
	sc2URLs []*SC2URL
}

// NewProxyState returns an empty ProxyState.
func NewProxyState() *ProxyState {
	return &ProxyState{
		players: map[string]*PlayerEndpoint{},
	}
}

// Begin initializes the state for a freshly pulled match.
func (s *ProxyState) Begin(m *Match, mapPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Match = m
	s.MapPath = mapPath
	s.GameResult = NewGameResult(m.MatchID)
	s.Ready = false
	s.PortConfig = nil
}

// SetReady marks CreateGame as completed and installs the match's PortConfig.
// Player 1 calls this; player 2 observes IsReady before issuing JoinGame,
// forming the happens-before edge spec §5 requires.
func (s *ProxyState) SetReady(pc *PortConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PortConfig = pc
	s.Ready = true
}

// IsReady reports whether player 1's CreateGame has completed.
func (s *ProxyState) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Ready
}

// CurrentPortConfig returns the PortConfig installed by SetReady, or nil.
func (s *ProxyState) CurrentPortConfig() *PortConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PortConfig
}

// RegisterPlayer associates a bot-facing connection address with a seat.
func (s *ProxyState) RegisterPlayer(addr string, num PlayerNum, botName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := num
	s.players[addr] = &PlayerEndpoint{PlayerNum: &n, BotName: &botName}
}

// Endpoint returns the endpoint registered for addr, or nil if unassociated.
func (s *ProxyState) Endpoint(addr string) *PlayerEndpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[addr]
}

// SetSC2URLs replaces the pool of allocatable SC2 engine endpoints.
func (s *ProxyState) SetSC2URLs(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sc2URLs = make([]*SC2URL, len(urls))
	for i, u := range urls {
		s.sc2URLs[i] = &SC2URL{URL: u}
	}
}

// AllocateSC2URL returns the first free SC2 URL and marks it allocated, or
// an error if none remain.
func (s *ProxyState) AllocateSC2URL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.sc2URLs {
		if !u.Allocated {
			u.Allocated = true
			return u.URL, nil
		}
	}
	return "", errNoFreeSC2URL
}

// Clear resets all per-match fields, ready for the next match to be
// pulled. Idempotent: clearing an already-clear state is a no-op.
func (s *ProxyState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Match = nil
	s.MapPath = ""
	s.PortConfig = nil
	s.GameResult = nil
	s.Ready = false
	s.sc2URLs = nil
	s.players = map[string]*PlayerEndpoint{}
}

var errNoFreeSC2URL = errors.New("no free sc2 url available")
