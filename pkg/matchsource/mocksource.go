// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package matchsource

import (
	"context"
	"sync"

	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

// MockSource serves a fixed, in-memory queue of matches and records
// every submitted result, for use in orchestrator tests and in
// "test mode" runs that check an expected result (spec §7's exit code
// 2 on "expected-result mismatch in test mode").
type MockSource struct {
	mu      sync.Mutex
	queue   []*sc2types.Match
	Results []SubmittedResult
}

// SubmittedResult records one call to SubmitResult.
type SubmittedResult struct {
	Result    result.AiArenaGameResult
	Artifacts Artifacts
}

// NewMockSource returns a MockSource seeded with matches.
func NewMockSource(matches ...*sc2types.Match) *MockSource {
	return &MockSource{queue: matches}
}

// HasNext reports whether a queued match remains.
func (s *MockSource) HasNext(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0
}

// NextMatch pops the head of the queue, or returns nil if empty.
func (s *MockSource) NextMatch(ctx context.Context) (*sc2types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, nil
	}
	m := s.queue[0]
	s.queue = s.queue[1:]
	return m, nil
}

// SubmitResult records the submission for later assertion.
func (s *MockSource) SubmitResult(ctx context.Context, res result.AiArenaGameResult, artifacts Artifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results = append(s.Results, SubmittedResult{Result: res, Artifacts: artifacts})
	return nil
}
