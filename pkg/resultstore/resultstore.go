// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package resultstore persists the current match's canonical result to
// disk so that an external watcher (or a restarted controller) can read
// it without holding a live connection to the process. Spec §6 fixes
// the path and the first-writer-wins semantics: a result already on
// disk is never overwritten by a later one.
package resultstore

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/aiarena/sc2-match-controller/pkg/result"
)

// DefaultPath is the path spec §6 names for the on-disk result
// exchange file.
const DefaultPath = "/logs/sc2_controller/match_result.json"

// Store guards DefaultPath (or an overridden path in tests) against
// concurrent readers and writers.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store backed by path.
func New(path string) *Store {
	return &Store{path: path}
}

// Write persists res, unless a result is already stored, in which case
// the new result is silently discarded.
func (s *Store) Write(res result.AiArenaGameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(s.path, data, 0o644)
}

// Read loads the currently stored result, if any.
func (s *Store) Read() (*result.AiArenaGameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := ioutil.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var res result.AiArenaGameResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Delete removes the stored result file, if present.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
