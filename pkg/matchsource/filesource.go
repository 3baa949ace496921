// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package matchsource

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"sync"

	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

// ExtractError reports a malformed CSV match line.
type ExtractError struct {
	Line   string
	Reason string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extracting match from line %q: %s", e.Line, e.Reason)
}

// FileSource pulls matches from a CSV file and appends submitted
// results to a JSON results file, mirroring the CLI match intake mode
// (spec §6's "CLI match intake" and "on-disk result exchange").
type FileSource struct {
	mu          sync.Mutex
	matchesPath string
	resultsPath string
}

// NewFileSource returns a FileSource reading matches from matchesPath
// and appending results to resultsPath.
func NewFileSource(matchesPath, resultsPath string) *FileSource {
	return &FileSource{matchesPath: matchesPath, resultsPath: resultsPath}
}

// HasNext reports whether an unconsumed match line remains.
func (s *FileSource) HasNext(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, err := s.readLines()
	if err != nil {
		return false
	}
	for _, l := range lines {
		if isLiveLine(l) {
			return true
		}
	}
	return false
}

// NextMatch returns the first unconsumed match line, assigning it the
// next synthetic match id (max seen result id + 1, since file mode has
// no upstream id to use).
func (s *FileSource) NextMatch(ctx context.Context) (*sc2types.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, err := s.readLines()
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if !isLiveLine(l) {
			continue
		}
		m, err := extractMatch(l)
		if err != nil {
			return nil, err
		}
		m.MatchID = s.currentMatchID() + 1
		return m, nil
	}
	return nil, nil
}

// SubmitResult appends res to the results file (first-writer-wins per
// match id is the on-disk result store's contract, not this file's) and
// comments out the consumed match line.
func (s *FileSource) SubmitResult(ctx context.Context, res result.AiArenaGameResult, artifacts Artifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.readResults()
	if err != nil {
		return err
	}
	results = append(results, res)
	if err := writeResultsFile(s.resultsPath, results); err != nil {
		return err
	}
	return s.commentOutFirstLive()
}

func (s *FileSource) currentMatchID() uint32 {
	results, err := s.readResults()
	if err != nil || len(results) == 0 {
		return 0
	}
	max := results[0].MatchID
	for _, r := range results[1:] {
		if r.MatchID > max {
			max = r.MatchID
		}
	}
	return max
}

func (s *FileSource) readLines() ([]string, error) {
	f, err := os.Open(s.matchesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func (s *FileSource) commentOutFirstLive() error {
	lines, err := s.readLines()
	if err != nil {
		return err
	}
	for i, l := range lines {
		if isLiveLine(l) {
			lines[i] = "#" + l
			break
		}
	}
	f, err := os.Create(s.matchesPath)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

type fileResults struct {
	Results []result.AiArenaGameResult `json:"results"`
}

func (s *FileSource) readResults() ([]result.AiArenaGameResult, error) {
	data, err := ioutil.ReadFile(s.resultsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var r fileResults
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, nil
	}
	return r.Results, nil
}

func writeResultsFile(path string, results []result.AiArenaGameResult) error {
	data, err := json.MarshalIndent(fileResults{Results: results}, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0o644)
}

func isLiveLine(l string) bool {
	return l != "" && !strings.HasPrefix(l, "#")
}

func extractMatch(line string) (*sc2types.Match, error) {
	fields := strings.Split(line, ",")
	switch {
	case len(fields) > 9:
		return nil, &ExtractError{Line: line, Reason: "TooManyFields"}
	case len(fields) < 9:
		return nil, &ExtractError{Line: line, Reason: "MissingFields"}
	}

	bot1 := fields[0:4]
	bot2 := fields[4:8]
	mapName := fields[8]

	p1, err := filePlayer(bot1)
	if err != nil {
		return nil, &ExtractError{Line: line, Reason: err.Error()}
	}
	p2, err := filePlayer(bot2)
	if err != nil {
		return nil, &ExtractError{Line: line, Reason: err.Error()}
	}

	return &sc2types.Match{
		MapName: mapName,
		Player1: p1,
		Player2: p2,
	}, nil
}

func filePlayer(fields []string) (sc2types.MatchPlayer, error) {
	race, err := parseRace(fields[2])
	if err != nil {
		return sc2types.MatchPlayer{}, err
	}
	botType, err := parseBotType(fields[3])
	if err != nil {
		return sc2types.MatchPlayer{}, err
	}
	return sc2types.MatchPlayer{
		ID:      fields[0],
		Name:    fields[1],
		Race:    race,
		BotType: botType,
	}, nil
}
