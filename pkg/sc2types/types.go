// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package sc2types holds the data model shared between the match
// orchestrator, the proxy sessions and the result reducer: matches,
// players, game configuration, port assignments and results.
package sc2types

import "sync"

// PlayerNum identifies a seat in a two-player match.
type PlayerNum int

const (
	PlayerOne PlayerNum = 1
	PlayerTwo PlayerNum = 2
)

// Race is the SC2 race a bot plays.
type Race string

const (
	RaceTerran  Race = "Terran"
	RaceZerg    Race = "Zerg"
	RaceProtoss Race = "Protoss"
	RaceRandom  Race = "Random"
	RaceNoRace  Race = "NoRace"
)

// BotType selects how the Bot Supervisor dispatches a bot process.
type BotType string

const (
	BotTypeCppWin32    BotType = "CppWin32"
	BotTypeCppLinux    BotType = "CppLinux"
	BotTypeDotnetCore  BotType = "DotnetCore"
	BotTypeJava        BotType = "Java"
	BotTypeNodeJs      BotType = "NodeJs"
	BotTypePython      BotType = "Python"
)

// MatchPlayer is one seat of a Match.
type MatchPlayer struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Race    Race    `json:"race"`
	BotType BotType `json:"bot_type"`
}

// AiArenaMatchRefs carries source URLs and checksums for the bot
// executables and the map, as returned by the upstream match source.
type AiArenaMatchRefs struct {
	Bot1ZipURL  string `json:"bot1_zip_url"`
	Bot1ZipMD5  string `json:"bot1_zip_md5hash"`
	Bot1DataURL string `json:"bot1_data_url"`
	Bot1DataMD5 string `json:"bot1_data_md5hash"`
	Bot2ZipURL  string `json:"bot2_zip_url"`
	Bot2ZipMD5  string `json:"bot2_zip_md5hash"`
	Bot2DataURL string `json:"bot2_data_url"`
	Bot2DataMD5 string `json:"bot2_data_md5hash"`
	MapURL      string `json:"map_url"`
	MapMD5      string `json:"map_md5hash"`
}

// Match is one scheduled game between two bots.
type Match struct {
	MatchID      uint32            `json:"match_id"`
	MapName      string            `json:"map_name"`
	Player1      MatchPlayer       `json:"player1"`
	Player2      MatchPlayer       `json:"player2"`
	AiArenaMatch *AiArenaMatchRefs `json:"aiarena_match,omitempty"`
}

// Player returns the MatchPlayer for the given seat.
func (m *Match) Player(num PlayerNum) MatchPlayer {
	if num == PlayerOne {
		return m.Player1
	}
	return m.Player2
}

// GameConfig is derived from a Match plus system-wide settings and is
// applied identically to both Proxy Sessions of a match.
type GameConfig struct {
	Map           string
	MaxGameTime   uint32
	MaxFrameTime  uint32
	TimeoutSecs   uint32
	ReplayPath    string
	ReplayName    string
	DisableDebug  bool
	RealTime      bool
	ValidateRace  bool
	Players       [2]MatchPlayer
	// PassPorts holds the --StartPort value handed to each seat's bot
	// process; JoinGame rewriting verifies the bot's own port block was
	// built contiguously off this value (spec §4.5's pass-port check).
	PassPorts [2]int32
}

// NewGameConfig derives the per-match GameConfig from a Match and the
// system defaults.
func NewGameConfig(m *Match, mapPath string, timeoutSecs, maxGameTime uint32, disableDebug, realTime, validateRace bool, replayPath string) *GameConfig {
	return &GameConfig{
		Map:          mapPath,
		MaxGameTime:  maxGameTime,
		TimeoutSecs:  timeoutSecs,
		ReplayPath:   replayPath,
		ReplayName:   ReplayName(m.MatchID, m.Player1.Name, m.Player2.Name),
		DisableDebug: disableDebug,
		RealTime:     realTime,
		ValidateRace: validateRace,
		Players:      [2]MatchPlayer{m.Player1, m.Player2},
	}
}

// PlayerConfig returns the MatchPlayer and pass-port configured for the
// given seat.
func (c *GameConfig) PlayerConfig(num PlayerNum) (MatchPlayer, int32) {
	return c.Players[num-1], c.PassPorts[num-1]
}

// ReplayName builds the canonical replay file name for a match.
func ReplayName(matchID uint32, p1, p2 string) string {
	return formatReplayName(matchID, p1, p2)
}

// PortConfig is the set of five mutually distinct ports assigned to a
// match's SC2 inter-instance communication.
type PortConfig struct {
	SharedPort    int32
	ServerGame    int32
	ServerBase    int32
	ClientGame    int32
	ClientBase    int32
}

// Distinct reports whether all five ports of the PortConfig differ.
func (p *PortConfig) Distinct() bool {
	seen := map[int32]struct{}{
		p.SharedPort: {},
	}
	for _, v := range []int32{p.ServerGame, p.ServerBase, p.ClientGame, p.ClientBase} {
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}

// SC2Result is the per-player outcome as reported by the SC2 engine.
type SC2Result string

const (
	SC2Victory SC2Result = "Victory"
	SC2Defeat  SC2Result = "Defeat"
	SC2Tie     SC2Result = "Tie"
	BotCrash   SC2Result = "Crash"
	SC2Crash   SC2Result = "SC2Crash"
	SC2Timeout SC2Result = "Timeout"
)

// PlayerResult is the outcome recorded by one Proxy Session.
type PlayerResult struct {
	GameLoops  uint32
	FrameTime  float32
	PlayerID   uint32
	Tags       *OrderedStringSet
	Result     SC2Result
}

// NewPlayerResult returns an empty PlayerResult with an initialized tag set.
func NewPlayerResult() *PlayerResult {
	return &PlayerResult{Tags: NewOrderedStringSet()}
}

// AiArenaResult is the canonical, match-level verdict.
type AiArenaResult string

const (
	ResultPlayer1Crash        AiArenaResult = "Player1Crash"
	ResultPlayer2Crash        AiArenaResult = "Player2Crash"
	ResultPlayer1TimeOut      AiArenaResult = "Player1TimeOut"
	ResultPlayer2TimeOut      AiArenaResult = "Player2TimeOut"
	ResultPlayer1Win          AiArenaResult = "Player1Win"
	ResultPlayer2Win          AiArenaResult = "Player2Win"
	ResultTie                 AiArenaResult = "Tie"
	ResultInitializationError AiArenaResult = "InitializationError"
	ResultError               AiArenaResult = "Error"
)

// GameResult accumulates the two players' results plus any orchestrator
// override for one match.
type GameResult struct {
	mu             sync.Mutex
	MatchID        uint32
	Player1Result  *PlayerResult
	Player2Result  *PlayerResult
	OverrideResult *AiArenaResult
}

// NewGameResult returns an empty GameResult for the given match.
func NewGameResult(matchID uint32) *GameResult {
	return &GameResult{MatchID: matchID}
}

// SetPlayerResult records the result reported by one seat's Proxy Session.
func (g *GameResult) SetPlayerResult(num PlayerNum, r *PlayerResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if num == PlayerOne {
		g.Player1Result = r
	} else {
		g.Player2Result = r
	}
}

// SetOverride forces the match-level verdict, taking precedence over any
// per-player results in the Result Reducer.
func (g *GameResult) SetOverride(r AiArenaResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.OverrideResult = &r
}

// IsReady reports whether the match has reached a terminal state: both
// player results are present, or an override forcing Error or
// InitializationError has been set.
func (g *GameResult) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.OverrideResult != nil && (*g.OverrideResult == ResultError || *g.OverrideResult == ResultInitializationError) {
		return true
	}
	return g.Player1Result != nil && g.Player2Result != nil
}

// Snapshot returns the current player results and override, read under
// the GameResult's lock. The returned pointers are shared with the
// GameResult, not copies.
func (g *GameResult) Snapshot() (*PlayerResult, *PlayerResult, *AiArenaResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Player1Result, g.Player2Result, g.OverrideResult
}

// OrderedStringSet is an insertion-ordered, deduplicated set of strings,
// used to accumulate chat tags over the lifetime of a Proxy Session.
type OrderedStringSet struct {
	mu      sync.Mutex
	order   []string
	present map[string]struct{}
}

// NewOrderedStringSet returns an empty OrderedStringSet.
func NewOrderedStringSet() *OrderedStringSet {
	return &OrderedStringSet{present: map[string]struct{}{}}
}

// Add inserts v if it is not already present; returns true if it was added.
func (s *OrderedStringSet) Add(v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.present[v]; ok {
		return false
	}
	s.present[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

// Values returns the set's contents in insertion order.
func (s *OrderedStringSet) Values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
