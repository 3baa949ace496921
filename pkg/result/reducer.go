// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package result implements the canonical result reducer: folding the two
// players' SC2 outcomes plus any orchestrator override into one
// AiArenaResult.
package result

import "github.com/aiarena/sc2-match-controller/pkg/sc2types"

// Verdict is the outcome of reducing a GameResult, including the data
// carried alongside the canonical result for submission.
type Verdict struct {
	Result      sc2types.AiArenaResult
	GameSteps   uint32
	Player1     *sc2types.PlayerResult
	Player2     *sc2types.PlayerResult
}

// Reduce folds a GameResult into its canonical AiArenaResult, following the
// priority order: override wins outright; otherwise SC2Crash > Tie >
// Crash > Timeout > Victory/Defeat combination.
func Reduce(gr *sc2types.GameResult) Verdict {
	p1, p2, override := gr.Snapshot()
	v := Verdict{Player1: p1, Player2: p2}
	v.GameSteps = gameSteps(p1, p2)

	if override != nil {
		v.Result = *override
		return v
	}
	v.Result = reducePlayerResults(p1, p2)
	return v
}

// reducePlayerResults applies the priority-ordered fold over the two
// per-player SC2 outcomes. Missing results are treated as absent from
// every rule (they only matter for the final Victory/Defeat mapping,
// where a missing counterpart simply fails to match).
func reducePlayerResults(p1, p2 *sc2types.PlayerResult) sc2types.AiArenaResult {
	r1 := playerOutcome(p1)
	r2 := playerOutcome(p2)

	if r1 == sc2types.SC2Crash || r2 == sc2types.SC2Crash {
		return sc2types.ResultError
	}
	if r1 == sc2types.SC2Tie || r2 == sc2types.SC2Tie {
		return sc2types.ResultTie
	}
	if r1 == sc2types.BotCrash {
		return sc2types.ResultPlayer1Crash
	}
	if r2 == sc2types.BotCrash {
		return sc2types.ResultPlayer2Crash
	}
	if r1 == sc2types.SC2Timeout {
		return sc2types.ResultPlayer1TimeOut
	}
	if r2 == sc2types.SC2Timeout {
		return sc2types.ResultPlayer2TimeOut
	}
	if r1 == sc2types.SC2Victory || r2 == sc2types.SC2Defeat {
		return sc2types.ResultPlayer1Win
	}
	if r2 == sc2types.SC2Victory || r1 == sc2types.SC2Defeat {
		return sc2types.ResultPlayer2Win
	}
	return sc2types.ResultInitializationError
}

func playerOutcome(p *sc2types.PlayerResult) sc2types.SC2Result {
	if p == nil {
		return ""
	}
	return p.Result
}

// gameSteps returns the last non-zero game_loops seen across both players.
func gameSteps(p1, p2 *sc2types.PlayerResult) uint32 {
	var steps uint32
	if p1 != nil && p1.GameLoops > 0 {
		steps = p1.GameLoops
	}
	if p2 != nil && p2.GameLoops > 0 {
		steps = p2.GameLoops
	}
	return steps
}

// AvgFrameTime computes frame_time_sum / game_loops, coercing NaN (the
// game_loops == 0 case) to 0.
func AvgFrameTime(frameTimeSum float32, gameLoops uint32) float32 {
	if gameLoops == 0 {
		return 0
	}
	v := frameTimeSum / float32(gameLoops)
	if v != v { // NaN check without importing math
		return 0
	}
	return v
}

// AiArenaGameResult is the canonical, submittable shape of a reduced
// match result, matching the multipart form fields spec §6 names for
// the upstream match source.
type AiArenaGameResult struct {
	MatchID         uint32    `json:"match"`
	Bot1AvgStepTime *float32  `json:"bot1_avg_step_time,omitempty"`
	Bot1Tags        *[]string `json:"bot1_tags,omitempty"`
	Bot2AvgStepTime *float32  `json:"bot2_avg_step_time,omitempty"`
	Bot2Tags        *[]string `json:"bot2_tags,omitempty"`
	Result          sc2types.AiArenaResult `json:"type"`
	GameSteps       uint32    `json:"game_steps"`
}

// ToAiArenaGameResult builds the submittable result for matchID from a
// Verdict, carrying over each present player's average step time and
// tags.
func (v Verdict) ToAiArenaGameResult(matchID uint32) AiArenaGameResult {
	out := AiArenaGameResult{MatchID: matchID, Result: v.Result, GameSteps: v.GameSteps}
	if v.Player1 != nil {
		t := v.Player1.FrameTime
		tags := v.Player1.Tags.Values()
		out.Bot1AvgStepTime = &t
		out.Bot1Tags = &tags
	}
	if v.Player2 != nil {
		t := v.Player2.FrameTime
		tags := v.Player2.Tags.Values()
		out.Bot2AvgStepTime = &t
		out.Bot2Tags = &tags
	}
	return out
}
