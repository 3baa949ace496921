// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package matchsource pulls the next Match for the orchestrator to run
// and submits its reduced result, via one of three backends: the
// upstream aiarena HTTP API, a local CSV file, or an in-memory mock for
// tests (spec §4.6 step 1 and step 8, spec §6).
package matchsource

import (
	"context"

	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

// Artifacts names the files a submission may attach; any path left
// empty is simply omitted from the submission rather than treated as
// an error (a bot that never wrote a data directory is routine).
type Artifacts struct {
	Bot1DataZip    string
	Bot2DataZip    string
	Bot1LogZip     string
	Bot2LogZip     string
	ReplayFile     string
	ArenaClientLog string
}

// Source pulls matches and submits their results.
type Source interface {
	// HasNext reports whether a match is currently available.
	HasNext(ctx context.Context) bool
	// NextMatch returns the next match to run, or nil if none is
	// available; a line/response that cannot be parsed yields an error.
	NextMatch(ctx context.Context) (*sc2types.Match, error)
	// SubmitResult reports a match's canonical result and, where
	// supported, its artifacts.
	SubmitResult(ctx context.Context, res result.AiArenaGameResult, artifacts Artifacts) error
}
