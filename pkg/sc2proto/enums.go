// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package sc2proto

// Status mirrors the SC2 API's game status enum.
type Status int32

const (
	StatusUnset    Status = 0
	StatusLaunched Status = 1
	StatusInitGame Status = 2
	StatusInGame   Status = 3
	StatusInReplay Status = 4
	StatusEnded    Status = 5
	StatusQuit     Status = 6
	StatusUnknown  Status = 7
)

// Race mirrors the SC2 API's race enum.
type Race int32

const (
	RaceNoRace  Race = 0
	RaceTerran  Race = 1
	RaceZerg    Race = 2
	RaceProtoss Race = 3
	RaceRandom  Race = 4
)

// PlayerType distinguishes a human/bot participant from a built-in AI.
type PlayerType int32

const (
	PlayerTypeParticipant PlayerType = 1
	PlayerTypeComputer    PlayerType = 2
)

// Result is the per-player SC2 game result enum. Undecided must never be
// forwarded as a final PlayerResult per spec §4.5 step 11.
type Result int32

const (
	ResultUndecided Result = 0
	ResultVictory   Result = 1
	ResultDefeat    Result = 2
	ResultTie       Result = 3
)

// Difficulty is the built-in AI difficulty, carried through unchanged;
// the controller never synthesizes computer opponents itself but must
// round-trip the field if a bot's CreateGame request included one.
type Difficulty int32
