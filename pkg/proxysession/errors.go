// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package proxysession

import (
	"errors"
	"fmt"

	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

// The Proxy Session's terminal errors, one type per row of the session's
// error-to-outcome mapping table. Each satisfies error and is inspected
// with errors.As by outcomeForError.

// BotQuitError is returned when the bot requests LeaveGame or Quit
// before JoinGame has been observed.
type BotQuitError struct{}

func (e *BotQuitError) Error() string { return "bot quit before joining the game" }

// NoMessageAvailableError wraps a read failure that isn't a clean
// close, e.g. a truncated frame.
type NoMessageAvailableError struct {
	Cause error
}

func (e *NoMessageAvailableError) Error() string {
	return fmt.Sprintf("no message available: %v", e.Cause)
}
func (e *NoMessageAvailableError) Unwrap() error { return e.Cause }

// BotWebsocketError wraps any transport-level failure talking to the bot.
type BotWebsocketError struct {
	Cause error
}

func (e *BotWebsocketError) Error() string { return fmt.Sprintf("bot websocket error: %v", e.Cause) }
func (e *BotWebsocketError) Unwrap() error  { return e.Cause }

// Sc2WebsocketError wraps any transport-level failure talking to SC2.
type Sc2WebsocketError struct {
	Cause error
}

func (e *Sc2WebsocketError) Error() string { return fmt.Sprintf("sc2 websocket error: %v", e.Cause) }
func (e *Sc2WebsocketError) Unwrap() error  { return e.Cause }

// BotUnexpectedMessageError reports a bot message that is not valid at
// its point in the session. No path in this package returns it: a
// non-binary frame from the bot surfaces from recvBot as a
// BotWebsocketError, and an out-of-state request during AwaitingJoin as
// an UnexpectedRequestError.
type BotUnexpectedMessageError struct {
	Detail string
}

func (e *BotUnexpectedMessageError) Error() string {
	return "unexpected message from bot: " + e.Detail
}

// Sc2UnexpectedMessageError is returned when SC2 replies with something
// the session did not ask for.
type Sc2UnexpectedMessageError struct {
	Detail string
}

func (e *Sc2UnexpectedMessageError) Error() string {
	return "unexpected message from sc2: " + e.Detail
}

// UnexpectedRequestError is returned during AwaitingJoin when the bot
// sends anything other than Quit, Ping or JoinGame.
type UnexpectedRequestError struct {
	Detail string
}

func (e *UnexpectedRequestError) Error() string {
	return "unexpected request while awaiting join: " + e.Detail
}

// ProtoParseError wraps a wire-decode failure from either side.
type ProtoParseError struct {
	Cause error
}

func (e *ProtoParseError) Error() string { return fmt.Sprintf("proto parse error: %v", e.Cause) }
func (e *ProtoParseError) Unwrap() error  { return e.Cause }

// CreateGameError is returned when SC2's CreateGame response carries a
// non-zero error code.
type CreateGameError struct {
	Detail string
}

func (e *CreateGameError) Error() string { return "create_game failed: " + e.Detail }

// JoinGameTimeoutError is returned when SC2 never reaches init_game or
// in_game status after JoinGame.
type JoinGameTimeoutError struct{}

func (e *JoinGameTimeoutError) Error() string { return "timed out waiting for sc2 to join the game" }

// Sc2TimeoutError is returned when SC2 does not answer within its
// per-message deadline.
type Sc2TimeoutError struct{}

func (e *Sc2TimeoutError) Error() string { return "sc2 did not respond in time" }

// BotTimeoutError is returned when the bot does not send a request
// within timeout_secs.
type BotTimeoutError struct{}

func (e *BotTimeoutError) Error() string { return "bot did not respond in time" }

// outcome is the effect a terminal session error has on the match's
// GameResult, per spec §4.5's error-to-outcome table.
type outcome struct {
	result       sc2types.SC2Result // zero value means "leave unchanged"
	override     *sc2types.AiArenaResult
	overrideOnly bool // true for Sc2Timeout: override set only if no prior result
}

func resultPtr(r sc2types.AiArenaResult) *sc2types.AiArenaResult { return &r }

// outcomeForError maps a terminal session error to its effect on the
// match result, per spec §4.5.
func outcomeForError(err error) outcome {
	var (
		botQuit       *BotQuitError
		botTimeout    *BotTimeoutError
		botWS         *BotWebsocketError
		botUnexpected *BotUnexpectedMessageError
		sc2WS         *Sc2WebsocketError
		sc2Unexpected *Sc2UnexpectedMessageError
		sc2Timeout    *Sc2TimeoutError
		noMsg         *NoMessageAvailableError
		protoParse    *ProtoParseError
		unexpectedReq *UnexpectedRequestError
		createGame    *CreateGameError
		joinTimeout   *JoinGameTimeoutError
	)
	switch {
	case errors.As(err, &botQuit):
		return outcome{result: sc2types.SC2Defeat}
	case errors.As(err, &botTimeout):
		return outcome{result: sc2types.SC2Timeout, override: resultPtr(sc2types.ResultError)}
	case errors.As(err, &botWS):
		return outcome{result: sc2types.BotCrash}
	case errors.As(err, &botUnexpected):
		return outcome{result: sc2types.BotCrash}
	case errors.As(err, &sc2WS):
		return outcome{result: sc2types.SC2Crash}
	case errors.As(err, &sc2Unexpected):
		return outcome{result: sc2types.SC2Crash, override: resultPtr(sc2types.ResultError)}
	case errors.As(err, &sc2Timeout):
		return outcome{override: resultPtr(sc2types.ResultError), overrideOnly: true}
	case errors.As(err, &noMsg):
		return outcome{result: sc2types.BotCrash, override: resultPtr(sc2types.ResultError)}
	case errors.As(err, &protoParse):
		return outcome{result: sc2types.SC2Crash, override: resultPtr(sc2types.ResultError)}
	case errors.As(err, &unexpectedReq), errors.As(err, &createGame), errors.As(err, &joinTimeout):
		return outcome{override: resultPtr(sc2types.ResultInitializationError)}
	default:
		return outcome{result: sc2types.SC2Crash, override: resultPtr(sc2types.ResultError)}
	}
}
