// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package proxysession implements the protocol state machine that sits
// between one bot and one SC2 engine for the lifetime of a match: it
// forwards, inspects and rewrites Request/Response traffic so the bot
// never learns its opponent's identity or true race, enforces the
// match's port and timing contracts, and produces the terminal
// PlayerResult the orchestrator folds into a verdict (spec §4.5).
package proxysession

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aiarena/sc2-match-controller/pkg/codec"
	"github.com/aiarena/sc2-match-controller/pkg/fsio"
	"github.com/aiarena/sc2-match-controller/pkg/ports"
	"github.com/aiarena/sc2-match-controller/pkg/sc2proto"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

// FSM state names, mirroring the contract states of spec §4.5.
const (
	StateConnected    = "Connected"
	StateAwaitingJoin = "AwaitingJoin"
	StateInGame       = "InGame"
	StateCompleted    = "Completed"
)

const (
	sc2ConnectRetries = 60
	sc2ConnectBackoff = time.Second
	sc2ConnectTimeout = 120 * time.Second
	sc2PingRetries    = 10
	sc2PingBackoff    = 3 * time.Second
	readyPollMax      = 200
	readyPollInterval = 250 * time.Millisecond
	sc2MessageTimeout = 60 * time.Second
)

// Session drives one bot's leg of a match through Connected ->
// AwaitingJoin -> InGame -> Completed.
type Session struct {
	botAddr string
	botConn *codec.Conn
	sc2Conn *codec.Conn
	state   *sc2types.ProxyState
	config  *sc2types.GameConfig
	fio     fsio.FileIO
	logger  *zap.SugaredLogger

	portAllocator *ports.Allocator // set only on the seat that issues CreateGame

	fsmState  string
	playerNum sc2types.PlayerNum
	botName   string
	passPort  int32
	playerID  uint32

	tags         *sc2types.OrderedStringSet
	frameTimeSum float64
	gameLoops    uint32
	surrendered  bool
}

// NewSession returns a Session for a freshly upgraded bot connection,
// identified by its remote address until the orchestrator associates it
// with a seat via ProxyState.RegisterPlayer.
func NewSession(botAddr string, botConn *codec.Conn, state *sc2types.ProxyState, config *sc2types.GameConfig, fio fsio.FileIO, logger *zap.SugaredLogger) *Session {
	return &Session{
		botAddr:  botAddr,
		botConn:  botConn,
		state:    state,
		config:   config,
		fio:      fio,
		logger:   logger,
		fsmState: StateConnected,
		tags:     sc2types.NewOrderedStringSet(),
	}
}

// WithPortAllocator arms this Session to run CreateGame and install a
// fresh PortConfig once it has done so; only the player-1 leg of a
// match needs this.
func (s *Session) WithPortAllocator(a *ports.Allocator) *Session {
	s.portAllocator = a
	return s
}

// State returns the session's current FSM state name.
func (s *Session) State() string { return s.fsmState }

// Tags returns the chat tags accumulated over the session's lifetime.
func (s *Session) Tags() *sc2types.OrderedStringSet { return s.tags }

// Run drives the session to completion, recording the terminal
// PlayerResult (or an override) into the match's GameResult before
// returning. The returned error is the terminal condition even on a
// "successful" game outcome path that happens to be represented as a
// Go error internally (e.g. BotQuit); callers inspect GameResult, not
// this return value, to learn the match outcome.
func (s *Session) Run(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return s.finish(err)
	}

	if s.playerNum == sc2types.PlayerOne {
		if err := s.createGame(ctx); err != nil {
			return s.finish(err)
		}
	}

	if err := s.awaitReady(ctx); err != nil {
		return s.finish(err)
	}

	s.fsmState = StateAwaitingJoin
	if err := s.awaitJoin(ctx); err != nil {
		return s.finish(err)
	}

	s.fsmState = StateInGame
	if err := s.pump(ctx); err != nil {
		return s.finish(err)
	}

	s.fsmState = StateCompleted
	return nil
}

// finish applies the error-to-outcome mapping (spec §4.5) to the
// match's GameResult and returns the error unchanged.
func (s *Session) finish(err error) error {
	o := outcomeForError(err)
	if o.result != "" {
		pr := sc2types.NewPlayerResult()
		pr.PlayerID = s.playerID
		pr.Tags = s.tags
		pr.FrameTime = AvgFrameTime(s.frameTimeSum, s.gameLoops)
		pr.GameLoops = s.gameLoops
		pr.Result = o.result
		s.state.GameResult.SetPlayerResult(s.playerNum, pr)
	}
	if o.override != nil {
		if o.overrideOnly {
			p1, p2, _ := s.state.GameResult.Snapshot()
			if p1 != nil || p2 != nil {
				return err
			}
		}
		s.state.GameResult.SetOverride(*o.override)
	}
	return err
}

// AvgFrameTime divides the accumulated step time by the number of game
// loops observed, coercing a zero-loop NaN to 0 (spec §4.5).
func AvgFrameTime(frameTimeSum float64, gameLoops uint32) float32 {
	if gameLoops == 0 {
		return 0
	}
	return float32(frameTimeSum / float64(gameLoops))
}

func (s *Session) connect(ctx context.Context) error {
	url, err := s.state.AllocateSC2URL()
	if err != nil {
		return &Sc2WebsocketError{Cause: err}
	}

	var lastErr error
	for attempt := 0; attempt < sc2ConnectRetries; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, sc2ConnectTimeout)
		conn, dialErr := codec.Dial(dialCtx, url)
		cancel()
		if dialErr == nil {
			s.sc2Conn = conn
			lastErr = nil
			break
		}
		lastErr = dialErr
		select {
		case <-ctx.Done():
			return &Sc2WebsocketError{Cause: ctx.Err()}
		case <-time.After(sc2ConnectBackoff):
		}
	}
	if lastErr != nil {
		return &Sc2WebsocketError{Cause: fmt.Errorf("dialing sc2 at %s: %w", url, lastErr)}
	}

	for {
		if ep := s.state.Endpoint(s.botAddr); ep != nil {
			s.playerNum = *ep.PlayerNum
			player, passPort := s.config.PlayerConfig(s.playerNum)
			s.botName = player.Name
			s.passPort = passPort
			return nil
		}
		select {
		case <-ctx.Done():
			return &Sc2WebsocketError{Cause: ctx.Err()}
		case <-time.After(3 * time.Second):
		}
	}
}

func (s *Session) createGame(ctx context.Context) error {
	if err := s.pingUntilAnswered(ctx); err != nil {
		return &Sc2TimeoutError{}
	}

	p1, _ := s.config.PlayerConfig(sc2types.PlayerOne)
	p2, _ := s.config.PlayerConfig(sc2types.PlayerTwo)
	req := &sc2proto.Request{
		Id: 1,
		CreateGame: &sc2proto.RequestCreateGame{
			MapPath:  s.config.Map,
			Realtime: s.config.RealTime,
			PlayerSetup: []*sc2proto.PlayerSetup{
				{Type: sc2proto.PlayerTypeParticipant, Race: toProtoRace(p1.Race)},
				{Type: sc2proto.PlayerTypeParticipant, Race: toProtoRace(p2.Race)},
			},
		},
	}
	resp, err := s.sendRecvSC2(ctx, req, sc2MessageTimeout)
	if err != nil {
		return err
	}
	if resp.CreateGame == nil {
		return &Sc2UnexpectedMessageError{Detail: "expected create_game response"}
	}
	if resp.CreateGame.Error != 0 {
		return &CreateGameError{Detail: resp.CreateGame.ErrorDetails}
	}

	pc, err := s.portAllocator.NewPortConfig()
	if err != nil {
		return &CreateGameError{Detail: err.Error()}
	}
	s.state.SetReady(pc)
	return nil
}

func (s *Session) pingUntilAnswered(ctx context.Context) error {
	for attempt := 0; attempt < sc2PingRetries; attempt++ {
		_, err := s.sendRecvSC2(ctx, &sc2proto.Request{Id: 0, Ping: &sc2proto.RequestPing{}}, sc2MessageTimeout)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sc2PingBackoff):
		}
	}
	return fmt.Errorf("sc2 never answered a ping")
}

func (s *Session) awaitReady(ctx context.Context) error {
	for i := 0; i < readyPollMax; i++ {
		if s.state.IsReady() {
			return nil
		}
		select {
		case <-ctx.Done():
			return &JoinGameTimeoutError{}
		case <-time.After(readyPollInterval):
		}
	}
	return &JoinGameTimeoutError{}
}

func (s *Session) awaitJoin(ctx context.Context) error {
	for {
		req, err := s.recvBot(ctx, time.Duration(s.config.TimeoutSecs)*time.Second)
		if err != nil {
			return err
		}
		switch {
		case req.Quit != nil, req.LeaveGame != nil:
			return &BotQuitError{}
		case req.Ping != nil:
			resp, err := s.sendRecvSC2(ctx, req, sc2MessageTimeout)
			if err != nil {
				return err
			}
			if err := s.sendBot(resp); err != nil {
				return err
			}
		case req.JoinGame != nil:
			rewritten, err := s.rewriteJoinGame(req)
			if err != nil {
				return err
			}
			resp, err := s.sendRecvSC2(ctx, rewritten, sc2MessageTimeout)
			if err != nil {
				return err
			}
			if err := s.sendBot(resp); err != nil {
				return err
			}
			if resp.JoinGame != nil {
				s.playerID = resp.JoinGame.PlayerID
			}
			return s.awaitSC2Status(ctx)
		default:
			return &UnexpectedRequestError{Detail: fmt.Sprintf("request id=%d", req.Id)}
		}
	}
}

func (s *Session) rewriteJoinGame(req *sc2proto.Request) (*sc2proto.Request, error) {
	jg := req.JoinGame
	if len(jg.ClientPorts) == 0 {
		return nil, &UnexpectedRequestError{Detail: "join_game missing client_ports"}
	}
	if jg.ClientPorts[0].BasePort/10 != s.passPort/10 {
		return nil, &UnexpectedRequestError{Detail: "join_game pass-port mismatch"}
	}

	player, _ := s.config.PlayerConfig(s.playerNum)
	if s.config.ValidateRace {
		jg.Race = toProtoRace(player.Race)
	}
	jg.PlayerName = player.Name
	if jg.Options == nil {
		jg.Options = &sc2proto.InterfaceOptions{}
	}
	jg.Options.RawAffectsSelection = true
	jg.Options.RawCropToPlayableArea = false

	pc := s.state.CurrentPortConfig()
	jg.SharedPort = pc.SharedPort
	jg.ServerPorts = &sc2proto.PortSet{GamePort: pc.ServerGame, BasePort: pc.ServerBase}
	jg.ClientPorts = []*sc2proto.PortSet{{GamePort: pc.ClientGame, BasePort: pc.ClientBase}}

	return req, nil
}

func (s *Session) awaitSC2Status(ctx context.Context) error {
	for attempt := 0; attempt < sc2PingRetries; attempt++ {
		resp, err := s.sendRecvSC2(ctx, &sc2proto.Request{Id: 0, Ping: &sc2proto.RequestPing{}}, sc2MessageTimeout)
		if err == nil && (resp.Status == sc2proto.StatusInitGame || resp.Status == sc2proto.StatusInGame) {
			return nil
		}
		select {
		case <-ctx.Done():
			return &JoinGameTimeoutError{}
		case <-time.After(sc2PingBackoff):
		}
	}
	return &JoinGameTimeoutError{}
}

func (s *Session) pump(ctx context.Context) error {
	for {
		req, err := s.recvBot(ctx, time.Duration(s.config.TimeoutSecs)*time.Second)
		if err != nil {
			if isTimeout(err) {
				s.recordFinalResult(sc2types.SC2Timeout)
				s.saveReplayBestEffort(ctx)
				s.sendLeaveGameBestEffort(ctx)
				return &BotTimeoutError{}
			}
			return err
		}

		stepStart := time.Now()

		if s.config.DisableDebug && req.Debug != nil {
			resp := &sc2proto.Response{Id: req.Id, Status: sc2proto.StatusInGame, Debug: &sc2proto.ResponseDebug{}}
			if err := s.sendBot(resp); err != nil {
				return err
			}
			continue
		}

		if req.LeaveGame != nil || req.Quit != nil {
			s.surrendered = true
		}

		if req.Observation != nil {
			req.Observation.DisableFog = false
		}

		if req.Action != nil {
			for _, a := range req.Action.Actions {
				s.scanChatTags(a)
			}
		}

		resp, err := s.sendRecvSC2(ctx, req, sc2MessageTimeout)
		if err != nil {
			return err
		}

		if resp.GameInfo != nil {
			s.rewriteGameInfo(resp.GameInfo)
		}

		if err := s.sendBot(resp); err != nil {
			return err
		}
		s.frameTimeSum += time.Since(stepStart).Seconds()

		if resp.LeaveGame != nil || resp.Quit != nil {
			s.saveReplayBestEffort(ctx)
			s.recordFinalResult(sc2types.SC2Defeat)
			return nil
		}

		if resp.Observation != nil {
			if resp.Observation.Observation != nil {
				s.gameLoops = resp.Observation.Observation.GameLoop
			}
			if len(resp.Observation.PlayerResult) > 0 {
				result, err := s.translateOwnResult(resp.Observation.PlayerResult)
				if err != nil {
					return err
				}
				s.saveReplayBestEffort(ctx)
				s.recordFinalResult(result)
				return nil
			}
		}

		if s.gameLoops > s.config.MaxGameTime {
			s.saveReplayBestEffort(ctx)
			s.sendLeaveGameBestEffort(ctx)
			s.recordFinalResult(sc2types.SC2Tie)
			return nil
		}
	}
}

func (s *Session) translateOwnResult(results []*sc2proto.PlayerResult) (sc2types.SC2Result, error) {
	for _, r := range results {
		if r.PlayerID != s.playerID {
			continue
		}
		switch r.Result {
		case sc2proto.ResultVictory:
			return sc2types.SC2Victory, nil
		case sc2proto.ResultDefeat:
			return sc2types.SC2Defeat, nil
		case sc2proto.ResultTie:
			return sc2types.SC2Tie, nil
		default:
			return "", &Sc2UnexpectedMessageError{Detail: "sc2 reported an undecided player_result"}
		}
	}
	return "", &Sc2UnexpectedMessageError{Detail: "player_result missing our player_id"}
}

func (s *Session) scanChatTags(action *sc2proto.Action) {
	if action.Chat == nil {
		return
	}
	const prefix = "Tag:"
	if strings.HasPrefix(action.Chat.Message, prefix) {
		s.tags.Add(strings.TrimPrefix(action.Chat.Message, prefix))
	}
}

func (s *Session) rewriteGameInfo(gi *sc2proto.ResponseGameInfo) {
	p1, _ := s.config.PlayerConfig(sc2types.PlayerOne)
	p2, _ := s.config.PlayerConfig(sc2types.PlayerTwo)
	for _, pi := range gi.PlayerInfo {
		if pi.PlayerID == s.playerID {
			pi.PlayerName = s.botName
			continue
		}
		pi.RaceActual = pi.RaceRequested
		if s.playerNum == sc2types.PlayerOne {
			pi.PlayerName = p2.Name
		} else {
			pi.PlayerName = p1.Name
		}
	}
}

func (s *Session) recordFinalResult(result sc2types.SC2Result) {
	pr := sc2types.NewPlayerResult()
	pr.PlayerID = s.playerID
	pr.GameLoops = s.gameLoops
	pr.FrameTime = AvgFrameTime(s.frameTimeSum, s.gameLoops)
	pr.Tags = s.tags
	pr.Result = result
	s.state.GameResult.SetPlayerResult(s.playerNum, pr)
}

func (s *Session) saveReplayBestEffort(ctx context.Context) {
	resp, err := s.sendRecvSC2(ctx, &sc2proto.Request{Id: 0, SaveReplay: &sc2proto.RequestSaveReplay{}}, sc2MessageTimeout)
	if err != nil || resp.SaveReplay == nil {
		s.logger.Warnw("failed to save replay", "error", err)
		return
	}
	path := filepath.Join(s.config.ReplayPath, s.config.ReplayName)
	if err := s.fio.CreatePath(filepath.Dir(path)); err != nil {
		s.logger.Warnw("failed to create replay directory", "error", err)
		return
	}
	f, err := s.fio.OpenWriteOrCreate(path)
	if err != nil {
		s.logger.Warnw("failed to open replay file", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(resp.SaveReplay.Data); err != nil {
		s.logger.Warnw("failed to write replay", "error", err)
	}
}

func (s *Session) sendLeaveGameBestEffort(ctx context.Context) {
	_, _ = s.sendRecvSC2(ctx, &sc2proto.Request{Id: 0, LeaveGame: &sc2proto.RequestLeaveGame{}}, sc2MessageTimeout)
}

func (s *Session) recvBot(ctx context.Context, timeout time.Duration) (*sc2proto.Request, error) {
	if err := s.botConn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, &BotWebsocketError{Cause: err}
	}
	data, err := s.botConn.Recv()
	if err != nil {
		if isNetTimeout(err) {
			return nil, &BotTimeoutError{}
		}
		return nil, &BotWebsocketError{Cause: err}
	}
	req, err := sc2proto.UnmarshalRequest(data)
	if err != nil {
		return nil, &ProtoParseError{Cause: err}
	}
	return req, nil
}

func (s *Session) sendBot(resp *sc2proto.Response) error {
	if err := s.botConn.SendResponse(resp); err != nil {
		return &BotWebsocketError{Cause: err}
	}
	return nil
}

func (s *Session) sendRecvSC2(ctx context.Context, req *sc2proto.Request, timeout time.Duration) (*sc2proto.Response, error) {
	if err := s.sc2Conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, &Sc2WebsocketError{Cause: err}
	}
	if err := s.sc2Conn.SendRequest(req); err != nil {
		return nil, &Sc2WebsocketError{Cause: err}
	}
	data, err := s.sc2Conn.Recv()
	if err != nil {
		if isNetTimeout(err) {
			return nil, &Sc2TimeoutError{}
		}
		return nil, &Sc2WebsocketError{Cause: err}
	}
	resp, err := sc2proto.UnmarshalResponse(data)
	if err != nil {
		return nil, &ProtoParseError{Cause: err}
	}
	return resp, nil
}

func isNetTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func isTimeout(err error) bool {
	_, ok := err.(*BotTimeoutError)
	return ok
}

func toProtoRace(r sc2types.Race) sc2proto.Race {
	switch r {
	case sc2types.RaceTerran:
		return sc2proto.RaceTerran
	case sc2types.RaceZerg:
		return sc2proto.RaceZerg
	case sc2types.RaceProtoss:
		return sc2proto.RaceProtoss
	case sc2types.RaceRandom:
		return sc2proto.RaceRandom
	default:
		return sc2proto.RaceNoRace
	}
}
