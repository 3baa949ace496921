// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator drives the match lifecycle across two Proxy
// Sessions (spec §4.6): pulling matches from a Match Source, starting
// the two SC2 engines and bot processes, wiring the shared ProxyState,
// waiting out the game, reducing and submitting the result, and
// tearing everything down before pulling the next match. Match-level
// events are published on an in-memory bus the way the teacher's
// discovery.Game publishes FSM transitions, so a future listener (the
// HTTP stats surface, or a log sink) can observe the loop without
// being wired directly into it.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	mb "github.com/vardius/message-bus"
	"go.uber.org/zap"

	"github.com/aiarena/sc2-match-controller/pkg/artifact"
	"github.com/aiarena/sc2-match-controller/pkg/botsupervisor"
	"github.com/aiarena/sc2-match-controller/pkg/cache"
	"github.com/aiarena/sc2-match-controller/pkg/codec"
	"github.com/aiarena/sc2-match-controller/pkg/config"
	"github.com/aiarena/sc2-match-controller/pkg/fsio"
	"github.com/aiarena/sc2-match-controller/pkg/matchsource"
	"github.com/aiarena/sc2-match-controller/pkg/ports"
	"github.com/aiarena/sc2-match-controller/pkg/proxysession"
	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/resultstore"
	"github.com/aiarena/sc2-match-controller/pkg/sc2supervisor"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

// Topics published on the Orchestrator's message bus.
const (
	TopicMatchStarted  = "match.started"
	TopicMatchFinished = "match.finished"
	TopicShutdown      = "controller.shutdown"
)

const (
	pullRetryDelay     = 30 * time.Second
	resultPollInterval = 3 * time.Second
	associateRetries   = 60
	associateInterval  = 500 * time.Millisecond
	defaultBusSize     = 10000
)

// MatchStartedEvent is published once a match's children are up and its
// ProxyState is armed.
type MatchStartedEvent struct {
	MatchID       uint32
	CorrelationID string
}

// MatchFinishedEvent is published once a match's result has been
// submitted and its children torn down.
type MatchFinishedEvent struct {
	MatchID       uint32
	CorrelationID string
	Result        sc2types.AiArenaResult
	Err           error
}

// BotGateway accepts the bot-facing WebSocket connection for one seat
// and hands it to onAccept; implemented by httpapi.ServeBotGateway.
// Declared here as a function type so orchestrator does not import
// httpapi, avoiding an import cycle with httpapi's REST surface.
type BotGateway func(ctx context.Context, port int32, onAccept func(conn *codec.Conn, remoteAddr string)) (io.Closer, error)

// Orchestrator owns the single shared ProxyState and drives the match
// loop against it; a controller process runs exactly one Orchestrator.
type Orchestrator struct {
	cfg       *config.TypedConfig
	source    matchsource.Source
	sc2Sup    *sc2supervisor.Supervisor
	botSup    *botsupervisor.Supervisor
	allocator *ports.Allocator
	store     *resultstore.Store
	cacheCli  *cache.Client
	fio       fsio.FileIO
	logger    *zap.SugaredLogger
	bus       mb.MessageBus
	gateway   BotGateway

	state *sc2types.ProxyState
}

// New returns an Orchestrator. cacheCli may be nil when no cache
// service is configured. The Orchestrator keeps cacheCli but does not
// call it: artifacts are packaged to disk and handed to the match
// source, never uploaded to the cache.
func New(
	cfg *config.TypedConfig,
	source matchsource.Source,
	sc2Sup *sc2supervisor.Supervisor,
	botSup *botsupervisor.Supervisor,
	allocator *ports.Allocator,
	store *resultstore.Store,
	cacheCli *cache.Client,
	gateway BotGateway,
	logger *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		source:    source,
		sc2Sup:    sc2Sup,
		botSup:    botSup,
		allocator: allocator,
		store:     store,
		cacheCli:  cacheCli,
		gateway:   gateway,
		fio:       fsio.Fio,
		logger:    logger,
		bus:       mb.New(defaultBusSize),
		state:     sc2types.NewProxyState(),
	}
}

// Bus returns the Orchestrator's event bus, for components (the HTTP
// stats surface, a log sink) that want to observe match lifecycle
// events without being wired directly into the loop.
func (o *Orchestrator) Bus() mb.MessageBus { return o.bus }

// RunForever drives the match loop until rounds_per_run matches have
// completed (or forever, if rounds_per_run is -1) or ctx is canceled.
// On exit it issues shutdown to both child supervisors (spec §4.6 step
// 11).
func (o *Orchestrator) RunForever(ctx context.Context) error {
	round := 0
	for o.cfg.RoundsPerRun < 0 || round < o.cfg.RoundsPerRun {
		if ctx.Err() != nil {
			break
		}
		if !o.source.HasNext(ctx) {
			if !o.sleep(ctx, pullRetryDelay) {
				break
			}
			continue
		}
		match, err := o.source.NextMatch(ctx)
		if err != nil {
			o.logger.Warnw("pulling next match", "error", err)
			if !o.sleep(ctx, pullRetryDelay) {
				break
			}
			continue
		}
		if match == nil {
			if !o.sleep(ctx, pullRetryDelay) {
				break
			}
			continue
		}

		if err := o.runMatch(ctx, match); err != nil {
			o.logger.Errorw("running match", "match_id", match.MatchID, "error", err)
		}
		round++
	}

	o.sc2Sup.TerminateAll()
	o.botSup.TerminateAll("kill")
	o.bus.Publish(TopicShutdown, struct{}{})
	return ctx.Err()
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// runMatch executes spec §4.6 steps 2-9 for a single match.
func (o *Orchestrator) runMatch(ctx context.Context, match *sc2types.Match) error {
	correlationID := uuid.New().String()
	logger := o.logger.With("match_id", match.MatchID, "correlation_id", correlationID)

	mapPath, err := findMapPath(o.cfg.MapsDir, match.MapName)
	if err != nil {
		return fmt.Errorf("locating map %q: %w", match.MapName, err)
	}

	o.state.Begin(match, mapPath)
	defer o.state.Clear()

	gameConfig := sc2types.NewGameConfig(
		match, mapPath,
		uint32(o.cfg.TimeoutSecs.Seconds()), o.cfg.MaxGameTime,
		o.cfg.DisableDebug, o.cfg.RealTime, o.cfg.ValidateRace,
		o.cfg.ReplaysDir,
	)

	// Both children groups are torn down in parallel (spec §4.6 step 9): SC2
	// killed, bots terminated gracefully. teardownWg is waited on last so the
	// two kickoffs below run concurrently instead of serializing via defer
	// LIFO ordering.
	var teardownWg sync.WaitGroup
	defer teardownWg.Wait()

	sc2Handles, err := o.startEngines(ctx, match)
	if err != nil {
		return fmt.Errorf("starting sc2 engines: %w", err)
	}
	defer func() {
		teardownWg.Add(1)
		go func() {
			defer teardownWg.Done()
			o.sc2Sup.TerminateAll()
		}()
	}()

	urls := make([]string, len(sc2Handles))
	for i, h := range sc2Handles {
		urls[i] = "ws://" + h.ExternalAddr + "/sc2api"
	}
	o.state.SetSC2URLs(urls)

	botHandles, botPorts, err := o.startBots(ctx, match)
	if err != nil {
		return fmt.Errorf("starting bots: %w", err)
	}
	defer func() {
		teardownWg.Add(1)
		go func() {
			defer teardownWg.Done()
			var botWg sync.WaitGroup
			for _, h := range botHandles {
				if h == nil {
					continue
				}
				botWg.Add(1)
				go func(h *botsupervisor.Handle) {
					defer botWg.Done()
					_ = o.botSup.Terminate(h.ProcessKey, false)
				}(h)
			}
			botWg.Wait()
		}()
	}()

	gameConfig.PassPorts = [2]int32{botPorts[0], botPorts[1]}

	gateways, err := o.openBotGateways(ctx, match, gameConfig, botPorts)
	if err != nil {
		return fmt.Errorf("opening bot gateways: %w", err)
	}
	defer func() {
		for _, g := range gateways {
			_ = g.Close()
		}
	}()

	o.bus.Publish(TopicMatchStarted, MatchStartedEvent{MatchID: match.MatchID, CorrelationID: correlationID})

	gr := o.state.GameResult
	for !gr.IsReady() {
		if !o.sleep(ctx, resultPollInterval) {
			return ctx.Err()
		}
	}

	verdict := result.Reduce(gr)
	logger.Infow("match finished", "result", verdict.Result)
	o.bus.Publish(TopicMatchFinished, MatchFinishedEvent{MatchID: match.MatchID, CorrelationID: correlationID, Result: verdict.Result})

	submitted := verdict.ToAiArenaGameResult(match.MatchID)
	if err := o.store.Write(submitted); err != nil {
		logger.Warnw("writing on-disk result", "error", err)
	}

	arts := o.packageArtifacts(match, gameConfig)
	if err := o.source.SubmitResult(ctx, submitted, arts); err != nil {
		logger.Errorw("submitting result", "error", err)
		return err
	}
	return nil
}

// startEngines launches both SC2 engines in parallel (spec §4.6 step 3).
func (o *Orchestrator) startEngines(ctx context.Context, match *sc2types.Match) ([]*sc2supervisor.Handle, error) {
	handles := make([]*sc2supervisor.Handle, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = o.sc2Sup.Start(ctx, sc2supervisor.StartRequest{
				BinaryPath: filepath.Join(o.cfg.SC2WorkingDir, "SC2_x64"),
				DataDir:    o.cfg.SC2WorkingDir,
				TempDir:    o.cfg.SC2WorkingDir,
				Seat:       strconv.Itoa(i + 1),
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			o.sc2Sup.TerminateAll()
			return nil, err
		}
	}
	return handles, nil
}

// startBots launches both bot processes in parallel (spec §4.6 step 6,
// first half) and returns their handles plus the gateway ports allocated
// for them, in seat order.
func (o *Orchestrator) startBots(ctx context.Context, match *sc2types.Match) ([]*botsupervisor.Handle, []int32, error) {
	handles := make([]*botsupervisor.Handle, 2)
	errs := make([]error, 2)
	botPorts, err := o.allocator.AllocateN(2)
	if err != nil {
		return nil, nil, fmt.Errorf("allocating bot gateway ports: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			player := match.Player(sc2types.PlayerNum(i + 1))
			opponent := match.Player(sc2types.PlayerNum(2 - i))
			handles[i], errs[i] = o.botSup.Start(ctx, botsupervisor.StartRequest{
				BotDir:     filepath.Join(o.cfg.BotsDir, player.Name),
				BotName:    player.Name,
				BotType:    player.BotType,
				PythonBin:  o.cfg.PythonBin,
				GamePort:   botPorts[i],
				LadderHost: o.cfg.ProxyHost,
				StartPort:  botPorts[i],
				OpponentID: opponent.ID,
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			for j := 0; j < i; j++ {
				if handles[j] != nil {
					_ = o.botSup.Terminate(handles[j].ProcessKey, true)
				}
			}
			return nil, nil, err
		}
	}
	return handles, botPorts, nil
}

// openBotGateways opens one bot-facing WebSocket listener per seat,
// each scoped to that seat's own port (allocated in startBots), so the
// seat a connection belongs to is known the instant it is accepted --
// no further correlation between a bot's outbound socket and its
// discovered listening port is needed (spec §4.6 step 6, second half).
// RegisterPlayer runs in the accept callback before the session is
// created, so the association is in place when Session.connect first
// looks it up; no association retry loop is run.
func (o *Orchestrator) openBotGateways(ctx context.Context, match *sc2types.Match, gameConfig *sc2types.GameConfig, botPorts []int32) ([]io.Closer, error) {
	gateways := make([]io.Closer, 0, 2)
	for i := 0; i < 2; i++ {
		seat := sc2types.PlayerNum(i + 1)
		player := match.Player(seat)
		var portAllocator *ports.Allocator
		if seat == sc2types.PlayerOne {
			portAllocator = o.allocator
		}
		closer, err := o.gateway(ctx, botPorts[i], func(conn *codec.Conn, remoteAddr string) {
			o.state.RegisterPlayer(remoteAddr, seat, player.Name)
			sess := proxysession.NewSession(remoteAddr, conn, o.state, gameConfig, o.fio, o.logger)
			if portAllocator != nil {
				sess = sess.WithPortAllocator(portAllocator)
			}
			if err := sess.Run(ctx); err != nil {
				o.logger.Debugw("proxy session ended", "seat", seat, "error", err)
			}
		})
		if err != nil {
			for _, g := range gateways {
				_ = g.Close()
			}
			return nil, err
		}
		gateways = append(gateways, closer)
	}
	return gateways, nil
}

func (o *Orchestrator) packageArtifacts(match *sc2types.Match, gameConfig *sc2types.GameConfig) matchsource.Artifacts {
	var arts matchsource.Artifacts
	replayPath := filepath.Join(o.cfg.ReplaysDir, gameConfig.ReplayName)
	arts.ReplayFile = replayPath

	bot1Zip := filepath.Join(o.cfg.BotsDir, "out", fmt.Sprintf("%d_bot1_data.zip", match.MatchID))
	if err := artifact.Build(bot1Zip, []artifact.Entry{{ArchiveName: "data", SourcePath: filepath.Join(o.cfg.BotsDir, match.Player1.Name, "data")}}); err == nil {
		arts.Bot1DataZip = bot1Zip
	}
	bot2Zip := filepath.Join(o.cfg.BotsDir, "out", fmt.Sprintf("%d_bot2_data.zip", match.MatchID))
	if err := artifact.Build(bot2Zip, []artifact.Entry{{ArchiveName: "data", SourcePath: filepath.Join(o.cfg.BotsDir, match.Player2.Name, "data")}}); err == nil {
		arts.Bot2DataZip = bot2Zip
	}
	arts.Bot1LogZip = filepath.Join(o.cfg.BotsDir, match.Player1.Name+"_stdout.log")
	arts.Bot2LogZip = filepath.Join(o.cfg.BotsDir, match.Player2.Name+"_stdout.log")
	return arts
}

// findMapPath resolves mapName against mapsDir, matching case
// insensitively and allowing an optional ".SC2Map" suffix, one level of
// recursion into subdirectories (spec §4.6 step 4). Directory listing
// has no place in fsio.FileIO (built for file-at-a-time replay/artifact
// I/O), so this walks the filesystem directly via os/filepath.
func findMapPath(mapsDir, mapName string) (string, error) {
	want := strings.ToLower(strings.TrimSuffix(mapName, ".SC2Map"))

	var found string
	err := filepath.Walk(mapsDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil || found != "" {
			return err
		}
		if info.IsDir() {
			if path != mapsDir && strings.Count(strings.TrimPrefix(path, mapsDir), string(filepath.Separator)) > 1 {
				return filepath.SkipDir
			}
			return nil
		}
		base := strings.ToLower(strings.TrimSuffix(info.Name(), ".SC2Map"))
		if base == want {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("map %q not found under %s", mapName, mapsDir)
	}
	return found, nil
}
