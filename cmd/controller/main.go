// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Command controller is the arenaclient entry point: it loads the JSON
// config the way cmd/ephemeral/main.go does, wires the Match
// Orchestrator and the HTTP API together, and runs until its match
// budget (rounds_per_run) is exhausted or it is asked to shut down.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aiarena/sc2-match-controller/pkg/botsupervisor"
	"github.com/aiarena/sc2-match-controller/pkg/cache"
	"github.com/aiarena/sc2-match-controller/pkg/config"
	"github.com/aiarena/sc2-match-controller/pkg/httpapi"
	"github.com/aiarena/sc2-match-controller/pkg/logging"
	"github.com/aiarena/sc2-match-controller/pkg/matchsource"
	"github.com/aiarena/sc2-match-controller/pkg/orchestrator"
	"github.com/aiarena/sc2-match-controller/pkg/ports"
	"github.com/aiarena/sc2-match-controller/pkg/procexec"
	"github.com/aiarena/sc2-match-controller/pkg/resultstore"
	"github.com/aiarena/sc2-match-controller/pkg/sc2supervisor"
)

const defaultConfigPath = "/etc/config/config.json"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "controller",
		Short: "Runs StarCraft II ladder matches between two bots and reports their results",
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the controller's JSON config file")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Pull and run matches from the configured match source until rounds_per_run is exhausted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runController(configPath, true)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API only, without driving the match loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runController(configPath, false)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runController(configPath string, driveMatchLoop bool) error {
	cfg, err := config.ParseConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	typedCfg, err := cfg.ToTypedConfig()
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	logger, err := logging.NewLogger(typedCfg.Environment)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	logger.Debugf("starting with the config:\n%+v", typedCfg)

	allocator, err := ports.NewAllocator(typedCfg.PortRangeStart, typedCfg.PortRangeEnd)
	if err != nil {
		return fmt.Errorf("building port allocator: %w", err)
	}

	sc2Sup := sc2supervisor.New(procexec.NewCommander(), allocator, typedCfg.ProxyHost, logger)
	botSup := botsupervisor.New(procexec.NewCommander(), logger)
	store := resultstore.New(resultstore.DefaultPath)

	source, err := buildMatchSource(typedCfg)
	if err != nil {
		return fmt.Errorf("building match source: %w", err)
	}

	var cacheCli *cache.Client
	if typedCfg.CacheBaseURL != "" {
		u, err := url.Parse(typedCfg.CacheBaseURL)
		if err != nil {
			return fmt.Errorf("parsing cache_base_url: %w", err)
		}
		cacheCli, err = cache.NewClient(*u)
		if err != nil {
			return fmt.Errorf("building cache client: %w", err)
		}
	}

	orch := orchestrator.New(typedCfg, source, sc2Sup, botSup, allocator, store, cacheCli, httpapi.ServeBotGateway, logger)

	apiAddr := fmt.Sprintf("%s:%d", typedCfg.Host, typedCfg.Port)
	api := httpapi.NewServer(apiAddr, typedCfg, botSup, logger)
	api.Start()
	logger.Infow("http api listening", "addr", apiAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !driveMatchLoop {
		<-ctx.Done()
		return api.Shutdown(context.Background())
	}

	err = orch.RunForever(ctx)
	shutdownErr := api.Shutdown(context.Background())
	if err != nil && err != context.Canceled {
		return err
	}
	return shutdownErr
}

func buildMatchSource(cfg *config.TypedConfig) (matchsource.Source, error) {
	switch cfg.MatchSourceMode {
	case "file":
		return matchsource.NewFileSource(cfg.MatchesFile, cfg.ResultsFile), nil
	default:
		return matchsource.NewHTTPSource(cfg.UpstreamBaseURL, cfg.UpstreamToken)
	}
}
