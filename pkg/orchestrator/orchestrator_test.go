// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package orchestrator_test

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/botsupervisor"
	"github.com/aiarena/sc2-match-controller/pkg/codec"
	"github.com/aiarena/sc2-match-controller/pkg/config"
	"github.com/aiarena/sc2-match-controller/pkg/logging"
	"github.com/aiarena/sc2-match-controller/pkg/matchsource"
	"github.com/aiarena/sc2-match-controller/pkg/orchestrator"
	"github.com/aiarena/sc2-match-controller/pkg/ports"
	"github.com/aiarena/sc2-match-controller/pkg/procexec"
	"github.com/aiarena/sc2-match-controller/pkg/resultstore"
	"github.com/aiarena/sc2-match-controller/pkg/sc2supervisor"
)

var neverCalledGateway orchestrator.BotGateway = func(ctx context.Context, port int32, onAccept func(conn *codec.Conn, remoteAddr string)) (io.Closer, error) {
	Fail("gateway should not be opened when no match was pulled")
	return nil, nil
}

var _ = Describe("Orchestrator", func() {
	var (
		tmpDir    string
		allocator *ports.Allocator
		sc2Sup    *sc2supervisor.Supervisor
		botSup    *botsupervisor.Supervisor
		store     *resultstore.Store
		orch      *orchestrator.Orchestrator
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = ioutil.TempDir("", "orchestrator")
		Expect(err).NotTo(HaveOccurred())

		logger, err := logging.NewDevelopmentLogger()
		Expect(err).NotTo(HaveOccurred())

		allocator, err = ports.NewAllocator(23500, 23600)
		Expect(err).NotTo(HaveOccurred())

		sc2Sup = sc2supervisor.New(procexec.NewCommander(), allocator, "127.0.0.1", logger)
		botSup = botsupervisor.New(procexec.NewCommander(), logger)
		store = resultstore.New(filepath.Join(tmpDir, "results.jsonl"))

		cfg := &config.TypedConfig{RoundsPerRun: 0}
		source := matchsource.NewMockSource()

		orch = orchestrator.New(cfg, source, sc2Sup, botSup, allocator, store, nil, neverCalledGateway, logger)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("exits immediately and announces shutdown when rounds_per_run is zero", func() {
		shutdownSeen := make(chan struct{}, 1)
		Expect(orch.Bus().Subscribe(orchestrator.TopicShutdown, func(e interface{}) {
			shutdownSeen <- struct{}{}
		})).To(Succeed())

		err := orch.RunForever(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Eventually(shutdownSeen, time.Second).Should(Receive())
	})
})
