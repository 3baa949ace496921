// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package botsupervisor_test

import (
	"context"
	"io/ioutil"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/botsupervisor"
	"github.com/aiarena/sc2-match-controller/pkg/logging"
	"github.com/aiarena/sc2-match-controller/pkg/procexec"
)

var _ = Describe("Supervisor", func() {
	var (
		botDir string
		sup    *botsupervisor.Supervisor
	)

	BeforeEach(func() {
		var err error
		botDir, err = ioutil.TempDir("", "bot")
		Expect(err).NotTo(HaveOccurred())
		logger, err := logging.NewDevelopmentLogger()
		Expect(err).NotTo(HaveOccurred())
		sup = botsupervisor.New(procexec.NewCommander(), logger)
	})

	AfterEach(func() {
		os.RemoveAll(botDir)
	})

	It("rejects an unrecognized bot_type before spawning anything", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := sup.Start(ctx, botsupervisor.StartRequest{
			BotDir:  botDir,
			BotName: "mystery-bot",
			BotType: "Cobol",
		})
		Expect(err).To(HaveOccurred())
	})

	It("fails with StartError when the bot exits within the early-exit window", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := sup.Start(ctx, botsupervisor.StartRequest{
			BotDir:     botDir,
			BotName:    "quick-exit-bot",
			BotType:    "Python",
			PythonBin:  "false", // exits immediately with a non-zero status
			GamePort:   5000,
			LadderHost: "127.0.0.1",
			StartPort:  6000,
			OpponentID: "opponent-1",
		})
		Expect(err).To(HaveOccurred())
		var startErr *botsupervisor.StartError
		Expect(err).To(BeAssignableToTypeOf(startErr))
	})

	It("reports an empty snapshot when nothing is tracked", func() {
		Expect(sup.StatsAll()).To(BeEmpty())
		_, known := sup.Status(12345)
		Expect(known).To(BeFalse())
	})

	It("is a no-op to terminate-all with no tracked children", func() {
		sup.TerminateAll("graceful")
	})
})
