// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package sc2supervisor_test

import (
	"context"
	"io/ioutil"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/logging"
	"github.com/aiarena/sc2-match-controller/pkg/ports"
	"github.com/aiarena/sc2-match-controller/pkg/procexec"
	"github.com/aiarena/sc2-match-controller/pkg/sc2supervisor"
)

var _ = Describe("Supervisor", func() {
	var (
		dataDir   string
		tempDir   string
		allocator *ports.Allocator
		sup       *sc2supervisor.Supervisor
	)

	BeforeEach(func() {
		var err error
		dataDir, err = ioutil.TempDir("", "sc2data")
		Expect(err).NotTo(HaveOccurred())
		tempDir, err = ioutil.TempDir("", "sc2temp")
		Expect(err).NotTo(HaveOccurred())
		allocator, err = ports.NewAllocator(21500, 21600)
		Expect(err).NotTo(HaveOccurred())
		logger, err := logging.NewDevelopmentLogger()
		Expect(err).NotTo(HaveOccurred())
		sup = sc2supervisor.New(procexec.NewCommander(), allocator, "127.0.0.1", logger)
	})

	AfterEach(func() {
		os.RemoveAll(dataDir)
		os.RemoveAll(tempDir)
	})

	It("releases the allocated port when the binary cannot be started", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := sup.Start(ctx, sc2supervisor.StartRequest{
			BinaryPath: "/no/such/sc2-engine-binary",
			DataDir:    dataDir,
			TempDir:    tempDir,
			Seat:       "1",
		})
		Expect(err).To(HaveOccurred())
		var startErr *sc2supervisor.StartError
		Expect(err).To(BeAssignableToTypeOf(startErr))

		// the failed start must not have leaked the allocated ports: a
		// leaked pair would push the next port to 21502
		port, err := allocator.Allocate()
		Expect(err).NotTo(HaveOccurred())
		Expect(port).To(BeNumerically(">=", 21500))
		Expect(port).To(BeNumerically("<=", 21501))
	})

	It("assigns the supervisor's host to the engine's external address", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		h, err := sup.Start(ctx, sc2supervisor.StartRequest{
			BinaryPath: "true",
			DataDir:    dataDir,
			TempDir:    tempDir,
			Seat:       "2",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(h.ExternalAddr).To(HavePrefix("127.0.0.1:"))
		Expect(h.InternalPort).To(BeNumerically(">=", 21500))

		sup.TerminateAll()
	})

	It("is a no-op to terminate-all with no tracked children", func() {
		sup.TerminateAll()
	})
})
