// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package httpapi_test

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/botsupervisor"
	"github.com/aiarena/sc2-match-controller/pkg/config"
	"github.com/aiarena/sc2-match-controller/pkg/httpapi"
	"github.com/aiarena/sc2-match-controller/pkg/logging"
	"github.com/aiarena/sc2-match-controller/pkg/procexec"
)

var _ = Describe("Server", func() {
	const addr = "127.0.0.1:18842"

	var (
		cfg    *config.TypedConfig
		botSup *botsupervisor.Supervisor
		api    *httpapi.Server
	)

	BeforeEach(func() {
		logger, err := logging.NewDevelopmentLogger()
		Expect(err).NotTo(HaveOccurred())
		botSup = botsupervisor.New(procexec.NewCommander(), logger)
		cfg = &config.TypedConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ProxyHost:       "127.0.0.1",
			UpstreamToken:   "super-secret-token",
			MatchSourceMode: "file",
			Environment:     "development",
		}
		api = httpapi.NewServer(addr, cfg, botSup, logger)
		api.Start()
		time.Sleep(50 * time.Millisecond)
	})

	AfterEach(func() {
		Expect(api.Shutdown(context.Background())).NotTo(HaveOccurred())
	})

	It("answers health checks", func() {
		resp, err := http.Get("http://" + addr + "/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("redacts the upstream token from the configuration endpoint", func() {
		resp, err := http.Get("http://" + addr + "/configuration")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body, err := ioutil.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).NotTo(ContainSubstring("super-secret-token"))

		var decoded map[string]interface{}
		Expect(json.Unmarshal(body, &decoded)).To(Succeed())
		Expect(decoded["match_source_mode"]).To(Equal("file"))
	})

	It("404s stats for an unknown process key", func() {
		resp, err := http.Get("http://" + addr + "/stats/99999")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("reports host stats", func() {
		resp, err := http.Get("http://" + addr + "/stats/host")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("accepts terminate_all with no tracked children", func() {
		resp, err := http.Post("http://"+addr+"/terminate_all", "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})
