// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package config_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/config"
)

var _ = Describe("ParseConfig", func() {
	var path string

	BeforeEach(func() {
		dir, err := ioutil.TempDir("", "config")
		Expect(err).NotTo(HaveOccurred())
		path = filepath.Join(dir, "config.json")
		Expect(ioutil.WriteFile(path, []byte(`{
			"host": "0.0.0.0",
			"port": "8080",
			"timeout_secs": "45",
			"disable_debug": "true",
			"rounds_per_run": "-1"
		}`), 0644)).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(filepath.Dir(path))
	})

	It("parses the JSON file and converts to a typed config", func() {
		cfg, err := config.ParseConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Host).To(Equal("0.0.0.0"))

		tc, err := cfg.ToTypedConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(tc.Port).To(Equal(8080))
		Expect(tc.TimeoutSecs).To(Equal(45 * time.Second))
		Expect(tc.DisableDebug).To(BeTrue())
		Expect(tc.RoundsPerRun).To(Equal(-1))
	})

	It("falls back to defaults for fields left empty", func() {
		cfg, err := config.ParseConfig(path)
		Expect(err).NotTo(HaveOccurred())
		tc, err := cfg.ToTypedConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(tc.PortRangeStart).To(Equal(int32(9000)))
		Expect(tc.PortRangeEnd).To(Equal(int32(10000)))
	})
})
