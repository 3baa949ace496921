// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package artifact_test

import (
	"archive/zip"
	"io/ioutil"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/artifact"
)

var _ = Describe("Build", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = ioutil.TempDir("", "artifact")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("writes present entries and silently skips missing ones", func() {
		replayPath := filepath.Join(dir, "match.SC2Replay")
		Expect(ioutil.WriteFile(replayPath, []byte("replaydata"), 0o644)).To(Succeed())

		destPath := filepath.Join(dir, "out", "bundle.zip")
		err := artifact.Build(destPath, []artifact.Entry{
			{ArchiveName: "replay/match.SC2Replay", SourcePath: replayPath},
			{ArchiveName: "logs/bot1.log", SourcePath: filepath.Join(dir, "does-not-exist.log")},
		})
		Expect(err).NotTo(HaveOccurred())

		zr, err := zip.OpenReader(destPath)
		Expect(err).NotTo(HaveOccurred())
		defer zr.Close()

		Expect(zr.File).To(HaveLen(1))
		Expect(zr.File[0].Name).To(Equal("replay/match.SC2Replay"))

		rc, err := zr.File[0].Open()
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()
		data, err := ioutil.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("replaydata"))
	})

	It("recursively adds every file under a directory with a prefix", func() {
		dataDir := filepath.Join(dir, "botdata")
		Expect(os.MkdirAll(filepath.Join(dataDir, "nested"), 0o755)).To(Succeed())
		Expect(ioutil.WriteFile(filepath.Join(dataDir, "a.txt"), []byte("a"), 0o644)).To(Succeed())
		Expect(ioutil.WriteFile(filepath.Join(dataDir, "nested", "b.txt"), []byte("b"), 0o644)).To(Succeed())

		destPath := filepath.Join(dir, "bundle.zip")
		out, err := os.Create(destPath)
		Expect(err).NotTo(HaveOccurred())
		zw := zip.NewWriter(out)
		Expect(artifact.BuildDir(zw, dataDir, "bot1_data")).To(Succeed())
		Expect(zw.Close()).To(Succeed())
		Expect(out.Close()).To(Succeed())

		zr, err := zip.OpenReader(destPath)
		Expect(err).NotTo(HaveOccurred())
		defer zr.Close()
		names := []string{}
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		Expect(names).To(ConsistOf("bot1_data/a.txt", filepath.Join("bot1_data", "nested", "b.txt")))
	})
})
