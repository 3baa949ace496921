// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package matchsource_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/matchsource"
	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

var _ = Describe("FileSource", func() {
	var (
		dir         string
		matchesPath string
		resultsPath string
	)

	BeforeEach(func() {
		var err error
		dir, err = ioutil.TempDir("", "filesource")
		Expect(err).NotTo(HaveOccurred())
		matchesPath = filepath.Join(dir, "matches.csv")
		resultsPath = filepath.Join(dir, "results.json")
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("parses a valid 9-field line and assigns the next synthetic match id", func() {
		Expect(ioutil.WriteFile(matchesPath,
			[]byte("bot-id-1,basic_bot,T,python,bot-id-2,loser_bot,P,python,AutomatonLE\n"), 0o644)).To(Succeed())

		src := matchsource.NewFileSource(matchesPath, resultsPath)
		Expect(src.HasNext(context.Background())).To(BeTrue())

		m, err := src.NextMatch(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Player1.ID).To(Equal("bot-id-1"))
		Expect(m.Player1.Name).To(Equal("basic_bot"))
		Expect(m.Player1.Race).To(Equal(sc2types.RaceTerran))
		Expect(m.Player2.Name).To(Equal("loser_bot"))
		Expect(m.Player2.Race).To(Equal(sc2types.RaceProtoss))
		Expect(m.MapName).To(Equal("AutomatonLE"))
		Expect(m.MatchID).To(Equal(uint32(1)))
	})

	It("rejects lines with missing or extra fields", func() {
		src := matchsource.NewFileSource(matchesPath, resultsPath)

		Expect(ioutil.WriteFile(matchesPath, []byte("basic_bot,T,python,bot-id-2,loser_bot,P,python,AutomatonLE\n"), 0o644)).To(Succeed())
		_, err := src.NextMatch(context.Background())
		Expect(err).To(HaveOccurred())
		var extractErr *matchsource.ExtractError
		Expect(err).To(BeAssignableToTypeOf(extractErr))

		Expect(ioutil.WriteFile(matchesPath,
			[]byte("extra,bot-id-1,basic_bot,T,python,bot-id-2,loser_bot,P,python,AutomatonLE\n"), 0o644)).To(Succeed())
		_, err = src.NextMatch(context.Background())
		Expect(err).To(HaveOccurred())
	})

	It("ignores blank and #-prefixed lines", func() {
		Expect(ioutil.WriteFile(matchesPath, []byte(
			"\n#bot-id-1,basic_bot,T,python,bot-id-2,loser_bot,P,python,AutomatonLE\n"+
				"bot-id-3,third_bot,Z,python,bot-id-4,fourth_bot,R,python,EphemeronLE\n"), 0o644)).To(Succeed())

		src := matchsource.NewFileSource(matchesPath, resultsPath)
		m, err := src.NextMatch(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Player1.Name).To(Equal("third_bot"))
	})

	It("comments out the consumed line and appends to the results file on submit", func() {
		Expect(ioutil.WriteFile(matchesPath,
			[]byte("bot-id-1,basic_bot,T,python,bot-id-2,loser_bot,P,python,AutomatonLE\n"), 0o644)).To(Succeed())

		src := matchsource.NewFileSource(matchesPath, resultsPath)
		_, err := src.NextMatch(context.Background())
		Expect(err).NotTo(HaveOccurred())

		err = src.SubmitResult(context.Background(), result.AiArenaGameResult{
			MatchID: 1,
			Result:  sc2types.ResultPlayer1Win,
		}, matchsource.Artifacts{})
		Expect(err).NotTo(HaveOccurred())

		Expect(src.HasNext(context.Background())).To(BeFalse())

		data, err := ioutil.ReadFile(matchesPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("#bot-id-1,basic_bot"))
	})
})
