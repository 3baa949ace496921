// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package resultstore_test

import (
	"io/ioutil"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/resultstore"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

var _ = Describe("Store", func() {
	var path string

	BeforeEach(func() {
		dir, err := ioutil.TempDir("", "resultstore")
		Expect(err).NotTo(HaveOccurred())
		path = filepath.Join(dir, "nested", "match_result.json")
	})

	AfterEach(func() {
		os.RemoveAll(filepath.Dir(filepath.Dir(path)))
	})

	It("creates parent directories and writes the first result", func() {
		s := resultstore.New(path)
		Expect(s.Write(result.AiArenaGameResult{MatchID: 1, Result: sc2types.ResultPlayer1Win})).To(Succeed())

		got, err := s.Read()
		Expect(err).NotTo(HaveOccurred())
		Expect(got.MatchID).To(Equal(uint32(1)))
		Expect(got.Result).To(Equal(sc2types.ResultPlayer1Win))
	})

	It("ignores a second write once a result is already stored", func() {
		s := resultstore.New(path)
		Expect(s.Write(result.AiArenaGameResult{MatchID: 1, Result: sc2types.ResultPlayer1Win})).To(Succeed())
		Expect(s.Write(result.AiArenaGameResult{MatchID: 2, Result: sc2types.ResultPlayer2Win})).To(Succeed())

		got, err := s.Read()
		Expect(err).NotTo(HaveOccurred())
		Expect(got.MatchID).To(Equal(uint32(1)))
	})

	It("reports no result and no error when nothing has been written", func() {
		s := resultstore.New(path)
		got, err := s.Read()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())
	})

	It("is idempotent to delete twice", func() {
		s := resultstore.New(path)
		Expect(s.Write(result.AiArenaGameResult{MatchID: 1})).To(Succeed())
		Expect(s.Delete()).To(Succeed())
		Expect(s.Delete()).To(Succeed())
		got, err := s.Read()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())
	})
})
