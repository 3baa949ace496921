// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package matchsource_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/matchsource"
	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

var _ = Describe("MockSource", func() {
	It("drains its queue in order and records submissions", func() {
		m1 := &sc2types.Match{MatchID: 1}
		m2 := &sc2types.Match{MatchID: 2}
		src := matchsource.NewMockSource(m1, m2)

		Expect(src.HasNext(context.Background())).To(BeTrue())
		got, err := src.NextMatch(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(got.MatchID).To(Equal(uint32(1)))

		got, err = src.NextMatch(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(got.MatchID).To(Equal(uint32(2)))

		Expect(src.HasNext(context.Background())).To(BeFalse())
		got, err = src.NextMatch(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())

		Expect(src.SubmitResult(context.Background(), result.AiArenaGameResult{MatchID: 1}, matchsource.Artifacts{})).To(Succeed())
		Expect(src.Results).To(HaveLen(1))
	})
})
