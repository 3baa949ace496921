// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package result_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

func withResult(r sc2types.SC2Result) *sc2types.PlayerResult {
	return &sc2types.PlayerResult{Result: r, Tags: sc2types.NewOrderedStringSet()}
}

var _ = Describe("Reduce", func() {
	var gr *sc2types.GameResult

	BeforeEach(func() {
		gr = sc2types.NewGameResult(42)
	})

	It("prefers the override result over any player results", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, withResult(sc2types.SC2Victory))
		gr.SetOverride(sc2types.ResultInitializationError)

		v := result.Reduce(gr)
		Expect(v.Result).To(Equal(sc2types.ResultInitializationError))
	})

	It("resolves player 1 victory", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, withResult(sc2types.SC2Victory))
		gr.SetPlayerResult(sc2types.PlayerTwo, withResult(sc2types.SC2Defeat))

		Expect(result.Reduce(gr).Result).To(Equal(sc2types.ResultPlayer1Win))
	})

	It("resolves player 2 victory", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, withResult(sc2types.SC2Defeat))
		gr.SetPlayerResult(sc2types.PlayerTwo, withResult(sc2types.SC2Victory))

		Expect(result.Reduce(gr).Result).To(Equal(sc2types.ResultPlayer2Win))
	})

	It("resolves a player 1 timeout", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, withResult(sc2types.SC2Timeout))
		gr.SetPlayerResult(sc2types.PlayerTwo, withResult(sc2types.SC2Victory))

		Expect(result.Reduce(gr).Result).To(Equal(sc2types.ResultPlayer1TimeOut))
	})

	It("resolves a player 2 timeout", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, withResult(sc2types.SC2Victory))
		gr.SetPlayerResult(sc2types.PlayerTwo, withResult(sc2types.SC2Timeout))

		Expect(result.Reduce(gr).Result).To(Equal(sc2types.ResultPlayer2TimeOut))
	})

	It("resolves a tie", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, withResult(sc2types.SC2Tie))
		gr.SetPlayerResult(sc2types.PlayerTwo, withResult(sc2types.SC2Tie))

		Expect(result.Reduce(gr).Result).To(Equal(sc2types.ResultTie))
	})

	It("prioritizes SC2Crash over every other rule", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, withResult(sc2types.SC2Crash))
		gr.SetPlayerResult(sc2types.PlayerTwo, withResult(sc2types.SC2Tie))

		Expect(result.Reduce(gr).Result).To(Equal(sc2types.ResultError))
	})

	It("resolves a player 1 crash", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, withResult(sc2types.BotCrash))
		gr.SetPlayerResult(sc2types.PlayerTwo, withResult(sc2types.SC2Victory))

		Expect(result.Reduce(gr).Result).To(Equal(sc2types.ResultPlayer1Crash))
	})

	It("resolves a player 2 crash", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, withResult(sc2types.SC2Victory))
		gr.SetPlayerResult(sc2types.PlayerTwo, withResult(sc2types.BotCrash))

		Expect(result.Reduce(gr).Result).To(Equal(sc2types.ResultPlayer2Crash))
	})

	It("carries the match id through untouched", func() {
		Expect(gr.MatchID).To(Equal(uint32(42)))
	})

	It("tracks game steps as the last non-zero game_loops seen", func() {
		gr.SetPlayerResult(sc2types.PlayerOne, &sc2types.PlayerResult{Result: sc2types.SC2Victory, GameLoops: 1500, Tags: sc2types.NewOrderedStringSet()})
		gr.SetPlayerResult(sc2types.PlayerTwo, &sc2types.PlayerResult{Result: sc2types.SC2Defeat, GameLoops: 0, Tags: sc2types.NewOrderedStringSet()})

		Expect(result.Reduce(gr).GameSteps).To(Equal(uint32(1500)))
	})
})

var _ = Describe("AvgFrameTime", func() {
	It("coerces a zero-loop division to zero instead of NaN", func() {
		Expect(result.AvgFrameTime(0, 0)).To(Equal(float32(0)))
	})

	It("averages normally otherwise", func() {
		Expect(result.AvgFrameTime(10, 5)).To(Equal(float32(2)))
	})
})
