// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package sc2proto_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/sc2proto"
)

var _ = Describe("Request round trip", func() {
	It("round trips a CreateGame request", func() {
		req := &sc2proto.Request{
			Id: 42,
			CreateGame: &sc2proto.RequestCreateGame{
				MapPath: "maps/AcropolisLE.SC2Map",
				PlayerSetup: []*sc2proto.PlayerSetup{
					{Type: sc2proto.PlayerTypeParticipant, Race: sc2proto.RaceTerran},
					{Type: sc2proto.PlayerTypeParticipant, Race: sc2proto.RaceZerg},
				},
				Realtime: false,
			},
		}

		data, err := req.Marshal()
		Expect(err).NotTo(HaveOccurred())

		got, err := sc2proto.UnmarshalRequest(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Id).To(Equal(uint32(42)))
		Expect(got.CreateGame).NotTo(BeNil())
		Expect(got.CreateGame.MapPath).To(Equal("maps/AcropolisLE.SC2Map"))
		Expect(got.CreateGame.PlayerSetup).To(HaveLen(2))
		Expect(got.CreateGame.PlayerSetup[0].Race).To(Equal(sc2proto.RaceTerran))
		Expect(got.CreateGame.PlayerSetup[1].Race).To(Equal(sc2proto.RaceZerg))
	})

	It("round trips a JoinGame request with player name rewritten", func() {
		req := &sc2proto.Request{
			Id: 7,
			JoinGame: &sc2proto.RequestJoinGame{
				Race:       sc2proto.RaceProtoss,
				Options:    &sc2proto.InterfaceOptions{Raw: true},
				PlayerName: "ladder_bot_1",
				SharedPort: 0,
			},
		}

		data, err := req.Marshal()
		Expect(err).NotTo(HaveOccurred())

		got, err := sc2proto.UnmarshalRequest(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.JoinGame).NotTo(BeNil())
		Expect(got.JoinGame.PlayerName).To(Equal("ladder_bot_1"))
		Expect(got.JoinGame.Options.Raw).To(BeTrue())
	})

	It("preserves presence-only oneof branches", func() {
		for _, req := range []*sc2proto.Request{
			{Id: 1, LeaveGame: &sc2proto.RequestLeaveGame{}},
			{Id: 2, Quit: &sc2proto.RequestQuit{}},
			{Id: 3, Ping: &sc2proto.RequestPing{}},
			{Id: 4, Observation: &sc2proto.RequestObservation{}},
			{Id: 5, SaveReplay: &sc2proto.RequestSaveReplay{}},
		} {
			data, err := req.Marshal()
			Expect(err).NotTo(HaveOccurred())

			got, err := sc2proto.UnmarshalRequest(data)
			Expect(err).NotTo(HaveOccurred())

			switch {
			case req.LeaveGame != nil:
				Expect(got.LeaveGame).NotTo(BeNil())
			case req.Quit != nil:
				Expect(got.Quit).NotTo(BeNil())
			case req.Ping != nil:
				Expect(got.Ping).NotTo(BeNil())
			case req.Observation != nil:
				Expect(got.Observation).NotTo(BeNil())
			case req.SaveReplay != nil:
				Expect(got.SaveReplay).NotTo(BeNil())
			}
		}
	})

	It("preserves an empty Debug payload as present", func() {
		req := &sc2proto.Request{Id: 9, Debug: &sc2proto.RequestDebug{}}
		data, err := req.Marshal()
		Expect(err).NotTo(HaveOccurred())

		got, err := sc2proto.UnmarshalRequest(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.HasDebug()).To(BeTrue())
	})

	It("round trips unknown fields without loss", func() {
		req := &sc2proto.Request{Id: 3, Quit: &sc2proto.RequestQuit{}}
		data, err := req.Marshal()
		Expect(err).NotTo(HaveOccurred())

		// Append a synthetic unknown varint field (field 200) after the
		// known tail, simulating a future SC2 API addition.
		extra := append([]byte{}, data...)
		extra = append(extra, 0xC0, 0x0C, 0x01) // tag for field 200, varint type; value 1

		got, err := sc2proto.UnmarshalRequest(extra)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Quit).NotTo(BeNil())

		reencoded, err := got.Marshal()
		Expect(err).NotTo(HaveOccurred())
		Expect(reencoded).To(HaveLen(len(extra)))

		roundTwo, err := sc2proto.UnmarshalRequest(reencoded)
		Expect(err).NotTo(HaveOccurred())
		Expect(roundTwo.Quit).NotTo(BeNil())
	})
})

var _ = Describe("Response round trip", func() {
	It("round trips a ResponseObservation carrying a player result", func() {
		resp := &sc2proto.Response{
			Id:     42,
			Status: sc2proto.StatusEnded,
			Observation: &sc2proto.ResponseObservation{
				Observation: &sc2proto.Observation{GameLoop: 12345},
				PlayerResult: []*sc2proto.PlayerResult{
					{PlayerID: 1, Result: sc2proto.ResultVictory},
					{PlayerID: 2, Result: sc2proto.ResultDefeat},
				},
			},
		}

		data, err := resp.Marshal()
		Expect(err).NotTo(HaveOccurred())

		got, err := sc2proto.UnmarshalResponse(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(sc2proto.StatusEnded))
		Expect(got.Observation.Observation.GameLoop).To(Equal(uint32(12345)))
		Expect(got.Observation.PlayerResult).To(HaveLen(2))
		Expect(got.Observation.PlayerResult[0].Result).To(Equal(sc2proto.ResultVictory))
		Expect(got.Observation.PlayerResult[1].Result).To(Equal(sc2proto.ResultDefeat))
	})

	It("round trips a ResponseGameInfo with rewritten player names", func() {
		resp := &sc2proto.Response{
			Id: 1,
			GameInfo: &sc2proto.ResponseGameInfo{
				PlayerInfo: []*sc2proto.PlayerInfo{
					{PlayerID: 1, Type: sc2proto.PlayerTypeParticipant, RaceActual: sc2proto.RaceTerran, PlayerName: "ladder_bot_1"},
					{PlayerID: 2, Type: sc2proto.PlayerTypeParticipant, RaceActual: sc2proto.RaceZerg, PlayerName: "ladder_bot_2"},
				},
			},
		}

		data, err := resp.Marshal()
		Expect(err).NotTo(HaveOccurred())

		got, err := sc2proto.UnmarshalResponse(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.GameInfo.PlayerInfo).To(HaveLen(2))
		Expect(got.GameInfo.PlayerInfo[0].PlayerName).To(Equal("ladder_bot_1"))
	})

	It("round trips a ResponseSaveReplay payload", func() {
		resp := &sc2proto.Response{
			Id:         5,
			SaveReplay: &sc2proto.ResponseSaveReplay{Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		}

		data, err := resp.Marshal()
		Expect(err).NotTo(HaveOccurred())

		got, err := sc2proto.UnmarshalResponse(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.SaveReplay.Data).To(Equal([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	})

	It("round trips error strings and status", func() {
		resp := &sc2proto.Response{
			Id:     3,
			Status: sc2proto.StatusQuit,
			Error:  []string{"MissingCreateGame", "LaunchError"},
		}

		data, err := resp.Marshal()
		Expect(err).NotTo(HaveOccurred())

		got, err := sc2proto.UnmarshalResponse(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Error).To(Equal([]string{"MissingCreateGame", "LaunchError"}))
	})

	It("rejects truncated data", func() {
		_, err := sc2proto.UnmarshalRequest([]byte{0xFF})
		Expect(err).To(HaveOccurred())
	})
})
