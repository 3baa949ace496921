// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package sc2proto

import "google.golang.org/protobuf/encoding/protowire"

// ResponseCreateGame reports whether CreateGame succeeded; a non-zero
// Error means creation failed per spec §4.5's CreateGame contract.
type ResponseCreateGame struct {
	Error        uint32
	ErrorDetails string
}

func unmarshalResponseCreateGame(data []byte) (*ResponseCreateGame, error) {
	r := &ResponseCreateGame{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "response.create_game tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.create_game.error"}
			}
			r.Error = uint32(v)
			data = data[m:]
		case 2:
			s, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.create_game.error_details"}
			}
			r.ErrorDetails = s
			data = data[m:]
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.create_game unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

func (r *ResponseCreateGame) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(r.Error))
	b = appendString(b, 2, r.ErrorDetails)
	return b
}

// ResponseJoinGame carries the player id SC2 assigned this session.
type ResponseJoinGame struct {
	PlayerID     uint32
	Error        uint32
	ErrorDetails string
}

func unmarshalResponseJoinGame(data []byte) (*ResponseJoinGame, error) {
	r := &ResponseJoinGame{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "response.join_game tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.join_game.player_id"}
			}
			r.PlayerID = uint32(v)
			data = data[m:]
		case 2:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.join_game.error"}
			}
			r.Error = uint32(v)
			data = data[m:]
		case 3:
			s, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.join_game.error_details"}
			}
			r.ErrorDetails = s
			data = data[m:]
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.join_game unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

func (r *ResponseJoinGame) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(r.PlayerID))
	b = appendVarint(b, 2, uint64(r.Error))
	b = appendString(b, 3, r.ErrorDetails)
	return b
}

// Observation is the per-tick game state snapshot.
type Observation struct {
	GameLoop uint32
}

func unmarshalObservation(data []byte) (*Observation, error) {
	o := &Observation{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "observation tag"}
		}
		data = data[n:]
		if num == 1 {
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "observation.game_loop"}
			}
			o.GameLoop = uint32(v)
			data = data[m:]
		} else {
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "observation unknown field"}
			}
			data = data[m:]
		}
	}
	return o, nil
}

func (o *Observation) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(o.GameLoop))
	return b
}

// ResponseObservation is SC2's reply to RequestObservation; a non-empty
// PlayerResult list signals the game has ended (spec §4.5 step 11).
type ResponseObservation struct {
	Observation  *Observation
	PlayerResult []*PlayerResult
}

func unmarshalResponseObservation(data []byte) (*ResponseObservation, error) {
	r := &ResponseObservation{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "response.observation tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.observation.observation"}
			}
			data = data[m:]
			obs, err := unmarshalObservation(v)
			if err != nil {
				return nil, err
			}
			r.Observation = obs
		case 5:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.observation.player_result"}
			}
			data = data[m:]
			pr, err := unmarshalPlayerResult(v)
			if err != nil {
				return nil, err
			}
			r.PlayerResult = append(r.PlayerResult, pr)
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.observation unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

func (r *ResponseObservation) marshal() []byte {
	var b []byte
	if r.Observation != nil {
		b = appendMessage(b, 1, r.Observation.marshal())
	}
	for _, pr := range r.PlayerResult {
		b = appendMessage(b, 5, pr.marshal())
	}
	return b
}

// ResponseGameInfo carries the player roster the session rewrites per
// spec §4.5 step 8.
type ResponseGameInfo struct {
	PlayerInfo []*PlayerInfo
}

func unmarshalResponseGameInfo(data []byte) (*ResponseGameInfo, error) {
	r := &ResponseGameInfo{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "response.game_info tag"}
		}
		data = data[n:]
		if num == 4 {
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.game_info.player_info"}
			}
			data = data[m:]
			pi, err := unmarshalPlayerInfo(v)
			if err != nil {
				return nil, err
			}
			r.PlayerInfo = append(r.PlayerInfo, pi)
		} else {
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.game_info unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

func (r *ResponseGameInfo) marshal() []byte {
	var b []byte
	for _, pi := range r.PlayerInfo {
		b = appendMessage(b, 4, pi.marshal())
	}
	return b
}

// ResponseSaveReplay carries the replay bytes to persist to disk.
type ResponseSaveReplay struct {
	Data []byte
}

func unmarshalResponseSaveReplay(data []byte) (*ResponseSaveReplay, error) {
	r := &ResponseSaveReplay{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "response.save_replay tag"}
		}
		data = data[n:]
		if num == 1 {
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.save_replay.data"}
			}
			r.Data = append([]byte{}, v...)
			data = data[m:]
		} else {
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.save_replay unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

func (r *ResponseSaveReplay) marshal() []byte {
	var b []byte
	b = appendBytes(b, 1, r.Data)
	return b
}

type (
	ResponseLeaveGame struct{}
	ResponseQuit      struct{}
	ResponseDebug     struct{}
)

// Response is the SC2→bot envelope.
type Response struct {
	Id          uint32
	Status      Status
	Error       []string
	CreateGame  *ResponseCreateGame
	JoinGame    *ResponseJoinGame
	Observation *ResponseObservation
	GameInfo    *ResponseGameInfo
	LeaveGame   *ResponseLeaveGame
	Quit        *ResponseQuit
	Debug       *ResponseDebug
	SaveReplay  *ResponseSaveReplay

	unknown []rawField
}

// Marshal serializes the Response to its wire form.
func (r *Response) Marshal() ([]byte, error) {
	var b []byte
	if r.CreateGame != nil {
		// A successful CreateGame (no error set) marshals to zero bytes,
		// which appendMessage would elide, so the tag is written always.
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, r.CreateGame.marshal())
	}
	if r.JoinGame != nil {
		b = appendMessage(b, 2, r.JoinGame.marshal())
	}
	if r.LeaveGame != nil {
		b = appendPresence(b, 5)
	}
	if r.Quit != nil {
		b = appendPresence(b, 8)
	}
	if r.GameInfo != nil {
		b = appendMessage(b, 9, r.GameInfo.marshal())
	}
	if r.Observation != nil {
		b = appendMessage(b, 10, r.Observation.marshal())
	}
	if r.SaveReplay != nil {
		b = appendMessage(b, 15, r.SaveReplay.marshal())
	}
	if r.Debug != nil {
		b = appendPresence(b, 21)
	}
	for _, f := range r.unknown {
		b = f.append(b)
	}
	b = appendVarint(b, 97, uint64(r.Id))
	b = appendVarint(b, 98, uint64(r.Status))
	for _, e := range r.Error {
		b = appendString(b, 99, e)
	}
	return b, nil
}

// UnmarshalResponse parses a wire-format Response.
func UnmarshalResponse(data []byte) (*Response, error) {
	r := &Response{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "response tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.create_game"}
			}
			data = data[m:]
			cg, err := unmarshalResponseCreateGame(v)
			if err != nil {
				return nil, err
			}
			r.CreateGame = cg
		case 2:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.join_game"}
			}
			data = data[m:]
			jg, err := unmarshalResponseJoinGame(v)
			if err != nil {
				return nil, err
			}
			r.JoinGame = jg
		case 5:
			_, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.leave_game"}
			}
			data = data[m:]
			r.LeaveGame = &ResponseLeaveGame{}
		case 8:
			_, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.quit"}
			}
			data = data[m:]
			r.Quit = &ResponseQuit{}
		case 9:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.game_info"}
			}
			data = data[m:]
			gi, err := unmarshalResponseGameInfo(v)
			if err != nil {
				return nil, err
			}
			r.GameInfo = gi
		case 10:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.observation"}
			}
			data = data[m:]
			obs, err := unmarshalResponseObservation(v)
			if err != nil {
				return nil, err
			}
			r.Observation = obs
		case 15:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.save_replay"}
			}
			data = data[m:]
			sr, err := unmarshalResponseSaveReplay(v)
			if err != nil {
				return nil, err
			}
			r.SaveReplay = sr
		case 21:
			_, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.debug"}
			}
			data = data[m:]
			r.Debug = &ResponseDebug{}
		case 97:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.id"}
			}
			r.Id = uint32(v)
			data = data[m:]
		case 98:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.status"}
			}
			r.Status = Status(v)
			data = data[m:]
		case 99:
			s, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "response.error"}
			}
			r.Error = append(r.Error, s)
			data = data[m:]
		default:
			f, m, err := consumeUnknown(num, typ, data)
			if err != nil {
				return nil, &ErrMalformed{Reason: "response unknown field"}
			}
			data = data[m:]
			r.unknown = append(r.unknown, f)
		}
	}
	return r, nil
}
