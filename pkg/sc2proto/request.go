// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package sc2proto

import "google.golang.org/protobuf/encoding/protowire"

// PlayerSetup is one CreateGame participant entry.
type PlayerSetup struct {
	Type       PlayerType
	Race       Race
	PlayerName string
}

func (p *PlayerSetup) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(p.Type))
	b = appendVarint(b, 2, uint64(p.Race))
	b = appendString(b, 4, p.PlayerName)
	return b
}

func unmarshalPlayerSetup(data []byte) (*PlayerSetup, error) {
	p := &PlayerSetup{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "player_setup tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_setup.type"}
			}
			p.Type = PlayerType(v)
			data = data[m:]
		case 2:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_setup.race"}
			}
			p.Race = Race(v)
			data = data[m:]
		case 4:
			s, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_setup.player_name"}
			}
			p.PlayerName = s
			data = data[m:]
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_setup unknown field"}
			}
			data = data[m:]
		}
	}
	return p, nil
}

// RequestCreateGame starts a new game on a local map with the given
// participants.
type RequestCreateGame struct {
	MapPath     string
	PlayerSetup []*PlayerSetup
	Realtime    bool
}

func (r *RequestCreateGame) marshal() []byte {
	var b []byte
	var localMap []byte
	localMap = appendString(localMap, 1, r.MapPath)
	b = appendMessage(b, 1, localMap)
	for _, p := range r.PlayerSetup {
		b = appendMessage(b, 3, p.marshal())
	}
	b = appendBool(b, 6, r.Realtime)
	return b
}

func unmarshalRequestCreateGame(data []byte) (*RequestCreateGame, error) {
	r := &RequestCreateGame{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "create_game tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "create_game.local_map"}
			}
			data = data[m:]
			lm := v
			for len(lm) > 0 {
				lnum, ltyp, ln := protowire.ConsumeTag(lm)
				if ln < 0 {
					return nil, &ErrMalformed{Reason: "local_map tag"}
				}
				lm = lm[ln:]
				if lnum == 1 {
					s, sn := protowire.ConsumeString(lm)
					if sn < 0 {
						return nil, &ErrMalformed{Reason: "local_map.map_path"}
					}
					r.MapPath = s
					lm = lm[sn:]
				} else {
					_, sn := protowire.ConsumeFieldValue(lnum, ltyp, lm)
					if sn < 0 {
						return nil, &ErrMalformed{Reason: "local_map unknown field"}
					}
					lm = lm[sn:]
				}
			}
		case 3:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "create_game.player_setup"}
			}
			data = data[m:]
			ps, err := unmarshalPlayerSetup(v)
			if err != nil {
				return nil, err
			}
			r.PlayerSetup = append(r.PlayerSetup, ps)
		case 6:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "create_game.realtime"}
			}
			r.Realtime = v != 0
			data = data[m:]
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "create_game unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

// RequestJoinGame is the bot's request to join an already-created game.
type RequestJoinGame struct {
	Race        Race
	Options     *InterfaceOptions
	ServerPorts *PortSet
	ClientPorts []*PortSet
	SharedPort  int32
	PlayerName  string
}

func (r *RequestJoinGame) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(r.Race))
	b = appendMessage(b, 3, r.Options.marshal())
	b = appendMessage(b, 4, r.ServerPorts.marshal())
	for _, cp := range r.ClientPorts {
		b = appendMessage(b, 5, cp.marshal())
	}
	b = appendVarint(b, 6, uint64(r.SharedPort))
	b = appendString(b, 7, r.PlayerName)
	return b
}

func unmarshalRequestJoinGame(data []byte) (*RequestJoinGame, error) {
	r := &RequestJoinGame{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "join_game tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "join_game.race"}
			}
			r.Race = Race(v)
			data = data[m:]
		case 3:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "join_game.options"}
			}
			data = data[m:]
			opts, err := unmarshalInterfaceOptions(v)
			if err != nil {
				return nil, err
			}
			r.Options = opts
		case 4:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "join_game.server_ports"}
			}
			data = data[m:]
			ps, err := unmarshalPortSet(v)
			if err != nil {
				return nil, err
			}
			r.ServerPorts = ps
		case 5:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "join_game.client_ports"}
			}
			data = data[m:]
			ps, err := unmarshalPortSet(v)
			if err != nil {
				return nil, err
			}
			r.ClientPorts = append(r.ClientPorts, ps)
		case 6:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "join_game.shared_port"}
			}
			r.SharedPort = int32(v)
			data = data[m:]
		case 7:
			s, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "join_game.player_name"}
			}
			r.PlayerName = s
			data = data[m:]
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "join_game unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

// RequestObservation asks SC2 for the current game state. DisableFog is
// cleared by the session before forwarding (spec §4.5 step 5): combined
// with cloaked/burrowed detection flags it has been observed to leak
// fog-of-war.
type RequestObservation struct {
	DisableFog bool
}

func (r *RequestObservation) marshal() []byte {
	var b []byte
	b = appendBool(b, 4, r.DisableFog)
	return b
}

func unmarshalRequestObservation(data []byte) (*RequestObservation, error) {
	r := &RequestObservation{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "observation request tag"}
		}
		data = data[n:]
		if num == 4 {
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "observation request.disable_fog"}
			}
			r.DisableFog = v != 0
			data = data[m:]
		} else {
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "observation request unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

// RequestAction carries one or more bot-issued in-game actions.
type RequestAction struct {
	Actions []*Action
}

func (r *RequestAction) marshal() []byte {
	var b []byte
	for _, a := range r.Actions {
		b = appendMessage(b, 1, a.marshal())
	}
	return b
}

func unmarshalRequestAction(data []byte) (*RequestAction, error) {
	r := &RequestAction{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "action request tag"}
		}
		data = data[n:]
		if num == 1 {
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.actions"}
			}
			data = data[m:]
			a, err := unmarshalAction(v)
			if err != nil {
				return nil, err
			}
			r.Actions = append(r.Actions, a)
		} else {
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request action unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

// RequestLeaveGame, RequestQuit, RequestPing and RequestSaveReplay carry
// no fields worth modeling; RequestDebug's payload content never matters
// to the session (only its presence triggers stripping), so it is kept
// as an opaque blob.
type (
	RequestLeaveGame  struct{}
	RequestQuit       struct{}
	RequestPing       struct{}
	RequestSaveReplay struct{}
)

// RequestDebug is opaque: spec §4.5 step 3 only cares whether a Debug
// payload is present, never its contents.
type RequestDebug struct {
	Raw []byte
}

// Request is the bot→SC2 envelope. Exactly one of the typed fields is
// set, mirroring the real protocol's oneof; Id lets responses be
// correlated back to their request.
type Request struct {
	Id          uint32
	CreateGame  *RequestCreateGame
	JoinGame    *RequestJoinGame
	Observation *RequestObservation
	Action      *RequestAction
	LeaveGame   *RequestLeaveGame
	Quit        *RequestQuit
	Ping        *RequestPing
	Debug       *RequestDebug
	SaveReplay  *RequestSaveReplay

	unknown []rawField
}

// Marshal serializes the Request to its wire form.
func (r *Request) Marshal() ([]byte, error) {
	var b []byte
	if r.CreateGame != nil {
		b = appendMessage(b, 1, r.CreateGame.marshal())
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
	if r.Observation != nil {
		// Written unconditionally: an Observation with disable_fog=false
		// still marshals to zero bytes, but the oneof branch's presence
		// must survive regardless of the payload (mirrors the Debug field
		// below).
		b = protowire.AppendTag(b, 10, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Observation.marshal())
	}
	if r.Action != nil {
		b = appendMessage(b, 11, r.Action.marshal())
	}
	if r.SaveReplay != nil {
		b = appendPresence(b, 15)
	}
	if r.Ping != nil {
		b = appendPresence(b, 20)
	}
	if r.Debug != nil {
		// The Debug field's presence, not its content, is what matters for
		// debug stripping (spec §4.5 step 3); appendBytes would elide an
		// empty payload, so the tag is written unconditionally here.
		b = protowire.AppendTag(b, 21, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Debug.Raw)
	}
	for _, f := range r.unknown {
		b = f.append(b)
	}
	b = appendVarint(b, 97, uint64(r.Id))
	return b, nil
}

// HasDebug reports whether this request carries a Debug payload.
func (r *Request) HasDebug() bool { return r.Debug != nil }

// UnmarshalRequest parses a wire-format Request.
func UnmarshalRequest(data []byte) (*Request, error) {
	r := &Request{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "request tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.create_game"}
			}
			data = data[m:]
			cg, err := unmarshalRequestCreateGame(v)
			if err != nil {
				return nil, err
			}
			r.CreateGame = cg
		case 2:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.join_game"}
			}
			data = data[m:]
			jg, err := unmarshalRequestJoinGame(v)
			if err != nil {
				return nil, err
			}
			r.JoinGame = jg
		case 5:
			_, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.leave_game"}
			}
			data = data[m:]
			r.LeaveGame = &RequestLeaveGame{}
		case 8:
			_, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.quit"}
			}
			data = data[m:]
			r.Quit = &RequestQuit{}
		case 10:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.observation"}
			}
			data = data[m:]
			obs, err := unmarshalRequestObservation(v)
			if err != nil {
				return nil, err
			}
			r.Observation = obs
		case 11:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.action"}
			}
			data = data[m:]
			a, err := unmarshalRequestAction(v)
			if err != nil {
				return nil, err
			}
			r.Action = a
		case 15:
			_, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.save_replay"}
			}
			data = data[m:]
			r.SaveReplay = &RequestSaveReplay{}
		case 20:
			_, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.ping"}
			}
			data = data[m:]
			r.Ping = &RequestPing{}
		case 21:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.debug"}
			}
			data = data[m:]
			r.Debug = &RequestDebug{Raw: v}
		case 97:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "request.id"}
			}
			r.Id = uint32(v)
			data = data[m:]
		default:
			f, m, err := consumeUnknown(num, typ, data)
			if err != nil {
				return nil, &ErrMalformed{Reason: "request unknown field"}
			}
			data = data[m:]
			r.unknown = append(r.unknown, f)
		}
	}
	return r, nil
}
