// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package sc2proto

import "google.golang.org/protobuf/encoding/protowire"

// PortSet is one game/base port pair, used for both the server's and a
// client's ports in JoinGame.
type PortSet struct {
	GamePort int32
	BasePort int32
}

func (p *PortSet) marshal() []byte {
	if p == nil {
		return nil
	}
	var b []byte
	b = appendVarint(b, 1, uint64(p.GamePort))
	b = appendVarint(b, 2, uint64(p.BasePort))
	return b
}

func unmarshalPortSet(data []byte) (*PortSet, error) {
	p := &PortSet{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "port_set tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "port_set.game_port"}
			}
			p.GamePort = int32(v)
			data = data[m:]
		case 2:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "port_set.base_port"}
			}
			p.BasePort = int32(v)
			data = data[m:]
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "port_set unknown field"}
			}
			data = data[m:]
		}
	}
	return p, nil
}

// InterfaceOptions is the subset of RequestJoinGame's interface options
// the session rewrites per spec §4.5's JoinGame rewrite rules.
type InterfaceOptions struct {
	Raw                   bool
	RawAffectsSelection   bool
	RawCropToPlayableArea bool
}

func (o *InterfaceOptions) marshal() []byte {
	if o == nil {
		return nil
	}
	var b []byte
	b = appendBool(b, 1, o.Raw)
	b = appendBool(b, 7, o.RawAffectsSelection)
	b = appendBool(b, 8, o.RawCropToPlayableArea)
	return b
}

func unmarshalInterfaceOptions(data []byte) (*InterfaceOptions, error) {
	o := &InterfaceOptions{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "interface_options tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "interface_options.raw"}
			}
			o.Raw = v != 0
			data = data[m:]
		case 7:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "interface_options.raw_affects_selection"}
			}
			o.RawAffectsSelection = v != 0
			data = data[m:]
		case 8:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "interface_options.raw_crop_to_playable_area"}
			}
			o.RawCropToPlayableArea = v != 0
			data = data[m:]
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "interface_options unknown field"}
			}
			data = data[m:]
		}
	}
	return o, nil
}

// ActionChat is a bot-authored chat line, scanned for "Tag:" lines per
// spec §4.5 step 6.
type ActionChat struct {
	Message string
}

// Action is one entry of a RequestAction's action list.
type Action struct {
	Chat *ActionChat
}

func (a *Action) marshal() []byte {
	var b []byte
	if a.Chat != nil {
		var chat []byte
		chat = appendString(chat, 2, a.Chat.Message)
		b = appendMessage(b, 5, chat)
	}
	return b
}

func unmarshalAction(data []byte) (*Action, error) {
	a := &Action{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "action tag"}
		}
		data = data[n:]
		if num == 5 {
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "action.action_chat"}
			}
			data = data[m:]
			chat := &ActionChat{}
			cdata := v
			for len(cdata) > 0 {
				cnum, ctyp, cn := protowire.ConsumeTag(cdata)
				if cn < 0 {
					return nil, &ErrMalformed{Reason: "action_chat tag"}
				}
				cdata = cdata[cn:]
				if cnum == 2 {
					s, sn := protowire.ConsumeString(cdata)
					if sn < 0 {
						return nil, &ErrMalformed{Reason: "action_chat.message"}
					}
					chat.Message = s
					cdata = cdata[sn:]
				} else {
					_, sn := protowire.ConsumeFieldValue(cnum, ctyp, cdata)
					if sn < 0 {
						return nil, &ErrMalformed{Reason: "action_chat unknown field"}
					}
					cdata = cdata[sn:]
				}
			}
			a.Chat = chat
		} else {
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "action unknown field"}
			}
			data = data[m:]
		}
	}
	return a, nil
}

// PlayerResult is one entry of a ResponseObservation's player_result list.
type PlayerResult struct {
	PlayerID uint32
	Result   Result
}

func (r *PlayerResult) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(r.PlayerID))
	b = appendVarint(b, 2, uint64(r.Result))
	return b
}

func unmarshalPlayerResult(data []byte) (*PlayerResult, error) {
	r := &PlayerResult{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "player_result tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_result.player_id"}
			}
			r.PlayerID = uint32(v)
			data = data[m:]
		case 2:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_result.result"}
			}
			r.Result = Result(v)
			data = data[m:]
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_result unknown field"}
			}
			data = data[m:]
		}
	}
	return r, nil
}

// PlayerInfo is one entry of a ResponseGameInfo's player_info list,
// rewritten per spec §4.5 step 8 to mask real identities.
type PlayerInfo struct {
	PlayerID      uint32
	Type          PlayerType
	RaceRequested Race
	RaceActual    Race
	PlayerName    string
}

func (p *PlayerInfo) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(p.PlayerID))
	b = appendVarint(b, 2, uint64(p.Type))
	b = appendVarint(b, 3, uint64(p.RaceRequested))
	b = appendVarint(b, 4, uint64(p.RaceActual))
	b = appendString(b, 6, p.PlayerName)
	return b
}

func unmarshalPlayerInfo(data []byte) (*PlayerInfo, error) {
	p := &PlayerInfo{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, &ErrMalformed{Reason: "player_info tag"}
		}
		data = data[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_info.player_id"}
			}
			p.PlayerID = uint32(v)
			data = data[m:]
		case 2:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_info.type"}
			}
			p.Type = PlayerType(v)
			data = data[m:]
		case 3:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_info.race_requested"}
			}
			p.RaceRequested = Race(v)
			data = data[m:]
		case 4:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_info.race_actual"}
			}
			p.RaceActual = Race(v)
			data = data[m:]
		case 6:
			s, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_info.player_name"}
			}
			p.PlayerName = s
			data = data[m:]
		default:
			_, m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, &ErrMalformed{Reason: "player_info unknown field"}
			}
			data = data[m:]
		}
	}
	return p, nil
}
