// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package sc2proto implements the SC2 API's Request/Response protobuf
// messages by hand, using google.golang.org/protobuf/encoding/protowire's
// low-level wire primitives rather than protoc-generated code: no .pb.go
// file exists anywhere in the retrieval pack to model generated code on,
// so the wire-format primitives carried by vimsent-L3's protobuf
// dependency are used directly, matching the Protocol Codec contract
// from spec §4.1 (frames carry an opaque binary payload that IS a
// serialized Request or Response).
//
// Only the message surface the Proxy Session actually inspects or
// rewrites is modeled; unrecognized fields are preserved as raw bytes so
// a round trip through this codec never silently drops data the bot or
// SC2 engine sent.
package sc2proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// rawField is an unrecognized field kept verbatim so messages round-trip
// without loss even though this codec only models a subset of the real
// s2clientprotocol schema.
type rawField struct {
	num  protowire.Number
	typ  protowire.Type
	data []byte
}

func (f rawField) append(b []byte) []byte {
	b = protowire.AppendTag(b, f.num, f.typ)
	return append(b, f.data...)
}

// consumeUnknown captures one field's raw bytes (tag re-encoded plus
// payload) so it can be replayed verbatim by Marshal.
func consumeUnknown(num protowire.Number, typ protowire.Type, b []byte) (rawField, int, error) {
	var payload []byte
	var n int
	switch typ {
	case protowire.VarintType:
		v, m := protowire.ConsumeVarint(b)
		if m < 0 {
			return rawField{}, 0, protowire.ParseError(m)
		}
		payload = protowire.AppendVarint(nil, v)
		n = m
	case protowire.Fixed32Type:
		v, m := protowire.ConsumeFixed32(b)
		if m < 0 {
			return rawField{}, 0, protowire.ParseError(m)
		}
		payload = protowire.AppendFixed32(nil, v)
		n = m
	case protowire.Fixed64Type:
		v, m := protowire.ConsumeFixed64(b)
		if m < 0 {
			return rawField{}, 0, protowire.ParseError(m)
		}
		payload = protowire.AppendFixed64(nil, v)
		n = m
	case protowire.BytesType:
		v, m := protowire.ConsumeBytes(b)
		if m < 0 {
			return rawField{}, 0, protowire.ParseError(m)
		}
		payload = protowire.AppendBytes(nil, v)
		n = m
	default:
		return rawField{}, 0, fmt.Errorf("sc2proto: unsupported wire type %d", typ)
	}
	return rawField{num: num, typ: typ, data: payload}, n, nil
}

// appendString appends a non-empty string as a length-delimited field.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// appendBytes appends a non-empty byte slice as a length-delimited field.
func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendVarint appends a varint field, skipping the zero value (proto3
// default-value elision).
func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendBool appends a bool field, skipping false (the proto3 default).
func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

// appendPresence appends an empty length-delimited field purely to mark
// that a oneof branch with no fields of its own (LeaveGame, Quit, Ping, ...)
// was set.
func appendPresence(b []byte, num protowire.Number) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, nil)
}

// appendMessage appends a nested message as a length-delimited field.
func appendMessage(b []byte, num protowire.Number, payload []byte) []byte {
	if len(payload) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

// ErrMalformed wraps any wire-level decode failure, surfaced by the
// Proxy Session as a ProtoParseError per spec §4.1/§7.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string { return "sc2proto: malformed message: " + e.Reason }
