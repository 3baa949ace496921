// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package codec implements the binary WebSocket transport the Proxy
// Session pumps Request/Response frames over, grounded on
// gravwell-gravwell's client/websocketRouter dialer/reader idiom but
// carrying opaque binary frames rather than JSON, matching the SC2
// API's wire format (spec §4.1).
package codec

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aiarena/sc2-match-controller/pkg/sc2proto"
)

const (
	// MaxMessageBytes bounds a reassembled message, matching the SC2
	// API's own limit.
	MaxMessageBytes = 128 << 20
	// MaxFrameBytes is the per-frame size figure. No Conn applies it: a
	// single frame is bounded only by MaxMessageBytes.
	MaxFrameBytes = 32 << 20
)

// ErrClosed is returned by Recv/Send once the underlying connection has
// been closed, either locally or by the peer.
var ErrClosed = errors.New("codec: connection closed")

// Conn wraps a binary-frame WebSocket connection carrying SC2 protocol
// messages. Unlike gravwell's SubProtoClient, there is no subprotocol
// negotiation: a Conn carries exactly one stream of opaque frames in
// either direction.
type Conn struct {
	ws *websocket.Conn
}

// Dial connects to a WebSocket endpoint (the SC2 engine's reverse
// listener or, from the bot's perspective, the proxy's inbound
// endpoint) and wraps it as a Conn.
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 30 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusOK {
			return nil, err
		}
		return nil, err
	}
	ws.SetReadLimit(MaxMessageBytes)
	return &Conn{ws: ws}, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Accept upgrades an inbound HTTP connection (a bot dialing the proxy's
// bot-facing endpoint) to a Conn.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(MaxMessageBytes)
	return &Conn{ws: ws}, nil
}

// Send writes a raw binary message. No size limit is applied on send;
// on receive, Recv is bounded by MaxMessageBytes alone.
func (c *Conn) Send(data []byte) error {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	return nil
}

// Recv reads the next full binary message.
func (c *Conn) Recv() ([]byte, error) {
	typ, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if typ != websocket.BinaryMessage {
		return nil, errors.New("codec: unexpected non-binary frame")
	}
	return data, nil
}

// SendRequest marshals and sends a Request.
func (c *Conn) SendRequest(req *sc2proto.Request) error {
	data, err := req.Marshal()
	if err != nil {
		return err
	}
	return c.Send(data)
}

// RecvRequest reads and parses the next frame as a Request.
func (c *Conn) RecvRequest() (*sc2proto.Request, error) {
	data, err := c.Recv()
	if err != nil {
		return nil, err
	}
	return sc2proto.UnmarshalRequest(data)
}

// SendResponse marshals and sends a Response.
func (c *Conn) SendResponse(resp *sc2proto.Response) error {
	data, err := resp.Marshal()
	if err != nil {
		return err
	}
	return c.Send(data)
}

// RecvResponse reads and parses the next frame as a Response.
func (c *Conn) RecvResponse() (*sc2proto.Response, error) {
	data, err := c.Recv()
	if err != nil {
		return nil, err
	}
	return sc2proto.UnmarshalResponse(data)
}

// SetDeadline applies a combined read/write deadline, used to bound how
// long the session waits for either side before declaring a timeout
// (spec §4.5 steps covering JoinGameTimeout/Sc2Timeout/BotTimeout).
func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

// Close closes the underlying connection with a normal closure frame.
func (c *Conn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}
