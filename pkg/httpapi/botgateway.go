// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/aiarena/sc2-match-controller/pkg/codec"
)

// ServeBotGateway opens a bot-facing WebSocket listener scoped to a
// single port, upgrading every accepted connection and handing it to
// onAccept. One gateway is opened per seat (spec §6's "Bot-facing
// WebSocket server", path /sc2api): since the listener itself is
// scoped to one bot, the seat a connection belongs to is known at
// accept time without any further correlation against the bot's
// discovered listening port.
func ServeBotGateway(ctx context.Context, port int32, onAccept func(conn *codec.Conn, remoteAddr string)) (io.Closer, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sc2api", func(w http.ResponseWriter, r *http.Request) {
		conn, err := codec.Accept(w, r)
		if err != nil {
			return
		}
		onAccept(conn, r.RemoteAddr)
	})

	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("opening bot gateway on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	return srv, nil
}
