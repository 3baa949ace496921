// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package codec_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/codec"
	"github.com/aiarena/sc2-match-controller/pkg/sc2proto"
)

var _ = Describe("Conn", func() {
	var server *httptest.Server
	var serverConnCh chan *codec.Conn

	BeforeEach(func() {
		serverConnCh = make(chan *codec.Conn, 1)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := codec.Accept(w, r)
			Expect(err).NotTo(HaveOccurred())
			serverConnCh <- c
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	dialURL := func(s *httptest.Server) string {
		return "ws" + strings.TrimPrefix(s.URL, "http")
	}

	It("round trips a Request over the wire", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		client, err := codec.Dial(ctx, dialURL(server))
		Expect(err).NotTo(HaveOccurred())
		defer client.Close()

		serverConn := <-serverConnCh
		defer serverConn.Close()

		req := &sc2proto.Request{Id: 1, Ping: &sc2proto.RequestPing{}}
		Expect(client.SendRequest(req)).To(Succeed())

		got, err := serverConn.RecvRequest()
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Id).To(Equal(uint32(1)))
		Expect(got.Ping).NotTo(BeNil())
	})

	It("round trips a Response over the wire", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		client, err := codec.Dial(ctx, dialURL(server))
		Expect(err).NotTo(HaveOccurred())
		defer client.Close()

		serverConn := <-serverConnCh
		defer serverConn.Close()

		resp := &sc2proto.Response{Id: 1, Status: sc2proto.StatusInGame}
		Expect(serverConn.SendResponse(resp)).To(Succeed())

		got, err := client.RecvResponse()
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(sc2proto.StatusInGame))
	})

	It("returns an error once the peer closes the connection", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		client, err := codec.Dial(ctx, dialURL(server))
		Expect(err).NotTo(HaveOccurred())

		serverConn := <-serverConnCh
		Expect(serverConn.Close()).To(Succeed())

		_, err = client.Recv()
		Expect(err).To(HaveOccurred())
	})
})
