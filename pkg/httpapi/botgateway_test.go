// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package httpapi_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/codec"
	"github.com/aiarena/sc2-match-controller/pkg/httpapi"
)

var _ = Describe("ServeBotGateway", func() {
	It("hands accepted connections to onAccept with the dialer's remote address", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		accepted := make(chan string, 1)
		closer, err := httpapi.ServeBotGateway(ctx, 18843, func(conn *codec.Conn, remoteAddr string) {
			accepted <- remoteAddr
			_ = conn.Send([]byte("hello"))
		})
		Expect(err).NotTo(HaveOccurred())
		defer closer.Close()

		time.Sleep(50 * time.Millisecond)

		dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer dialCancel()
		conn, err := codec.Dial(dialCtx, "ws://127.0.0.1:18843/sc2api")
		Expect(err).NotTo(HaveOccurred())

		var remoteAddr string
		Eventually(accepted, time.Second).Should(Receive(&remoteAddr))
		Expect(remoteAddr).NotTo(BeEmpty())

		msg, err := conn.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(msg)).To(Equal("hello"))
	})
})
