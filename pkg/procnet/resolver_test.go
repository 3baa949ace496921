// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package procnet_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/procnet"
)

var _ = Describe("PollForPort", func() {
	It("gives up after the attempt budget for a pid with no listening socket", func() {
		_, err := procnet.PollForPort(context.Background(), 1<<30, 2, time.Millisecond)
		Expect(err).To(HaveOccurred())
	})

	It("honors context cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := procnet.PollForPort(ctx, 1<<30, 5, time.Second)
		Expect(err).To(HaveOccurred())
	})
})
