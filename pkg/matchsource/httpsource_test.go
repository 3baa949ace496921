// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package matchsource_test

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aiarena/sc2-match-controller/pkg/matchsource"
	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

var _ = Describe("HTTPSource", func() {
	It("rejects construction without a valid base url or token", func() {
		_, err := matchsource.NewHTTPSource("not-a-url", "tok")
		Expect(err).To(HaveOccurred())

		_, err = matchsource.NewHTTPSource("http://example.com", "")
		Expect(err).To(HaveOccurred())
	})

	It("fetches and decodes the next match, carrying the authorization header", func() {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": 42,
				"bot1": {"id":1,"name":"basic_bot","game_display_id":"d1","bot_zip":"u1","bot_zip_md5hash":"m1","bot_data":"","bot_data_md5hash":"","plays_race":"T","type":"python"},
				"bot2": {"id":2,"name":"loser_bot","game_display_id":"d2","bot_zip":"u2","bot_zip_md5hash":"m2","bot_data":"","bot_data_md5hash":"","plays_race":"P","type":"python"},
				"map": {"name":"AutomatonLE","file":"mapurl","file_hash":"maphash"}
			}`))
		}))
		defer server.Close()

		src, err := matchsource.NewHTTPSource(server.URL, "secret-token")
		Expect(err).NotTo(HaveOccurred())

		m, err := src.NextMatch(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(gotAuth).To(Equal("Token secret-token"))
		Expect(m.MatchID).To(Equal(uint32(42)))
		Expect(m.Player1.Race).To(Equal(sc2types.RaceTerran))
		Expect(m.Player2.Race).To(Equal(sc2types.RaceProtoss))
		Expect(m.AiArenaMatch.MapURL).To(Equal("mapurl"))
	})

	It("submits a multipart result form with present artifacts attached", func() {
		dir, err := ioutil.TempDir("", "httpsource")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)
		replayPath := filepath.Join(dir, "match.SC2Replay")
		Expect(ioutil.WriteFile(replayPath, []byte("replaydata"), 0o644)).To(Succeed())

		var gotForm bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
			Expect(r.FormValue("match")).To(Equal("42"))
			Expect(r.FormValue("type")).To(Equal("Player1Win"))
			_, _, ferr := r.FormFile("replay_file")
			Expect(ferr).NotTo(HaveOccurred())
			gotForm = true
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		src, err := matchsource.NewHTTPSource(server.URL, "tok")
		Expect(err).NotTo(HaveOccurred())

		err = src.SubmitResult(context.Background(), result.AiArenaGameResult{
			MatchID: 42,
			Result:  sc2types.ResultPlayer1Win,
		}, matchsource.Artifacts{ReplayFile: replayPath})
		Expect(err).NotTo(HaveOccurred())
		Expect(gotForm).To(BeTrue())
	})
})
