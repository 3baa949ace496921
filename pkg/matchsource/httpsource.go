// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0
package matchsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/aiarena/sc2-match-controller/pkg/result"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

const (
	matchesPath      = "/api/arenaclient/matches/"
	resultsPath      = "/api/arenaclient/results/"
	submitRetries    = 60
	submitRetryDelay = 10 * time.Second
)

// aiArenaBot is the wire shape of one seat of an upstream match.
type aiArenaBot struct {
	ID            uint32 `json:"id"`
	Name          string `json:"name"`
	GameDisplayID string `json:"game_display_id"`
	BotZip        string `json:"bot_zip"`
	BotZipMD5     string `json:"bot_zip_md5hash"`
	BotData       string `json:"bot_data"`
	BotDataMD5    string `json:"bot_data_md5hash"`
	PlaysRace     string `json:"plays_race"`
	Type          string `json:"type"`
}

type aiArenaMap struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	FileHash string `json:"file_hash"`
}

type aiArenaMatch struct {
	ID   uint32     `json:"id"`
	Bot1 aiArenaBot `json:"bot1"`
	Bot2 aiArenaBot `json:"bot2"`
	Map  aiArenaMap `json:"map"`
}

func toMatchPlayer(b aiArenaBot) (sc2types.MatchPlayer, error) {
	race, err := parseRace(b.PlaysRace)
	if err != nil {
		return sc2types.MatchPlayer{}, err
	}
	botType, err := parseBotType(b.Type)
	if err != nil {
		return sc2types.MatchPlayer{}, err
	}
	return sc2types.MatchPlayer{
		ID:      strconv.FormatUint(uint64(b.ID), 10),
		Name:    b.Name,
		Race:    race,
		BotType: botType,
	}, nil
}

func parseRace(s string) (sc2types.Race, error) {
	switch strings.ToLower(s) {
	case "t", "terran":
		return sc2types.RaceTerran, nil
	case "z", "zerg":
		return sc2types.RaceZerg, nil
	case "p", "protoss":
		return sc2types.RaceProtoss, nil
	case "r", "random":
		return sc2types.RaceRandom, nil
	default:
		return "", fmt.Errorf("unrecognized race %q", s)
	}
}

func parseBotType(s string) (sc2types.BotType, error) {
	switch strings.ToLower(s) {
	case "cppwin32":
		return sc2types.BotTypeCppWin32, nil
	case "cpplinux":
		return sc2types.BotTypeCppLinux, nil
	case "dotnetcore":
		return sc2types.BotTypeDotnetCore, nil
	case "java":
		return sc2types.BotTypeJava, nil
	case "nodejs":
		return sc2types.BotTypeNodeJs, nil
	case "python":
		return sc2types.BotTypePython, nil
	default:
		return "", fmt.Errorf("unrecognized bot_type %q", s)
	}
}

func (m aiArenaMatch) toMatch() (*sc2types.Match, error) {
	p1, err := toMatchPlayer(m.Bot1)
	if err != nil {
		return nil, err
	}
	p2, err := toMatchPlayer(m.Bot2)
	if err != nil {
		return nil, err
	}
	return &sc2types.Match{
		MatchID: m.ID,
		MapName: m.Map.Name,
		Player1: p1,
		Player2: p2,
		AiArenaMatch: &sc2types.AiArenaMatchRefs{
			Bot1ZipURL:  m.Bot1.BotZip,
			Bot1ZipMD5:  m.Bot1.BotZipMD5,
			Bot1DataURL: m.Bot1.BotData,
			Bot1DataMD5: m.Bot1.BotDataMD5,
			Bot2ZipURL:  m.Bot2.BotZip,
			Bot2ZipMD5:  m.Bot2.BotZipMD5,
			Bot2DataURL: m.Bot2.BotData,
			Bot2DataMD5: m.Bot2.BotDataMD5,
			MapURL:      m.Map.File,
			MapMD5:      m.Map.FileHash,
		},
	}, nil
}

// HTTPSource talks to the upstream aiarena website API.
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPSource returns an HTTPSource targeting baseURL, authenticating
// with token via the "Token <token>" scheme the upstream API expects.
func NewHTTPSource(baseURL, token string) (*HTTPSource, error) {
	if !govalidator.IsURL(baseURL) {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if token == "" {
		return nil, errors.New("missing API token")
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpClient: &http.Client{}}, nil
}

// HasNext always reports true: the upstream API has no cheap existence
// check, so absence is only discovered by attempting NextMatch.
func (s *HTTPSource) HasNext(ctx context.Context) bool { return true }

// NextMatch requests the next match from the upstream API.
func (s *HTTPSource) NextMatch(ctx context.Context) (*sc2types.Match, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+matchesPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("match source returned status %d", resp.StatusCode)
	}

	var wire aiArenaMatch
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding match response: %w", err)
	}
	return wire.toMatch()
}

// SubmitResult posts the reduced result and any present artifacts as a
// multipart form, retrying submitRetries times on client/server errors.
func (s *HTTPSource) SubmitResult(ctx context.Context, res result.AiArenaGameResult, artifacts Artifacts) error {
	var lastErr error
	for attempt := 0; attempt < submitRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(submitRetryDelay):
			}
		}
		body, contentType, err := buildResultForm(res, artifacts)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+resultsPath, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Token "+s.token)
		req.Header.Set("Content-Type", contentType)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("result submission returned status %d", resp.StatusCode)
			continue
		}
		return nil
	}
	return lastErr
}

func buildResultForm(res result.AiArenaGameResult, artifacts Artifacts) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := map[string]string{
		"match":      strconv.FormatUint(uint64(res.MatchID), 10),
		"type":       string(res.Result),
		"game_steps": strconv.FormatUint(uint64(res.GameSteps), 10),
	}
	if res.Bot1AvgStepTime != nil {
		fields["bot1_avg_step_time"] = strconv.FormatFloat(float64(*res.Bot1AvgStepTime), 'f', -1, 32)
	}
	if res.Bot2AvgStepTime != nil {
		fields["bot2_avg_step_time"] = strconv.FormatFloat(float64(*res.Bot2AvgStepTime), 'f', -1, 32)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if res.Bot1Tags != nil {
		for _, tag := range *res.Bot1Tags {
			if err := w.WriteField("bot1_tags", tag); err != nil {
				return nil, "", err
			}
		}
	}
	if res.Bot2Tags != nil {
		for _, tag := range *res.Bot2Tags {
			if err := w.WriteField("bot2_tags", tag); err != nil {
				return nil, "", err
			}
		}
	}

	files := map[string]string{
		"bot1_data":       artifacts.Bot1DataZip,
		"bot2_data":       artifacts.Bot2DataZip,
		"bot1_log":        artifacts.Bot1LogZip,
		"bot2_log":        artifacts.Bot2LogZip,
		"replay_file":     artifacts.ReplayFile,
		"arenaclient_log": artifacts.ArenaClientLog,
	}
	for field, path := range files {
		if path == "" {
			continue
		}
		if err := attachFile(w, field, path); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
