// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package httpapi implements the controller's two HTTP surfaces: the
// bot-facing WebSocket gateway (botgateway.go) and the orchestrator-
// internal REST API (spec §6, payload shapes fixed by SPEC_FULL.md
// §13), routed with gorilla/mux the way other_examples' cloud-morph and
// power-grid-backend handlers route theirs.
package httpapi

import (
	"archive/zip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aiarena/sc2-match-controller/pkg/artifact"
	"github.com/aiarena/sc2-match-controller/pkg/botsupervisor"
	"github.com/aiarena/sc2-match-controller/pkg/config"
	"github.com/aiarena/sc2-match-controller/pkg/procstats"
	"github.com/aiarena/sc2-match-controller/pkg/sc2types"
)

// Server hosts the controller's REST API.
type Server struct {
	cfg    *config.TypedConfig
	botSup *botsupervisor.Supervisor
	logger *zap.SugaredLogger
	http   *http.Server
}

// NewServer builds the REST router and binds it to addr; call Start to
// begin serving.
func NewServer(addr string, cfg *config.TypedConfig, botSup *botsupervisor.Supervisor, logger *zap.SugaredLogger) *Server {
	s := &Server{cfg: cfg, botSup: botSup, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/configuration", s.handleConfiguration).Methods(http.MethodGet)
	r.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/terminate/{process_key}", s.handleTerminate).Methods(http.MethodPost)
	r.HandleFunc("/terminate_all", s.handleTerminateAll).Methods(http.MethodPost)
	r.HandleFunc("/shutdown", s.handleShutdown).Methods(http.MethodPost)
	r.HandleFunc("/stats/host", s.handleStatsHost).Methods(http.MethodGet)
	r.HandleFunc("/stats_all", s.handleStatsAll).Methods(http.MethodGet)
	r.HandleFunc("/stats/{port}", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/status/{port}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/download/controller_log", s.handleDownloadControllerLog).Methods(http.MethodGet)
	r.HandleFunc("/download/bot/{name}/log", s.handleDownloadBotLog).Methods(http.MethodGet)
	r.HandleFunc("/download/bot/{name}/data", s.handleDownloadBotDataDir).Methods(http.MethodGet)
	r.HandleFunc("/download_map", s.handleDownloadMap).Methods(http.MethodGet)
	r.HandleFunc("/download_bot", s.handleDownloadBot).Methods(http.MethodPost)
	r.HandleFunc("/download_bot_data", s.handleDownloadBotData).Methods(http.MethodPost)
	r.HandleFunc("/download_bot/md5_hash", s.handleDownloadBotMD5).Methods(http.MethodPost)
	r.HandleFunc("/download_bot_data/md5_hash", s.handleDownloadBotDataMD5).Methods(http.MethodPost)

	s.http = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorw("http server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ok"))
}

// redactedConfig mirrors config.TypedConfig but omits the upstream
// token, matching SPEC_FULL.md §13's "secrets redacted" requirement.
type redactedConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	ProxyHost       string `json:"proxy_host"`
	ProxyPort       int    `json:"proxy_port"`
	PortRangeStart  int32  `json:"port_range_start"`
	PortRangeEnd    int32  `json:"port_range_end"`
	TimeoutSecs     string `json:"timeout_secs"`
	MaxGameTime     uint32 `json:"max_game_time"`
	DisableDebug    bool   `json:"disable_debug"`
	RealTime        bool   `json:"real_time"`
	ValidateRace    bool   `json:"validate_race"`
	MatchSourceMode string `json:"match_source_mode"`
	RoundsPerRun    int    `json:"rounds_per_run"`
	Environment     string `json:"environment"`
}

func (s *Server) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, redactedConfig{
		Host:            s.cfg.Host,
		Port:            s.cfg.Port,
		ProxyHost:       s.cfg.ProxyHost,
		ProxyPort:       s.cfg.ProxyPort,
		PortRangeStart:  s.cfg.PortRangeStart,
		PortRangeEnd:    s.cfg.PortRangeEnd,
		TimeoutSecs:     s.cfg.TimeoutSecs.String(),
		MaxGameTime:     s.cfg.MaxGameTime,
		DisableDebug:    s.cfg.DisableDebug,
		RealTime:        s.cfg.RealTime,
		ValidateRace:    s.cfg.ValidateRace,
		MatchSourceMode: s.cfg.MatchSourceMode,
		RoundsPerRun:    s.cfg.RoundsPerRun,
		Environment:     s.cfg.Environment,
	})
}

type startBotRequest struct {
	ProcessKey   string          `json:"process_key"`
	BotType      sc2types.BotType `json:"bot_type"`
	Name         string          `json:"name"`
	GamePort     int32           `json:"game_port"`
	StartPort    int32           `json:"start_port"`
	LadderServer string          `json:"ladder_server"`
	OpponentID   string          `json:"opponent_id"`
	WorkingDir   string          `json:"working_dir"`
}

type startBotResponse struct {
	ProcessKey string `json:"process_key"`
	PID        int    `json:"pid"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h, err := s.botSup.Start(r.Context(), botsupervisor.StartRequest{
		BotDir:     req.WorkingDir,
		BotName:    req.Name,
		BotType:    req.BotType,
		GamePort:   req.GamePort,
		LadderHost: req.LadderServer,
		StartPort:  req.StartPort,
		OpponentID: req.OpponentID,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, startBotResponse{
		ProcessKey: strconv.FormatUint(uint64(h.ProcessKey), 10),
		PID:        h.Process.PID(),
	})
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	key, err := parseProcessKey(mux.Vars(r)["process_key"])
	if err != nil {
		http.Error(w, "invalid process_key", http.StatusBadRequest)
		return
	}
	if err := s.botSup.Terminate(key, false); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type terminateAllRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleTerminateAll(w http.ResponseWriter, r *http.Request) {
	var req terminateAllRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Mode == "" {
		req.Mode = "graceful"
	}
	s.botSup.TerminateAll(req.Mode)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusAccepted)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()
}

func (s *Server) handleStatsHost(w http.ResponseWriter, r *http.Request) {
	hs, err := procstats.Host(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

type statsEntry struct {
	Port        int32   `json:"port"`
	PID         int32   `json:"pid"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
}

func (s *Server) handleStatsAll(w http.ResponseWriter, r *http.Request) {
	all := s.botSup.StatsAll()
	out := make([]statsEntry, 0, len(all))
	for _, st := range all {
		ps, err := procstats.ForPID(r.Context(), int32(st.PID))
		if err != nil {
			continue
		}
		out = append(out, statsEntry{Port: int32(st.ProcessKey), PID: ps.PID, CPUPercent: ps.CPUPercent, MemoryBytes: ps.MemoryBytes})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	key, err := parseProcessKey(mux.Vars(r)["port"])
	if err != nil {
		http.Error(w, "invalid port", http.StatusBadRequest)
		return
	}
	st, ok := s.botSup.Stats(key)
	if !ok {
		http.Error(w, "no process for that port", http.StatusNotFound)
		return
	}
	ps, err := procstats.ForPID(r.Context(), int32(st.PID))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

type statusResponse struct {
	Status procstats.Status `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	key, err := parseProcessKey(mux.Vars(r)["port"])
	if err != nil {
		http.Error(w, "invalid port", http.StatusBadRequest)
		return
	}
	st, ok := s.botSup.Stats(key)
	if !ok {
		http.Error(w, "no process for that port", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: procstats.StatusForPID(r.Context(), int32(st.PID))})
}

func (s *Server) handleDownloadControllerLog(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.cfg.SC2WorkingDir, "controller.log"))
}

func (s *Server) handleDownloadBotLog(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, filepath.Join(s.cfg.BotsDir, name, name+"_stdout.log"))
}

func (s *Server) handleDownloadBotDataDir(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.serveZipOf(w, r, filepath.Join(s.cfg.BotsDir, name, "data"), "data")
}

func (s *Server) handleDownloadMap(w http.ResponseWriter, r *http.Request) {
	mapName := r.URL.Query().Get("name")
	http.ServeFile(w, r, filepath.Join(s.cfg.MapsDir, mapName))
}

type playerNumRequest struct {
	PlayerNum sc2types.PlayerNum `json:"player_num"`
}

func (s *Server) botDirForRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req playerNumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.PlayerNum != sc2types.PlayerOne && req.PlayerNum != sc2types.PlayerTwo) {
		http.Error(w, "invalid player_num", http.StatusBadRequest)
		return "", false
	}
	return filepath.Join(s.cfg.BotsDir, strconv.Itoa(int(req.PlayerNum))), true
}

func (s *Server) handleDownloadBot(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.botDirForRequest(w, r)
	if !ok {
		return
	}
	s.serveZipOf(w, r, dir, "")
}

func (s *Server) handleDownloadBotData(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.botDirForRequest(w, r)
	if !ok {
		return
	}
	s.serveZipOf(w, r, filepath.Join(dir, "data"), "data")
}

// serveZipOf packages every regular file under dir into a temporary zip
// (using artifact.BuildDir; the orchestrator packages match artifacts
// with artifact.Build) and streams it back.
func (s *Server) serveZipOf(w http.ResponseWriter, r *http.Request, dir, archivePrefix string) {
	tmp, err := ioutil.TempFile("", "download-*.zip")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	zw := zip.NewWriter(tmp)
	err = artifact.BuildDir(zw, dir, archivePrefix)
	closeErr := zw.Close()
	tmp.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if closeErr != nil {
		http.Error(w, closeErr.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	http.ServeFile(w, r, tmpPath)
}

func (s *Server) handleDownloadBotMD5(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.botDirForRequest(w, r)
	if !ok {
		return
	}
	s.serveMD5Of(w, dir)
}

func (s *Server) handleDownloadBotDataMD5(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.botDirForRequest(w, r)
	if !ok {
		return
	}
	s.serveMD5Of(w, filepath.Join(dir, "data"))
}

type md5Response struct {
	MD5 string `json:"md5"`
}

func (s *Server) serveMD5Of(w http.ResponseWriter, dir string) {
	h := md5.New()
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		_, _ = io.Copy(h, f)
		return nil
	})
	writeJSON(w, http.StatusOK, md5Response{MD5: hex.EncodeToString(h.Sum(nil))})
}

func parseProcessKey(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
