// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads the controller's JSON configuration file the way
// cmd/ephemeral/main.go loads ephemeral's: read the raw bytes, unmarshal
// into a string-typed struct, then convert that into a TypedConfig with
// durations, ints and bools parsed out of their string representations
// (URLs are kept as strings).
// A viper overlay then lets every field be overridden by an environment
// variable, named per spec §6 ("{PREFIX}_HOST", "{PREFIX}_PORT", ...).
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config is the JSON-serializable, string-based configuration as read
// from disk.
type Config struct {
	Host            string `json:"host" mapstructure:"host"`
	Port            string `json:"port" mapstructure:"port"`
	ProxyHost       string `json:"proxy_host" mapstructure:"proxy_host"`
	ProxyPort       string `json:"proxy_port" mapstructure:"proxy_port"`

	PortRangeStart  string `json:"port_range_start" mapstructure:"port_range_start"`
	PortRangeEnd    string `json:"port_range_end" mapstructure:"port_range_end"`

	TimeoutSecs     string `json:"timeout_secs" mapstructure:"timeout_secs"`
	MaxGameTime     string `json:"max_game_time" mapstructure:"max_game_time"`
	DisableDebug    string `json:"disable_debug" mapstructure:"disable_debug"`
	RealTime        string `json:"real_time" mapstructure:"real_time"`
	ValidateRace    string `json:"validate_race" mapstructure:"validate_race"`

	BotsDir         string `json:"bots_dir" mapstructure:"bots_dir"`
	MapsDir         string `json:"maps_dir" mapstructure:"maps_dir"`
	ReplaysDir      string `json:"replays_dir" mapstructure:"replays_dir"`
	SC2WorkingDir   string `json:"sc2_working_dir" mapstructure:"sc2_working_dir"`
	PythonBin       string `json:"python_bin" mapstructure:"python_bin"`

	MatchSourceMode string `json:"match_source_mode" mapstructure:"match_source_mode"`
	MatchesFile     string `json:"matches_file" mapstructure:"matches_file"`
	ResultsFile     string `json:"results_file" mapstructure:"results_file"`
	UpstreamBaseURL string `json:"upstream_base_url" mapstructure:"upstream_base_url"`
	UpstreamToken   string `json:"upstream_token" mapstructure:"upstream_token"`

	CacheBaseURL    string `json:"cache_base_url" mapstructure:"cache_base_url"`

	RoundsPerRun    string `json:"rounds_per_run" mapstructure:"rounds_per_run"`
	Environment     string `json:"environment" mapstructure:"environment"`
}

// TypedConfig is Config with every field parsed into its native Go type.
type TypedConfig struct {
	Host      string
	Port      int
	ProxyHost string
	ProxyPort int

	PortRangeStart int32
	PortRangeEnd   int32

	TimeoutSecs  time.Duration
	MaxGameTime  uint32
	DisableDebug bool
	RealTime     bool
	ValidateRace bool

	BotsDir       string
	MapsDir       string
	ReplaysDir    string
	SC2WorkingDir string
	PythonBin     string

	MatchSourceMode string
	MatchesFile     string
	ResultsFile     string
	UpstreamBaseURL string
	UpstreamToken   string

	CacheBaseURL string

	RoundsPerRun int
	Environment  string
}

// ParseConfig reads and decodes a JSON config file from path, overlaying
// any environment variables recognized by viper.
func ParseConfig(path string) (*Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return overlayEnv(&cfg)
}

// overlayEnv feeds cfg through viper so that every field can be
// overridden by its environment variable equivalent, AC_ followed by the
// upper-cased JSON key (e.g. AC_HOST, AC_PORT, AC_PROXY_HOST,
// AC_PROXY_PORT), without touching the JSON file.
func overlayEnv(cfg *Config) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AC")
	v.AutomaticEnv()

	buf, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(buf)); err != nil {
		return nil, err
	}

	var merged Config
	if err := v.Unmarshal(&merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ToTypedConfig converts the string-based Config into its TypedConfig,
// mirroring SPDZEngineConfig.ToTypedConfig in the teacher's types package.
func (c *Config) ToTypedConfig() (*TypedConfig, error) {
	tc := &TypedConfig{
		Host:            c.Host,
		ProxyHost:       c.ProxyHost,
		BotsDir:         c.BotsDir,
		MapsDir:         c.MapsDir,
		ReplaysDir:      c.ReplaysDir,
		SC2WorkingDir:   c.SC2WorkingDir,
		PythonBin:       c.PythonBin,
		MatchSourceMode: c.MatchSourceMode,
		MatchesFile:     c.MatchesFile,
		ResultsFile:     c.ResultsFile,
		UpstreamBaseURL: c.UpstreamBaseURL,
		UpstreamToken:   c.UpstreamToken,
		CacheBaseURL:    c.CacheBaseURL,
		Environment:     c.Environment,
	}
	var err error
	if tc.Port, err = parseIntOrDefault(c.Port, 0); err != nil {
		return nil, err
	}
	if tc.ProxyPort, err = parseIntOrDefault(c.ProxyPort, 0); err != nil {
		return nil, err
	}
	ps, err := parseIntOrDefault(c.PortRangeStart, 9000)
	if err != nil {
		return nil, err
	}
	tc.PortRangeStart = int32(ps)
	pe, err := parseIntOrDefault(c.PortRangeEnd, 10000)
	if err != nil {
		return nil, err
	}
	tc.PortRangeEnd = int32(pe)

	secs, err := parseIntOrDefault(c.TimeoutSecs, 30)
	if err != nil {
		return nil, err
	}
	tc.TimeoutSecs = time.Duration(secs) * time.Second

	maxGameTime, err := parseIntOrDefault(c.MaxGameTime, 60486)
	if err != nil {
		return nil, err
	}
	tc.MaxGameTime = uint32(maxGameTime)

	tc.DisableDebug = parseBoolOrDefault(c.DisableDebug, true)
	tc.RealTime = parseBoolOrDefault(c.RealTime, false)
	tc.ValidateRace = parseBoolOrDefault(c.ValidateRace, false)

	rounds, err := parseIntOrDefault(c.RoundsPerRun, -1)
	if err != nil {
		return nil, err
	}
	tc.RoundsPerRun = rounds

	return tc, nil
}

func parseIntOrDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func parseBoolOrDefault(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
