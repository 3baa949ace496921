// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package cache implements a client for the bot/map cache service: a
// download proxy that fetches and memoizes a URL by its md5 hash, and
// an upload endpoint for the orchestrator's own artifacts (spec §6's
// "cache/download endpoints").
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/asaskevich/govalidator"
)

// Client talks to the cache service.
type Client struct {
	baseURL    url.URL
	HTTPClient *http.Client
}

// NewClient returns a Client targeting the cache service at u.
func NewClient(u url.URL) (*Client, error) {
	if !govalidator.IsURL(u.String()) {
		return nil, errors.New("invalid cache url")
	}
	return &Client{baseURL: u, HTTPClient: &http.Client{}}, nil
}

type downloadRequest struct {
	UniqueKey string `json:"uniqueKey"`
	URL       string `json:"url"`
	MD5Hash   string `json:"md5hash"`
}

// Download asks the cache to fetch sourceURL (verifying it against
// md5Hash and memoizing it under uniqueKey) and returns its bytes.
func (c *Client) Download(uniqueKey, sourceURL, md5Hash string) ([]byte, error) {
	body, err := json.Marshal(downloadRequest{UniqueKey: uniqueKey, URL: sourceURL, MD5Hash: md5Hash})
	if err != nil {
		return nil, err
	}
	downloadURL := c.baseURL
	downloadURL.Path += "/download"
	req, err := http.NewRequest(http.MethodPost, downloadURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("communication with cache service failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := ioutil.ReadAll(resp.Body)
		return nil, fmt.Errorf("cache download failed with status #%d: %s", resp.StatusCode, string(b))
	}
	return ioutil.ReadAll(resp.Body)
}

// Upload stores data under uniqueKey in the cache service.
func (c *Client) Upload(uniqueKey string, data io.Reader) error {
	uploadURL := c.baseURL
	uploadURL.Path += "/upload"
	values := url.Values{}
	values.Add("uniqueKey", uniqueKey)
	uploadURL.RawQuery = values.Encode()

	req, err := http.NewRequest(http.MethodPost, uploadURL.String(), data)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("communication with cache service failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := ioutil.ReadAll(resp.Body)
		return fmt.Errorf("cache upload failed with status #%d: %s", resp.StatusCode, string(b))
	}
	return nil
}
