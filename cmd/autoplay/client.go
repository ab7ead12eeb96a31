package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/service"
)

// Client talks to the game REST API for one session.
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

// CreateSession creates a session and makes it the client's current one.
func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

// GetSession loads the current session.
func (c *Client) GetSession(ctx context.Context) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodGet, c.sessionPath(""), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StartRound deals a new board.
func (c *Client) StartRound(ctx context.Context, difficulty string) (*service.RoundView, error) {
	var round service.RoundView
	err := c.do(ctx, http.MethodPost, c.sessionPath("/round/start"), map[string]string{"difficulty": difficulty}, &round)
	return &round, err
}

// Round returns the current round.
func (c *Client) Round(ctx context.Context) (*service.RoundView, error) {
	var round service.RoundView
	err := c.do(ctx, http.MethodGet, c.sessionPath("/round"), nil, &round)
	return &round, err
}

// Reveal flips one card.
func (c *Client) Reveal(ctx context.Context, cardID string) (*service.RevealView, error) {
	var res service.RevealView
	err := c.do(ctx, http.MethodPost, c.sessionPath("/round/reveal"), map[string]string{"card_id": cardID}, &res)
	return &res, err
}
