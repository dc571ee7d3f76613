// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package control

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/component"
)

// Client talks to a Server over its Unix socket.
type Client struct {
	http *http.Client
	path string
}

// NewClient creates a client for the socket at path.
func NewClient(path string, timeout time.Duration) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		},
	}
	return &Client{
		http: &http.Client{Transport: transport, Timeout: timeout},
		path: path,
	}
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

// Status calls GET /status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &resp)
	return resp, err
}

// Shutdown asks the server to shut down.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/shutdown", nil, &MessageResponse{})
}

// Components lists components matching pattern.
func (c *Client) Components(ctx context.Context, pattern string) ([]component.Status, error) {
	path := "/components"
	if pattern != "" {
		path += "?match=" + url.QueryEscape(pattern)
	}
	var resp []component.Status
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Action runs enable, disable, save or reload on one component.
func (c *Client) Action(ctx context.Context, id, action string) (ActionResponse, error) {
	var resp ActionResponse
	err := c.do(ctx, http.MethodPost, "/components/"+url.PathEscape(id)+"/"+action, nil, &resp)
	return resp, err
}

// SaveAll saves every enabled component.
func (c *Client) SaveAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/components/save", nil, &MessageResponse{})
}

// Exec runs an operator command and returns its output. A command failure
// is returned as an error carrying the command's code.
func (c *Client) Exec(ctx context.Context, input string) (string, error) {
	body, err := json.Marshal(ExecRequest{Input: input})
	if err != nil {
		return "", oops.Wrapf(err, "encode command request")
	}
	var resp ExecResponse
	if err := c.do(ctx, http.MethodPost, "/commands", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return resp.Output, oops.Code(resp.Code).Errorf("%s", resp.Error)
	}
	return resp.Output, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, reader)
	if err != nil {
		return oops.With("path", path).Wrapf(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return oops.Code("CONTROL_UNAVAILABLE").
			With("socket", c.path).
			Wrapf(err, "control socket request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return oops.With("status", resp.StatusCode).Errorf("control socket returned %s", resp.Status)
		}
		return oops.Code(e.Code).With("status", resp.StatusCode).Errorf("%s", e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oops.With("path", path).Wrapf(err, "decode response")
	}
	return nil
}
