// Package client is the HTTP client for the board API, used by the desktop
// shell and by the sync bridge.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/driftboard/driftboard/internal/board"
	"github.com/driftboard/driftboard/internal/bridge"
)

// Client talks to a board API server. It satisfies bridge.CanvasService and
// bridge.ViewService.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var (
	_ bridge.CanvasService = (*Client)(nil)
	_ bridge.ViewService   = (*Client)(nil)
)

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken swaps the bearer token after a login or refresh.
func (c *Client) SetToken(token string) {
	c.token = token
}

type canvasResponse struct {
	Objects []board.CanvasObject `json:"objects"`
	Rev     int64                `json:"rev"`
}

type putCanvasRequest struct {
	Objects []board.CanvasObject `json:"objects"`
	BaseRev int64                `json:"baseRev"`
}

type viewResponse struct {
	View board.ViewState `json:"view"`
	Rev  int64           `json:"rev"`
}

type putViewRequest struct {
	View    board.ViewState `json:"view"`
	BaseRev int64           `json:"baseRev"`
}

type revResponse struct {
	Rev int64 `json:"rev"`
}

func (c *Client) GetCanvas(ctx context.Context, projectID string) ([]board.CanvasObject, int64, error) {
	var resp canvasResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%s/canvas", projectID), nil, &resp)
	if err != nil {
		return nil, 0, err
	}
	return resp.Objects, resp.Rev, nil
}

func (c *Client) PutCanvas(ctx context.Context, projectID string, objects []board.CanvasObject, baseRev int64) (int64, error) {
	var resp revResponse
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/projects/%s/canvas", projectID),
		putCanvasRequest{Objects: objects, BaseRev: baseRev}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Rev, nil
}

func (c *Client) GetView(ctx context.Context, projectID string) (board.ViewState, int64, error) {
	var resp viewResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%s/view", projectID), nil, &resp)
	if err != nil {
		return board.ViewState{}, 0, err
	}
	return resp.View, resp.Rev, nil
}

func (c *Client) PutView(ctx context.Context, projectID string, view board.ViewState, baseRev int64) (int64, error) {
	var resp revResponse
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/projects/%s/view", projectID),
		putViewRequest{View: view, BaseRev: baseRev}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Rev, nil
}

// DeleteAsset soft-deletes the asset record server-side.
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/assets/%s", assetID), nil, nil)
}

// RestoreAsset undoes a soft delete.
func (c *Client) RestoreAsset(ctx context.Context, assetID string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/assets/%s/restore", assetID), nil, nil)
}

func (c *Client) GetAsset(ctx context.Context, assetID string) (board.Asset, error) {
	var asset board.Asset
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/assets/%s", assetID), nil, &asset)
	return asset, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		io.Copy(io.Discard, resp.Body)
		return bridge.ErrConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}
