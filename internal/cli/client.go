package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mlxhub/pkg/types"
)

// client is a thin HTTP wrapper over the hub control API.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *client) status() (types.StatusResponse, error) {
	var out types.StatusResponse
	resp, err := c.http.Get(c.baseURL + "/hub/status")
	if err != nil {
		return out, fmt.Errorf("failed to reach hub at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode status: %w", err)
	}
	return out, nil
}

// post issues a control action and returns its acknowledgement.
func (c *client) post(path string) (types.ActionResponse, error) {
	var out types.ActionResponse
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(nil))
	if err != nil {
		return out, fmt.Errorf("failed to reach hub at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// apiError decodes the hub's structured error payload when present.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e types.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		if e.Kind != "" {
			return fmt.Errorf("%s (%s)", e.Error, e.Kind)
		}
		return fmt.Errorf("%s", e.Error)
	}
	return fmt.Errorf("hub returned %s", resp.Status)
}
