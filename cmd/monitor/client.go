package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"enterprise_sim/internal/domain"
)

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			// decompositions wait on the advisory service
			Timeout: 2 * time.Minute,
		},
	}
}

type createOutcomeResponse struct {
	Outcome domain.Outcome `json:"outcome"`
	Tasks   []domain.Task  `json:"tasks"`
}

func (c *client) snapshot() (domain.Snapshot, error) {
	var out domain.Snapshot
	err := c.getJSON("/snapshot", &out)
	return out, err
}

func (c *client) createOutcome(title, description string) (createOutcomeResponse, error) {
	var out createOutcomeResponse
	err := c.doJSON(http.MethodPost, "/outcomes", map[string]any{
		"title":       title,
		"description": description,
	}, &out)
	return out, err
}

func (c *client) toggle() (bool, error) {
	var out struct {
		Simulating bool `json:"simulating"`
	}
	err := c.doJSON(http.MethodPost, "/simulation/toggle", nil, &out)
	return out.Simulating, err
}

func (c *client) reset() error {
	return c.doJSON(http.MethodPost, "/reset", nil, nil)
}

func (c *client) deleteTask(id string) error {
	return c.doJSON(http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *client) dismissPrediction(id string) error {
	return c.doJSON(http.MethodDelete, "/predictions/"+url.PathEscape(id), nil, nil)
}

func (c *client) waitHealth(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/healthz", nil)
		if err == nil {
			resp, err := c.http.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode < 300 {
					return nil
				}
			}
		}
		time.Sleep(400 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for /healthz")
}

func (c *client) getJSON(path string, out any) error {
	return c.doJSON(http.MethodGet, path, nil, out)
}

func (c *client) doJSON(method, path string, in any, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// parseOutcomeInput splits "title | constraints".
func parseOutcomeInput(input string) (title, description string) {
	title, description, _ = strings.Cut(input, "|")
	return strings.TrimSpace(title), strings.TrimSpace(description)
}
