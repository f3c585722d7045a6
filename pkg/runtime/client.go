package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is a non-2xx response from the runtime
type StatusError struct {
	Call   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("runtime %s: status %d: %s", e.Call, e.Status, e.Body)
}

// Client calls the runtime's HTTP API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// State fetches a full snapshot
func (c *Client) State(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := c.get(ctx, "state", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Transport fetches the current transport tick
func (c *Client) Transport(ctx context.Context) (*Transport, error) {
	var tr Transport
	if err := c.get(ctx, "transport", &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Start starts a pattern, melody or sequence
func (c *Client) Start(ctx context.Context, kind Kind, name string) error {
	return c.post(ctx, "start", map[string]any{"kind": kind, "name": name})
}

// Stop stops a pattern, melody or sequence
func (c *Client) Stop(ctx context.Context, kind Kind, name string) error {
	return c.post(ctx, "stop", map[string]any{"kind": kind, "name": name})
}

// UpdatePattern replaces a pattern's steps in the running engine without touching source
func (c *Client) UpdatePattern(ctx context.Context, name string, update PatternUpdate) error {
	return c.post(ctx, "update_pattern", map[string]any{
		"name":           name,
		"pattern_string": update.PatternString,
		"loop_beats":     update.LoopBeats,
	})
}

// SetGroupParam sets a mixer parameter on a group
func (c *Client) SetGroupParam(ctx context.Context, path, param string, value float64) error {
	return c.post(ctx, "set_group_param", map[string]any{"path": path, "param": param, "value": value})
}

// MuteGroup mutes a group
func (c *Client) MuteGroup(ctx context.Context, path string) error {
	return c.post(ctx, "mute_group", map[string]any{"path": path})
}

// UnmuteGroup unmutes a group
func (c *Client) UnmuteGroup(ctx context.Context, path string) error {
	return c.post(ctx, "unmute_group", map[string]any{"path": path})
}

// SoloGroup solos a group
func (c *Client) SoloGroup(ctx context.Context, path string) error {
	return c.post(ctx, "solo_group", map[string]any{"path": path})
}

// UnsoloGroup clears a group's solo
func (c *Client) UnsoloGroup(ctx context.Context, path string) error {
	return c.post(ctx, "unsolo_group", map[string]any{"path": path})
}

// Seek moves the transport
func (c *Client) Seek(ctx context.Context, beat float64) error {
	return c.post(ctx, "seek", map[string]any{"beat": beat})
}

// TriggerVoice fires a voice once
func (c *Client) TriggerVoice(ctx context.Context, name string) error {
	return c.post(ctx, "trigger_voice", map[string]any{"name": name})
}

// NoteOn starts a note on a voice
func (c *Client) NoteOn(ctx context.Context, voice string, note int, velocity float64) error {
	return c.post(ctx, "note_on", map[string]any{"voice": voice, "note": note, "velocity": velocity})
}

// NoteOff releases a note on a voice
func (c *Client) NoteOff(ctx context.Context, voice string, note int) error {
	return c.post(ctx, "note_off", map[string]any{"voice": voice, "note": note})
}

func (c *Client) get(ctx context.Context, call string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/"+call, nil)
	if err != nil {
		return err
	}
	return c.do(call, req, out)
}

func (c *Client) post(ctx context.Context, call string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("runtime %s: %w", call, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+call, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(call, req, nil)
}

func (c *Client) do(call string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("runtime %s: %w", call, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Call: call, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("runtime %s: failed to decode response: %w", call, err)
	}
	return nil
}
