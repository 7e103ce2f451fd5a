// Package upstream is the boundary to the authoritative attendance server.
// The agent never trusts its own clock for gating decisions; whatever this
// client returns (including structured rejections) wins over local state.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
)

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type sessionEnvelope struct {
	Session *models.Session `json:"session"`
	Reason  string          `json:"reason"`
}

type checkInResponse struct {
	Session *models.Session  `json:"session"`
	Roster  []models.Student `json:"roster"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Conflict *struct {
		SessionID string `json:"session_id"`
		ClassName string `json:"class_name"`
		Subject   string `json:"subject"`
	} `json:"conflict,omitempty"`
	Context *models.EarlyCheckoutContext `json:"context,omitempty"`
}

// CheckIn opens a session from a scanned token plus an advisory location.
// A structured conflict (teacher already active elsewhere) comes back as
// *models.ConflictError with the conflicting identity attached.
func (c *Client) CheckIn(ctx context.Context, token string, lat, lng *float64) (*models.Session, []models.Student, error) {
	const op = "upstream.Client.CheckIn"

	body := map[string]any{"token": token}
	if lat != nil && lng != nil {
		body["lat"] = *lat
		body["lng"] = *lng
	}

	var out checkInResponse
	if err := c.do(ctx, http.MethodPost, "/api/teacher/checkin", body, &out); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if out.Session == nil {
		return nil, nil, fmt.Errorf("%s: server returned no session", op)
	}

	return out.Session, out.Roster, nil
}

// CurrentSession returns the authoritative session, or (nil, reason, nil)
// when the server explicitly reports none.
func (c *Client) CurrentSession(ctx context.Context) (*models.Session, string, error) {
	const op = "upstream.Client.CurrentSession"

	var out sessionEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/teacher/session", nil, &out); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if out.Session == nil {
		reason := out.Reason
		if reason == "" {
			reason = "no active session"
		}
		return nil, reason, nil
	}

	return out.Session, "", nil
}

// Checkout ends the session. An early-checkout rejection is returned as
// *models.EarlyCheckoutError carrying the server's reason catalog.
func (c *Client) Checkout(ctx context.Context, sessionID, reason string) error {
	const op = "upstream.Client.Checkout"

	body := map[string]any{"session_id": sessionID}
	if reason != "" {
		body["reason"] = reason
	}

	if err := c.do(ctx, http.MethodPost, "/api/teacher/checkout", body, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SubmitRoster is an opaque pass-through; the agent does not interpret the
// attendance entries.
func (c *Client) SubmitRoster(ctx context.Context, sessionID string, entries []models.RosterEntry) error {
	const op = "upstream.Client.SubmitRoster"

	body := map[string]any{
		"session_id": sessionID,
		"entries":    entries,
	}

	if err := c.do(ctx, http.MethodPost, "/api/teacher/attendance", body, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	switch env.Error.Code {
	case "SESSION_CONFLICT":
		conflict := &models.ConflictError{Message: env.Error.Message}
		if env.Conflict != nil {
			conflict.SessionID = env.Conflict.SessionID
			conflict.ClassName = env.Conflict.ClassName
			conflict.Subject = env.Conflict.Subject
		}
		return conflict
	case "EARLY_CHECKOUT_REQUIRED":
		if env.Context == nil {
			return fmt.Errorf("early checkout rejection without context (status %d)", resp.StatusCode)
		}
		return &models.EarlyCheckoutError{Context: *env.Context}
	default:
		if env.Error.Message != "" {
			return fmt.Errorf("upstream: %s (status %d)", env.Error.Message, resp.StatusCode)
		}
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
}
