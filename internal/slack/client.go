// Package slack is a minimal Slack client covering the Web API methods and
// inbound payloads the approval flow needs.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/approvalbot/approvalbot/internal/core"
	"github.com/approvalbot/approvalbot/internal/telemetry"
)

const defaultBaseURL = "https://slack.com/api"

// Client calls the Slack Web API with a bot token. It implements core.Chat.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ core.Chat = (*Client)(nil)

func NewClient(token string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a Web API call the platform accepted but rejected
// (ok=false in the response envelope).
type APIError struct {
	Method string
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Reason)
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (c *Client) callAPI(ctx context.Context, method string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.IncSlackAPIError(method)
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		telemetry.IncSlackAPIError(method)
		return fmt.Errorf("%s HTTP %d: %s", method, resp.StatusCode, body)
	}

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !ar.OK {
		telemetry.IncSlackAPIError(method)
		return &APIError{Method: method, Reason: ar.Error}
	}
	return nil
}

type postMessagePayload struct {
	Channel  string  `json:"channel"`
	ThreadTS string  `json:"thread_ts,omitempty"`
	Text     string  `json:"text,omitempty"`
	Blocks   []Block `json:"blocks,omitempty"`
}

// PostMessage posts plain text, optionally inside a thread.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string) error {
	return c.callAPI(ctx, "chat.postMessage", postMessagePayload{
		Channel:  channel,
		ThreadTS: threadTS,
		Text:     text,
	})
}

// PostApprovalCard posts the approve/decline card for one change request.
func (c *Client) PostApprovalCard(ctx context.Context, channel, threadTS string, card core.ApprovalCard) error {
	return c.callAPI(ctx, "chat.postMessage", postMessagePayload{
		Channel:  channel,
		ThreadTS: threadTS,
		Blocks:   ApprovalCardBlocks(card),
	})
}

type postEphemeralPayload struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
}

// PostEphemeral posts text visible only to the named user.
func (c *Client) PostEphemeral(ctx context.Context, channel, user, text string) error {
	return c.callAPI(ctx, "chat.postEphemeral", postEphemeralPayload{
		Channel: channel,
		User:    user,
		Text:    text,
	})
}

type updatePayload struct {
	Channel string  `json:"channel"`
	TS      string  `json:"ts"`
	Blocks  []Block `json:"blocks"`
	Text    string  `json:"text,omitempty"`
}

// UpdateResolved rewrites an approval card in place to its terminal state.
// The replacement carries no buttons, so the card cannot be acted on again
// from the UI.
func (c *Client) UpdateResolved(ctx context.Context, channel, messageTS, actor string, outcome core.Outcome) error {
	return c.callAPI(ctx, "chat.update", updatePayload{
		Channel: channel,
		TS:      messageTS,
		Blocks:  ResolvedCardBlocks(actor, outcome),
	})
}
