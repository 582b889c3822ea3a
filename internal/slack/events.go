package slack

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Envelope types on the Events API callback.
const (
	CallbackURLVerification = "url_verification"
	CallbackEvent           = "event_callback"
)

// EventCallback is the outer envelope of an Events API delivery.
type EventCallback struct {
	Type      string     `json:"type"`
	Challenge string     `json:"challenge,omitempty"`
	Event     InnerEvent `json:"event"`
}

// InnerEvent is the wrapped event; only message events are acted on.
type InnerEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
	User    string `json:"user,omitempty"`
	BotID   string `json:"bot_id,omitempty"`
}

// Requester returns the acting identity: the posting user, else the posting
// bot, else "workflow" for automated messages carrying neither.
func (e InnerEvent) Requester() string {
	if e.User != "" {
		return e.User
	}
	if e.BotID != "" {
		return e.BotID
	}
	return "workflow"
}

// Interaction is the block_actions payload delivered when an approval card
// button is clicked. Interactivity requests carry it form-encoded in a
// "payload" field.
type Interaction struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// ParseInteraction decodes the interaction payload from a form-encoded
// request body.
func ParseInteraction(body []byte) (Interaction, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Interaction{}, fmt.Errorf("parse interaction form: %w", err)
	}
	raw := values.Get("payload")
	if raw == "" {
		return Interaction{}, fmt.Errorf("interaction payload missing")
	}

	var in Interaction
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return Interaction{}, fmt.Errorf("decode interaction payload: %w", err)
	}
	return in, nil
}
