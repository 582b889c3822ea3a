package slack

import (
	"fmt"
	"strconv"

	"github.com/approvalbot/approvalbot/internal/core"
)

// Action ids carried by the approval card buttons; interaction payloads echo
// them back.
const (
	ActionApprove = "approve_pr"
	ActionReject  = "reject_pr"
)

// Block Kit fragments, limited to what the approval flow renders.
type Block struct {
	Type     string      `json:"type"`
	BlockID  string      `json:"block_id,omitempty"`
	Text     *TextObject `json:"text,omitempty"`
	Elements []Button    `json:"elements,omitempty"`
}

type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Button struct {
	Type     string     `json:"type"`
	Text     TextObject `json:"text"`
	Style    string     `json:"style,omitempty"`
	ActionID string     `json:"action_id"`
	Value    string     `json:"value"`
}

// ApprovalCardBlocks builds the standard approval card: a summary section
// addressed to the approver, then approve/decline buttons whose value is the
// change request number.
func ApprovalCardBlocks(card core.ApprovalCard) []Block {
	value := strconv.Itoa(card.Number)
	return []Block{
		{
			Type: "section",
			Text: &TextObject{
				Type: "mrkdwn",
				Text: fmt.Sprintf("Hey %s, %s", card.Mention, card.Details),
			},
		},
		{
			Type:    "actions",
			BlockID: fmt.Sprintf("approval_%d", card.Number),
			Elements: []Button{
				{
					Type:     "button",
					Text:     TextObject{Type: "plain_text", Text: "✅ Approve"},
					Style:    "primary",
					ActionID: ActionApprove,
					Value:    value,
				},
				{
					Type:     "button",
					Text:     TextObject{Type: "plain_text", Text: "❌ Decline"},
					Style:    "danger",
					ActionID: ActionReject,
					Value:    value,
				},
			},
		},
	}
}

// ResolvedCardBlocks builds the terminal, button-free replacement card.
func ResolvedCardBlocks(actor string, outcome core.Outcome) []Block {
	text := fmt.Sprintf("❌ Declined by <@%s>", actor)
	if outcome == core.OutcomeApproved {
		text = fmt.Sprintf("✅ Approved by <@%s>", actor)
	}
	return []Block{
		{
			Type: "section",
			Text: &TextObject{Type: "mrkdwn", Text: text},
		},
	}
}
