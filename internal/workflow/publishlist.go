// Package workflow holds the request workflows the bot routes chat messages
// to. Each workflow declares a trigger keyword, extracts its fields, and
// turns them into a document change proposal plus an approval card.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/approvalbot/approvalbot/internal/core"
	"github.com/approvalbot/approvalbot/internal/telemetry"
)

// PublishList handles publish-to-production access requests: it sets the
// requested email's entry in the publish list document to the given client id
// and opens a change request for approval.
type PublishList struct {
	// Path of the publish list document in the repository.
	Path string
}

var _ core.Workflow = PublishList{}

const publishTrigger = "email id:"

func (PublishList) Name() string { return "publish_list" }

func (PublishList) Matches(text string) bool {
	return strings.Contains(strings.ToLower(text), publishTrigger)
}

func (p PublishList) Handle(ctx context.Context, event core.MessageEvent, svc core.Services) {
	fields := core.ParseFields(event.Text)
	email := fields.Email()
	clientID := fields.Get("clientid", "client")
	requestedBy := fields.Get("requestedby", "requestby")
	description := fields.Get("additionalcomments", "comments", "description")

	// Missing required fields are a silent no-op: a colon in an unrelated
	// message must not produce chat noise.
	if email == "" || clientID == "" {
		svc.Logger.Warn("publish list request missing email or client id")
		telemetry.IncWorkflow(p.Name(), "incomplete")
		return
	}

	requester := requestedBy
	if requester == "" {
		requester = event.User
	}

	prop := core.Proposal{
		Path:       p.Path,
		BranchName: "update/" + core.SafeBranchName(localPart(email), clientID),
		CommitMsg:  fmt.Sprintf("Add %s with client ID %s", email, clientID),
		Title:      fmt.Sprintf("Add client: %s [%s]", email, clientID),
		Body:       publishBody(email, clientID, requester, description),
		Mutate: func(doc core.Document) (core.Document, error) {
			doc[email] = []string{clientID}
			return doc, nil
		},
	}

	cr, err := svc.Proposer.Propose(ctx, prop)
	if err != nil {
		svc.Logger.Error("publish list change request failed", "email", email, "err", err)
		telemetry.IncWorkflow(p.Name(), "error")
		reportFailure(ctx, event.Channel, err, svc)
		return
	}

	card := core.ApprovalCard{
		Mention: svc.Mention(),
		Details: publishDetails(email, clientID, requestedBy, description, cr),
		Number:  cr.Number,
	}
	if err := svc.Chat.PostApprovalCard(ctx, event.Channel, event.ThreadTS, card); err != nil {
		svc.Logger.Error("approval card post failed", "number", cr.Number, "err", err)
		telemetry.IncWorkflow(p.Name(), "error")
		return
	}

	telemetry.IncWorkflow(p.Name(), "ok")
	svc.Logger.Info("publish list change request created", "number", cr.Number, "email", email)
}

func publishBody(email, clientID, requester, description string) string {
	body := fmt.Sprintf("Requested by %s via Slack.\n\n**Email:** %s\n**Client ID:** %s", requester, email, clientID)
	if description != "" {
		body += fmt.Sprintf("\n**Description:** %s", description)
	}
	return body
}

func publishDetails(email, clientID, requestedBy, description string, cr core.ChangeRequest) string {
	var b strings.Builder
	b.WriteString("a publish to production access request has been raised.\n\n")
	fmt.Fprintf(&b, "*Email:* `%s`\n", email)
	fmt.Fprintf(&b, "*Client ID:* `%s`\n", clientID)
	if requestedBy != "" {
		fmt.Fprintf(&b, "*Requested By:* %s\n", requestedBy)
	}
	if description != "" {
		fmt.Fprintf(&b, "*Additional Comments:* %s\n", description)
	}
	fmt.Fprintf(&b, "*PR:* <%s|View on GitHub>", cr.HTMLURL)
	return b.String()
}

func localPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// reportFailure surfaces a proposal failure to the requesting channel.
// Failures here are themselves best-effort: a dead chat transport is only
// logged.
func reportFailure(ctx context.Context, channel string, err error, svc core.Services) {
	text := fmt.Sprintf("❌ Something went wrong creating the PR: `%v`", err)
	if postErr := svc.Chat.PostMessage(ctx, channel, "", text); postErr != nil {
		svc.Logger.Error("failure notice post failed", "err", postErr)
	}
}
