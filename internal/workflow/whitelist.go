package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/approvalbot/approvalbot/internal/core"
	"github.com/approvalbot/approvalbot/internal/telemetry"
)

// Whitelist handles workflow whitelist requests: it appends an app id to a
// workflow's allowed list (if not already present) and opens a change request
// for approval.
type Whitelist struct {
	// Path of the whitelist document in the repository.
	Path string
}

var _ core.Workflow = Whitelist{}

const whitelistTrigger = "workflow id:"

func (Whitelist) Name() string { return "whitelist" }

func (Whitelist) Matches(text string) bool {
	return strings.Contains(strings.ToLower(text), whitelistTrigger)
}

func (w Whitelist) Handle(ctx context.Context, event core.MessageEvent, svc core.Services) {
	fields := core.ParseFields(event.Text)
	workflowID := fields.Get("workflowid", "workflow")
	appID := fields.Get("appid", "app")
	requestedBy := fields.Get("requestedby", "requestby")
	reason := fields.Get("reason", "description", "comments")

	if workflowID == "" || appID == "" {
		svc.Logger.Warn("whitelist request missing workflow id or app id")
		telemetry.IncWorkflow(w.Name(), "incomplete")
		return
	}

	requester := requestedBy
	if requester == "" {
		requester = event.User
	}

	prop := core.Proposal{
		Path:       w.Path,
		BranchName: "update/" + core.SafeBranchName("wf", workflowID, appID),
		CommitMsg:  fmt.Sprintf("Add %s to workflow %s", appID, workflowID),
		Title:      fmt.Sprintf("Add %s to workflow %s", appID, workflowID),
		Body:       whitelistBody(workflowID, appID, requester, reason),
		Mutate: func(doc core.Document) (core.Document, error) {
			doc.Append(workflowID, appID)
			return doc, nil
		},
	}

	cr, err := svc.Proposer.Propose(ctx, prop)
	if err != nil {
		svc.Logger.Error("whitelist change request failed", "workflow_id", workflowID, "app_id", appID, "err", err)
		telemetry.IncWorkflow(w.Name(), "error")
		reportFailure(ctx, event.Channel, err, svc)
		return
	}

	card := core.ApprovalCard{
		Mention: svc.Mention(),
		Details: whitelistDetails(workflowID, appID, requestedBy, reason, cr),
		Number:  cr.Number,
	}
	if err := svc.Chat.PostApprovalCard(ctx, event.Channel, event.ThreadTS, card); err != nil {
		svc.Logger.Error("approval card post failed", "number", cr.Number, "err", err)
		telemetry.IncWorkflow(w.Name(), "error")
		return
	}

	telemetry.IncWorkflow(w.Name(), "ok")
	svc.Logger.Info("whitelist change request created", "number", cr.Number, "workflow_id", workflowID, "app_id", appID)
}

func whitelistBody(workflowID, appID, requester, reason string) string {
	body := fmt.Sprintf("Requested by %s via Slack.\n\n**Workflow ID:** %s\n**App ID:** %s", requester, workflowID, appID)
	if reason != "" {
		body += fmt.Sprintf("\n**Reason:** %s", reason)
	}
	return body
}

func whitelistDetails(workflowID, appID, requestedBy, reason string, cr core.ChangeRequest) string {
	var b strings.Builder
	b.WriteString("a workflow whitelist request has been raised.\n\n")
	fmt.Fprintf(&b, "*Workflow ID:* `%s`\n", workflowID)
	fmt.Fprintf(&b, "*App ID:* `%s`\n", appID)
	if requestedBy != "" {
		fmt.Fprintf(&b, "*Requested By:* %s\n", requestedBy)
	}
	if reason != "" {
		fmt.Fprintf(&b, "*Reason:* %s\n", reason)
	}
	fmt.Fprintf(&b, "*PR:* <%s|View on GitHub>", cr.HTMLURL)
	return b.String()
}
