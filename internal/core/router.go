package core

import (
	"context"
	"log/slog"
)

// MessageEvent is one inbound chat message.
type MessageEvent struct {
	Text     string
	Channel  string
	ThreadTS string
	User     string
}

// ApprovalCard carries the approve/decline controls for one change request.
type ApprovalCard struct {
	Mention string
	Details string
	Number  int
}

// Chat is the slice of the chat transport the bot needs. Implementations post
// into the originating conversation; PostEphemeral is visible only to the
// named user.
type Chat interface {
	PostMessage(ctx context.Context, channel, threadTS, text string) error
	PostApprovalCard(ctx context.Context, channel, threadTS string, card ApprovalCard) error
	PostEphemeral(ctx context.Context, channel, user, text string) error
	// UpdateResolved rewrites an approval card in place to its terminal,
	// button-free state naming the actor and outcome.
	UpdateResolved(ctx context.Context, channel, messageTS, actor string, outcome Outcome) error
}

// Services bundles the dependency-injected handles a workflow needs.
type Services struct {
	Chat     Chat
	Proposer *Proposer
	Logger   *slog.Logger
	Approver string
}

// Mention renders the configured approver as a chat mention, or "admin" when
// no approver is configured.
func (s Services) Mention() string {
	if s.Approver == "" {
		return "admin"
	}
	return "<@" + s.Approver + ">"
}

// Workflow handles one class of request message.
type Workflow interface {
	Name() string
	// Matches reports whether this workflow's trigger keyword appears in the
	// message text (case-insensitive substring).
	Matches(text string) bool
	Handle(ctx context.Context, event MessageEvent, svc Services)
}

// Router dispatches an inbound message to the first workflow whose trigger
// matches. Registration order is the tie-breaker and is stable: workflows are
// tried exactly in the order passed to NewRouter.
type Router struct {
	workflows []Workflow
	logger    *slog.Logger
}

func NewRouter(logger *slog.Logger, workflows ...Workflow) *Router {
	return &Router{workflows: workflows, logger: logger}
}

// Dispatch routes the event and returns the handling workflow's name, or ""
// when no workflow matched and nothing was done.
func (r *Router) Dispatch(ctx context.Context, event MessageEvent, svc Services) string {
	for _, w := range r.workflows {
		if w.Matches(event.Text) {
			r.logger.Info("routing message", "workflow", w.Name(), "channel", event.Channel)
			w.Handle(ctx, event, svc)
			return w.Name()
		}
	}
	return ""
}
