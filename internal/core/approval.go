package core

import (
	"context"
	"fmt"
)

// Action is the approver's choice on an approval card.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
)

// Outcome is the terminal result of a resolved change request.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDeclined Outcome = "declined"
)

// Gate authorizes and executes the resolution of pending change requests.
type Gate struct {
	host     RepoHost
	approver string
}

// NewGate builds a Gate restricted to the given approver identity. An empty
// approver means anyone may resolve.
func NewGate(host RepoHost, approver string) *Gate {
	return &Gate{host: host, approver: approver}
}

// Authorized reports whether actor may resolve change requests.
func (g *Gate) Authorized(actor string) bool {
	return g.approver == "" || actor == g.approver
}

// Resolve merges (approve) or closes (decline) an open change request.
// Authorization is checked before anything touches the host; an unauthorized
// actor never mutates the change request. The open-state check makes a second
// click on an already-resolved card fail with InvalidStateError instead of
// attempting a second merge or close.
func (g *Gate) Resolve(ctx context.Context, number int, actor string, action Action) (Outcome, error) {
	if !g.Authorized(actor) {
		return "", &UnauthorizedError{Actor: actor}
	}

	cr, err := g.host.GetChange(ctx, number)
	if err != nil {
		return "", MapHostError(err)
	}
	if cr.State != StateOpen {
		return "", &InvalidStateError{Number: number, State: cr.State}
	}

	switch action {
	case ActionApprove:
		if err := g.host.MergeChange(ctx, number, cr.Title); err != nil {
			return "", MapHostError(err)
		}
		return OutcomeApproved, nil
	case ActionDecline:
		if err := g.host.CloseChange(ctx, number); err != nil {
			return "", MapHostError(err)
		}
		return OutcomeDeclined, nil
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}
