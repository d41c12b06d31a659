package subscription

import (
	"fmt"

	xerrors "billing-service/internal/pkg/errors"
)

type Action string

const (
	ActionSendQuotation Action = "send_quotation"
	ActionConfirm       Action = "confirm"
	ActionCancel        Action = "cancel"
)

// transitions lists every permitted (current, action) pair. Cancelled has no
// outgoing edges.
var transitions = map[Status]map[Action]Status{
	StatusDraft: {
		ActionSendQuotation: StatusQuotationSent,
		ActionConfirm:       StatusConfirmed,
		ActionCancel:        StatusCancelled,
	},
	StatusQuotationSent: {
		ActionSendQuotation: StatusQuotationSent,
		ActionConfirm:       StatusConfirmed,
		ActionCancel:        StatusCancelled,
	},
	StatusConfirmed: {
		ActionCancel: StatusCancelled,
	},
	StatusCancelled: {},
}

var actionByTarget = map[Status]Action{
	StatusQuotationSent: ActionSendQuotation,
	StatusConfirmed:     ActionConfirm,
	StatusCancelled:     ActionCancel,
}

// ResolveAction turns the caller's {action, status} pair into an Action. A
// known action wins; otherwise the raw status is mapped to the action that
// produces it.
func ResolveAction(action, status string) (Action, error) {
	a := Action(action)
	switch a {
	case ActionSendQuotation, ActionConfirm, ActionCancel:
		return a, nil
	}

	if status == "" {
		return "", fmt.Errorf("%w: unknown action %q", xerrors.ErrInvalidInput, action)
	}

	a, ok := actionByTarget[Status(status)]
	if !ok {
		return "", fmt.Errorf("%w: status %q cannot be requested directly", xerrors.ErrInvalidInput, status)
	}
	return a, nil
}

// Transition returns the status reached by applying action to current.
func Transition(current Status, action Action) (Status, error) {
	edges, ok := transitions[current]
	if !ok {
		return "", fmt.Errorf("%w: unknown current status %q", xerrors.ErrInvalidTransition, current)
	}

	next, ok := edges[action]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s subscription", xerrors.ErrInvalidTransition, action, current)
	}
	return next, nil
}
