package invoice

import (
	"fmt"

	xerrors "billing-service/internal/pkg/errors"
)

type Action string

const (
	ActionConfirm      Action = "confirm"
	ActionCancel       Action = "cancel"
	ActionResetToDraft Action = "reset_to_draft"
)

// Paid invoices accept no action; payments move invoices to paid outside this table.
var transitions = map[Status]map[Action]Status{
	StatusDraft: {
		ActionConfirm: StatusConfirmed,
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionCancel:       StatusCancelled,
		ActionResetToDraft: StatusDraft,
	},
	StatusCancelled: {
		ActionResetToDraft: StatusDraft,
	},
	StatusPaid: {},
}

// ParseAction rejects anything outside confirm, cancel and reset_to_draft.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionConfirm, ActionCancel, ActionResetToDraft:
		return a, nil
	default:
		return "", fmt.Errorf("%w: invalid invoice action %q", xerrors.ErrInvalidInput, s)
	}
}

// Transition returns the status reached by applying action to current.
func Transition(current Status, action Action) (Status, error) {
	next, ok := transitions[current][action]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s invoice", xerrors.ErrInvalidTransition, action, current)
	}
	return next, nil
}
