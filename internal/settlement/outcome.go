package settlement

import (
	"context"

	"tesoreria/internal/core"
)

// Outcome is the result of confirming a session.
type Outcome int

const (
	OutcomeNothingToSettle Outcome = iota
	OutcomeDeclined
	OutcomeCreated
	OutcomeUpdated
	OutcomeCleared
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNothingToSettle:
		return "nothing_to_settle"
	case OutcomeDeclined:
		return "declined"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeCleared:
		return "cleared"
	}
	return "unknown"
}

// Saved reports whether the outcome changed the ledger.
func (o Outcome) Saved() bool {
	return o == OutcomeCreated || o == OutcomeUpdated || o == OutcomeCleared
}

// NoticeType classifies a user-facing notice.
type NoticeType string

const (
	NoticeInfo    NoticeType = "info"
	NoticeSuccess NoticeType = "success"
	NoticeWarning NoticeType = "warning"
)

// Notice is a user-facing message about an outcome.
type Notice struct {
	Type    NoticeType `json:"type"`
	Message string     `json:"message"`
}

const (
	MsgNothingToSettle = "No movements to save."
	MsgSaved           = "Cash closing saved."
	MsgDeclined        = "Cash closing cancelled."
)

// Notice returns the message to show for o.
func (o Outcome) Notice() Notice {
	switch o {
	case OutcomeNothingToSettle:
		return Notice{Type: NoticeInfo, Message: MsgNothingToSettle}
	case OutcomeDeclined:
		return Notice{Type: NoticeInfo, Message: MsgDeclined}
	default:
		return Notice{Type: NoticeSuccess, Message: MsgSaved}
	}
}

// Prompt is the confirmation shown before a closing is saved.
type Prompt struct {
	Title    string      `json:"title"`
	Message  string      `json:"message"`
	Date     core.Date   `json:"date"`
	Update   bool        `json:"update"`
	Incomes  int         `json:"incomes"`
	Expenses int         `json:"expenses"`
	Totals   core.Totals `json:"totals"`
}

// Prompter asks the user to approve a closing.
type Prompter interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, p Prompt) (bool, error)

func (f PrompterFunc) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// Answer is a Prompter that always gives the same answer.
type Answer bool

func (a Answer) Confirm(context.Context, Prompt) (bool, error) {
	return bool(a), nil
}
