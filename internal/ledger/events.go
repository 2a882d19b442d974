package ledger

import "contas/internal/core"

// Action names a kind of ledger mutation.
type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionDeleted     Action = "deleted"
	ActionPaidToggled Action = "paid_toggled"
)

// Event describes one completed mutation: what happened, the expenses it
// touched, and the month records whose totals changed.
type Event struct {
	Action   Action
	Expenses []core.Expense
	Months   []core.MonthKey
}
