package services

import (
	"context"
	"fmt"
	"log/slog"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/ledger"
)

// LedgerService orchestrates ledger operations and change-event publishing.
// The store mutation always runs first; a failed publish is logged and never
// fails the user's action.
type LedgerService struct {
	store      *ledger.Store
	amqpClient *amqp.Client
}

func NewLedgerService(store *ledger.Store, amqpClient *amqp.Client) *LedgerService {
	s := &LedgerService{
		store:      store,
		amqpClient: amqpClient,
	}
	// Publishing rides the store's own notification: the event already
	// names the month records that actually changed, which the expense
	// dates alone cannot reconstruct (an update never re-files by date).
	store.Subscribe(s.publishEvent)
	return s
}

// AddExpense files a new expense (or installment plan) and publishes the
// created event.
func (s *LedgerService) AddExpense(ctx context.Context, draft core.Draft) ([]core.Expense, error) {
	created, err := s.store.AddExpense(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("add expense: %w", err)
	}
	return created, nil
}

// UpdateExpense replaces a stored expense in place. Unknown IDs are a
// silent no-op reported as found=false.
func (s *LedgerService) UpdateExpense(ctx context.Context, e core.Expense) (bool, error) {
	found, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return false, fmt.Errorf("update expense: %w", err)
	}
	return found, nil
}

// DeleteExpense removes one expense or a whole installment group.
func (s *LedgerService) DeleteExpense(ctx context.Context, id string, deleteAll bool) ([]core.Expense, error) {
	removed, err := s.store.DeleteExpense(ctx, id, deleteAll)
	if err != nil {
		return nil, fmt.Errorf("delete expense: %w", err)
	}
	return removed, nil
}

// TogglePaidStatus flips an expense's paid flag.
func (s *LedgerService) TogglePaidStatus(ctx context.Context, id string) (*core.Expense, error) {
	toggled, err := s.store.TogglePaidStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("toggle paid status: %w", err)
	}
	return toggled, nil
}

// SetCurrentMonth focuses the given month.
func (s *LedgerService) SetCurrentMonth(ctx context.Context, month core.MonthKey) error {
	return s.store.SetCurrentMonth(ctx, month)
}

// CurrentMonth returns the focused month.
func (s *LedgerService) CurrentMonth() core.MonthKey {
	return s.store.CurrentMonth()
}

// MonthRecord returns a copy of one month's record.
func (s *LedgerService) MonthRecord(month core.MonthKey) *core.MonthRecord {
	return s.store.MonthRecord(month)
}

// Snapshot returns a deep copy of the whole mapping.
func (s *LedgerService) Snapshot() core.Snapshot {
	return s.store.Snapshot()
}

// OverdueExpenses returns unpaid expenses from strictly earlier months.
func (s *LedgerService) OverdueExpenses() []core.Expense {
	return s.store.OverdueExpenses()
}

// ExpensesByCategory sums one month's expenses per category.
func (s *LedgerService) ExpensesByCategory(month core.MonthKey) core.CategorySummary {
	return s.store.ExpensesByCategory(month)
}

// Subscribe registers an observer on the underlying store.
func (s *LedgerService) Subscribe(fn func(ledger.Event)) {
	s.store.Subscribe(fn)
}

func (s *LedgerService) publishEvent(ev ledger.Event) {
	if s.amqpClient == nil {
		slog.Debug("AMQP client not available, skipping event publish", "action", ev.Action)
		return
	}

	msg := eventMessage(ev)
	if err := s.amqpClient.PublishLedgerEvent(context.Background(), msg); err != nil {
		slog.Error("Failed to publish ledger event",
			"action", ev.Action, "expense_id", msg.ExpenseID, "error", err)
		// Don't fail the request - the ledger change is already persisted
	}
}

// eventMessage converts a store event into its wire form. Months come from
// the event, naming the records whose totals changed.
func eventMessage(ev ledger.Event) *amqp.LedgerEventMessage {
	months := make([]string, 0, len(ev.Months))
	for _, m := range ev.Months {
		months = append(months, string(m))
	}

	var expenseID, groupID string
	if len(ev.Expenses) > 0 {
		expenseID = ev.Expenses[0].ID
		groupID = ev.Expenses[0].InstallmentGroupID
	}

	return amqp.NewLedgerEventMessage(string(ev.Action), expenseID, groupID, months)
}

// Close releases the AMQP connection, if any.
func (s *LedgerService) Close() error {
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			return fmt.Errorf("close amqp client: %w", err)
		}
	}
	return nil
}
