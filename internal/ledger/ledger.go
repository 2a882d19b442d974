// Package ledger owns the month-keyed expense state.
//
// The store holds the mapping of month key to month record, keeps the derived
// totals consistent after every mutation, and writes the whole snapshot to
// its SnapshotStore on every change. There is exactly one logical writer; the
// mutex only guards against accidental concurrent use of the same process.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"contas/internal/core"
	"contas/internal/storage"
)

// Store is the ledger: all month records, the focused month, and the
// persistence hook. All operations run to completion synchronously.
type Store struct {
	mu        sync.Mutex
	months    core.Snapshot
	index     map[string]core.MonthKey // expense id -> month holding it
	current   core.MonthKey
	snapshots storage.SnapshotStore
	now       func() time.Time
	observers []func(Event)
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the real-time clock. Tests use it to pin "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open seeds a Store from the snapshot store. An absent or unreadable slot
// falls back to an empty ledger; the error is logged, never surfaced.
func Open(ctx context.Context, snapshots storage.SnapshotStore, opts ...Option) (*Store, error) {
	s := &Store{
		months:    core.Snapshot{},
		index:     map[string]core.MonthKey{},
		snapshots: snapshots,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := snapshots.Load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Snapshot load failed, starting empty", "error", err)
		snap = core.Snapshot{}
	}
	s.months = snap
	for key, rec := range s.months {
		if rec == nil {
			// A backend may hand back a partially corrupt mapping.
			rec = core.NewMonthRecord()
			s.months[key] = rec
		}
		rec.Recompute()
		for _, e := range rec.Expenses {
			s.index[e.ID] = key
		}
	}

	s.current = core.MonthKeyOf(s.now())
	s.ensureMonth(s.current)

	slog.InfoContext(ctx, "Ledger opened",
		"months", len(s.months),
		"expenses", len(s.index),
		"current_month", s.current)
	return s, nil
}

// Subscribe registers an observer notified after every successful mutation.
// Observers run synchronously on the mutating goroutine and must be fast.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// CurrentMonth returns the month the view is focused on.
func (s *Store) CurrentMonth() core.MonthKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetCurrentMonth focuses a month, lazily creating its empty record.
func (s *Store) SetCurrentMonth(ctx context.Context, month core.MonthKey) error {
	if !month.Valid() {
		return fmt.Errorf("invalid month key: %s", month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := s.ensureMonth(month)
	s.current = month
	if created {
		return s.persist(ctx)
	}
	return nil
}

// AddExpense validates the draft and files the resulting expense(s).
//
// An installment plan with more than one installment fans out into one
// expense per installment: the amount is split into integer cents with the
// last installment absorbing the division remainder, the date advances one
// whole month per step, and only the first installment inherits the draft's
// paid flag. Each generated expense lands in the record of its own computed
// month. A plain expense goes into the currently focused month.
//
// Returns the created expenses in installment order.
func (s *Store) AddExpense(ctx context.Context, draft core.Draft) ([]core.Expense, error) {
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("validate draft: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created []core.Expense
	touched := map[core.MonthKey]struct{}{}

	if draft.IsInstallment && draft.TotalInstallments > 1 {
		groupID := uuid.NewString()
		parts := draft.Amount.Split(draft.TotalInstallments)
		for i := 0; i < draft.TotalInstallments; i++ {
			date := draft.Date.AddMonths(i)
			month := core.MonthKeyFor(date)
			e := core.Expense{
				ID:                 uuid.NewString(),
				Name:               draft.Name,
				Amount:             parts[i],
				Date:               date,
				Category:           draft.Category,
				IsPaid:             i == 0 && draft.IsPaid, // only the first installment may start paid
				IsInstallment:      true,
				TotalInstallments:  draft.TotalInstallments,
				CurrentInstallment: i + 1,
				InstallmentGroupID: groupID,
			}
			s.ensureMonth(month)
			s.months[month].Expenses = append(s.months[month].Expenses, e)
			s.index[e.ID] = month
			touched[month] = struct{}{}
			created = append(created, e)
		}
	} else {
		e := core.Expense{
			ID:                 uuid.NewString(),
			Name:               draft.Name,
			Amount:             draft.Amount,
			Date:               draft.Date,
			Category:           draft.Category,
			IsPaid:             draft.IsPaid,
			IsInstallment:      draft.IsInstallment,
			TotalInstallments:  draft.TotalInstallments,
			CurrentInstallment: 1,
		}
		month := s.current
		s.ensureMonth(month)
		s.months[month].Expenses = append(s.months[month].Expenses, e)
		s.index[e.ID] = month
		touched[month] = struct{}{}
		created = append(created, e)
	}

	s.recompute(touched)
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	s.notify(Event{Action: ActionCreated, Expenses: created, Months: monthList(touched)})
	return created, nil
}

// UpdateExpense replaces the stored expense carrying the same ID, preserving
// its position within whatever month record currently holds it. The expense
// is never re-filed when its date moved to another month; the month it was
// filed under stays fixed. Returns false when the ID is unknown.
func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	month, ok := s.index[e.ID]
	if !ok {
		return false, nil
	}
	rec := s.months[month]
	for i := range rec.Expenses {
		if rec.Expenses[i].ID != e.ID {
			continue
		}
		// Installment bookkeeping is assigned at creation and stays
		// immutable; an update carries only the editable fields.
		cur := rec.Expenses[i]
		e.IsInstallment = cur.IsInstallment
		e.TotalInstallments = cur.TotalInstallments
		e.CurrentInstallment = cur.CurrentInstallment
		e.InstallmentGroupID = cur.InstallmentGroupID
		if err := e.Validate(); err != nil {
			return false, fmt.Errorf("validate expense: %w", err)
		}
		rec.Expenses[i] = e
		break
	}
	rec.Recompute()
	if err := s.persist(ctx); err != nil {
		return false, err
	}
	s.notify(Event{Action: ActionUpdated, Expenses: []core.Expense{e}, Months: []core.MonthKey{month}})
	return true, nil
}

// DeleteExpense removes the expense with the given ID. With deleteAll set
// and the target belonging to an installment plan, every sibling sharing the
// plan's group ID is removed across all months. Unknown IDs are a no-op.
// Returns the removed expenses.
func (s *Store) DeleteExpense(ctx context.Context, id string, deleteAll bool) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	month, ok := s.index[id]
	if !ok {
		return nil, nil
	}

	var groupID string
	if deleteAll {
		for _, e := range s.months[month].Expenses {
			if e.ID == id {
				groupID = e.InstallmentGroupID
				break
			}
		}
	}

	var removed []core.Expense
	touched := map[core.MonthKey]struct{}{}
	remove := func(key core.MonthKey, match func(core.Expense) bool) {
		rec := s.months[key]
		kept := rec.Expenses[:0]
		for _, e := range rec.Expenses {
			if match(e) {
				removed = append(removed, e)
				delete(s.index, e.ID)
				touched[key] = struct{}{}
			} else {
				kept = append(kept, e)
			}
		}
		rec.Expenses = kept
	}

	if deleteAll && groupID != "" {
		for key := range s.months {
			remove(key, func(e core.Expense) bool { return e.InstallmentGroupID == groupID })
		}
	} else {
		remove(month, func(e core.Expense) bool { return e.ID == id })
	}

	if len(removed) == 0 {
		return nil, nil
	}
	s.recompute(touched)
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	s.notify(Event{Action: ActionDeleted, Expenses: removed, Months: monthList(touched)})
	return removed, nil
}

// TogglePaidStatus flips the paid flag of the expense with the given ID and
// refreshes its month's balance. Unknown IDs are a no-op; the returned
// pointer is nil in that case.
func (s *Store) TogglePaidStatus(ctx context.Context, id string) (*core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	month, ok := s.index[id]
	if !ok {
		return nil, nil
	}
	rec := s.months[month]
	var toggled *core.Expense
	for i := range rec.Expenses {
		if rec.Expenses[i].ID == id {
			rec.Expenses[i].IsPaid = !rec.Expenses[i].IsPaid
			e := rec.Expenses[i]
			toggled = &e
			break
		}
	}
	if toggled == nil {
		return nil, nil
	}
	rec.Recompute()
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	s.notify(Event{Action: ActionPaidToggled, Expenses: []core.Expense{*toggled}, Months: []core.MonthKey{month}})
	return toggled, nil
}

// OverdueExpenses returns every unpaid expense living in a month strictly
// earlier than the current real-world month. Order is unspecified.
func (s *Store) OverdueExpenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowKey := core.MonthKeyOf(s.now())
	var overdue []core.Expense
	for key, rec := range s.months {
		if !key.Before(nowKey) {
			continue
		}
		for _, e := range rec.Expenses {
			if !e.IsPaid {
				overdue = append(overdue, e)
			}
		}
	}
	return overdue
}

// ExpensesByCategory sums the month's expenses per category. Every fixed
// category appears in the result, zero when unused or when the month has no
// record at all.
func (s *Store) ExpensesByCategory(month core.MonthKey) core.CategorySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := core.NewCategorySummary()
	rec, ok := s.months[month]
	if !ok {
		return summary
	}
	for _, e := range rec.Expenses {
		summary[e.Category] = summary[e.Category].Add(e.Amount)
	}
	return summary
}

// MonthRecord returns a copy of the record for the given month, or an empty
// record when none exists yet. Reading never creates a record.
func (s *Store) MonthRecord(month core.MonthKey) *core.MonthRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.months[month]
	if !ok {
		return core.NewMonthRecord()
	}
	return rec.Clone()
}

// Snapshot returns a deep copy of the whole month mapping.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.months.Clone()
}

// ensureMonth lazily creates an empty record. Reports whether it did.
func (s *Store) ensureMonth(key core.MonthKey) bool {
	if _, ok := s.months[key]; ok {
		return false
	}
	s.months[key] = core.NewMonthRecord()
	return true
}

func (s *Store) recompute(touched map[core.MonthKey]struct{}) {
	for key := range touched {
		s.months[key].Recompute()
	}
}

// persist writes the full snapshot. Callers hold the mutex.
func (s *Store) persist(ctx context.Context) error {
	if err := s.snapshots.Save(ctx, s.months); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// notify runs observers. Callers hold the mutex; observers get value copies.
func (s *Store) notify(ev Event) {
	for _, fn := range s.observers {
		fn(ev)
	}
}

func monthList(set map[core.MonthKey]struct{}) []core.MonthKey {
	out := make([]core.MonthKey, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	return out
}
