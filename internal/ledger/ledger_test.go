package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"contas/internal/core"
	"contas/internal/storage"
)

// fixedNow pins "today" to 2024-03-15 so overdue detection is deterministic.
var fixedNow = func() time.Time {
	return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
}

func newTestStore(t *testing.T) (*Store, *storage.MemoryStore) {
	t.Helper()
	mem := storage.NewMemoryStore()
	s, err := Open(context.Background(), mem, WithClock(fixedNow))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s, mem
}

func rentDraft() core.Draft {
	return core.Draft{
		Name:              "Rent",
		Amount:            core.Money{Cents: 120000},
		Date:              core.NewDate(2024, 3, 5),
		Category:          core.CategoryHousing,
		TotalInstallments: 1,
	}
}

func TestAddExpenseSingle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.AddExpense(ctx, rentDraft())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 created expense, got %d", len(created))
	}
	if created[0].ID == "" {
		t.Fatalf("expected assigned id")
	}
	if created[0].InstallmentGroupID != "" {
		t.Fatalf("non-installment expense must not carry a group id")
	}

	rec := s.MonthRecord("2024-03")
	if len(rec.Expenses) != 1 {
		t.Fatalf("expected 1 expense in 2024-03, got %d", len(rec.Expenses))
	}
	if rec.TotalToPay.Cents != 120000 || rec.BalanceToPay.Cents != 120000 {
		t.Fatalf("totals expected 120000/120000, got %d/%d", rec.TotalToPay.Cents, rec.BalanceToPay.Cents)
	}
}

func TestAddExpenseValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	bad := rentDraft()
	bad.Amount = core.Money{Cents: 0}
	if _, err := s.AddExpense(ctx, bad); err == nil {
		t.Fatalf("expected validation error for zero amount")
	}

	bad = rentDraft()
	bad.Category = "snacks"
	if _, err := s.AddExpense(ctx, bad); err == nil {
		t.Fatalf("expected validation error for unknown category")
	}

	bad = rentDraft()
	bad.TotalInstallments = 0
	if _, err := s.AddExpense(ctx, bad); err == nil {
		t.Fatalf("expected validation error for zero installments")
	}
}

func TestAddInstallmentFanOut(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.AddExpense(ctx, core.Draft{
		Name:              "TV",
		Amount:            core.Money{Cents: 30000},
		Date:              core.NewDate(2024, 1, 15),
		Category:          core.CategoryShopping,
		IsPaid:            true,
		IsInstallment:     true,
		TotalInstallments: 3,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 expenses, got %d", len(created))
	}

	group := created[0].InstallmentGroupID
	if group == "" {
		t.Fatalf("expected shared group id")
	}
	wantMonths := []core.MonthKey{"2024-01", "2024-02", "2024-03"}
	var sum int64
	for i, e := range created {
		if e.Amount.Cents != 10000 {
			t.Errorf("installment %d: expected 10000 cents, got %d", i+1, e.Amount.Cents)
		}
		sum += e.Amount.Cents
		if e.CurrentInstallment != i+1 {
			t.Errorf("installment %d: currentInstallment = %d", i+1, e.CurrentInstallment)
		}
		if e.InstallmentGroupID != group {
			t.Errorf("installment %d: group id differs", i+1)
		}
		if got := core.MonthKeyFor(e.Date); got != wantMonths[i] {
			t.Errorf("installment %d: expected month %s, got %s", i+1, wantMonths[i], got)
		}
		rec := s.MonthRecord(wantMonths[i])
		if len(rec.Expenses) != 1 || rec.TotalToPay.Cents != 10000 {
			t.Errorf("month %s: expected one 10000-cent expense, got %+v", wantMonths[i], rec)
		}
	}
	if sum != 30000 {
		t.Fatalf("installments sum to %d, want 30000", sum)
	}

	// Only the first installment inherits the draft's paid flag.
	if !created[0].IsPaid || created[1].IsPaid || created[2].IsPaid {
		t.Fatalf("paid flags expected true,false,false; got %v,%v,%v",
			created[0].IsPaid, created[1].IsPaid, created[2].IsPaid)
	}
}

func TestAddInstallmentRemainder(t *testing.T) {
	s, _ := newTestStore(t)

	created, err := s.AddExpense(context.Background(), core.Draft{
		Name:              "Course",
		Amount:            core.Money{Cents: 100000},
		Date:              core.NewDate(2024, 2, 1),
		Category:          core.CategoryEducation,
		IsInstallment:     true,
		TotalInstallments: 3,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	cents := []int64{created[0].Amount.Cents, created[1].Amount.Cents, created[2].Amount.Cents}
	if cents[0] != 33333 || cents[1] != 33333 || cents[2] != 33334 {
		t.Fatalf("expected last installment to absorb the remainder, got %v", cents)
	}
}

func TestTogglePaidStatus(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.AddExpense(ctx, rentDraft())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id := created[0].ID

	toggled, err := s.TogglePaidStatus(ctx, id)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled == nil || !toggled.IsPaid {
		t.Fatalf("expected expense flipped to paid")
	}
	rec := s.MonthRecord("2024-03")
	if rec.TotalToPay.Cents != 120000 {
		t.Fatalf("toggle must not change totalToPay, got %d", rec.TotalToPay.Cents)
	}
	if rec.BalanceToPay.Cents != 0 {
		t.Fatalf("balance expected 0 after paying, got %d", rec.BalanceToPay.Cents)
	}

	// Flip back.
	if _, err := s.TogglePaidStatus(ctx, id); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if got := s.MonthRecord("2024-03").BalanceToPay.Cents; got != 120000 {
		t.Fatalf("balance expected 120000 after unpaying, got %d", got)
	}

	// Unknown id is a silent no-op.
	none, err := s.TogglePaidStatus(ctx, "missing")
	if err != nil || none != nil {
		t.Fatalf("expected silent no-op, got %v, %v", none, err)
	}
}

func TestDeleteSingleLeavesSiblings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.AddExpense(ctx, core.Draft{
		Name:              "Sofa",
		Amount:            core.Money{Cents: 90000},
		Date:              core.NewDate(2024, 1, 10),
		Category:          core.CategoryHousing,
		IsInstallment:     true,
		TotalInstallments: 3,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	removed, err := s.DeleteExpense(ctx, created[1].ID, false)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != created[1].ID {
		t.Fatalf("expected exactly the targeted expense removed, got %+v", removed)
	}
	if got := s.MonthRecord("2024-02"); len(got.Expenses) != 0 || got.TotalToPay.Cents != 0 {
		t.Fatalf("2024-02 expected empty with zero totals, got %+v", got)
	}
	// Siblings stay put.
	if len(s.MonthRecord("2024-01").Expenses) != 1 || len(s.MonthRecord("2024-03").Expenses) != 1 {
		t.Fatalf("siblings must survive a single delete")
	}
}

func TestDeleteAllRemovesGroupAcrossMonths(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.AddExpense(ctx, core.Draft{
		Name:              "Phone",
		Amount:            core.Money{Cents: 240000},
		Date:              core.NewDate(2024, 1, 20),
		Category:          core.CategoryShopping,
		IsInstallment:     true,
		TotalInstallments: 4,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// An unrelated expense in one of the group's months must survive.
	if err := s.SetCurrentMonth(ctx, "2024-02"); err != nil {
		t.Fatalf("set month: %v", err)
	}
	if _, err := s.AddExpense(ctx, core.Draft{
		Name:              "Groceries",
		Amount:            core.Money{Cents: 5000},
		Date:              core.NewDate(2024, 2, 3),
		Category:          core.CategoryFood,
		TotalInstallments: 1,
	}); err != nil {
		t.Fatalf("add unrelated: %v", err)
	}

	removed, err := s.DeleteExpense(ctx, created[2].ID, true)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if len(removed) != 4 {
		t.Fatalf("expected all 4 siblings removed, got %d", len(removed))
	}
	for _, key := range []core.MonthKey{"2024-01", "2024-03", "2024-04"} {
		if got := s.MonthRecord(key); len(got.Expenses) != 0 {
			t.Fatalf("month %s expected emptied, got %d expenses", key, len(got.Expenses))
		}
	}
	feb := s.MonthRecord("2024-02")
	if len(feb.Expenses) != 1 || feb.Expenses[0].Name != "Groceries" {
		t.Fatalf("unrelated expense must survive, got %+v", feb.Expenses)
	}
	if feb.TotalToPay.Cents != 5000 {
		t.Fatalf("2024-02 total expected 5000, got %d", feb.TotalToPay.Cents)
	}
}

func TestDeleteAllOnNonInstallment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.AddExpense(ctx, rentDraft())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// deleteAll with no group id degrades to a single delete.
	removed, err := s.DeleteExpense(ctx, created[0].ID, true)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected single removal, got %d", len(removed))
	}
}

func TestUpdateKeepsPositionAndMonth(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, _ := s.AddExpense(ctx, rentDraft())
	second, err := s.AddExpense(ctx, core.Draft{
		Name:              "Internet",
		Amount:            core.Money{Cents: 9900},
		Date:              core.NewDate(2024, 3, 8),
		Category:          core.CategoryHousing,
		TotalInstallments: 1,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// Edit the first expense's date into another month: it must stay filed
	// under 2024-03, in position 0, with totals following the new amount.
	edited := first[0]
	edited.Name = "Rent (adjusted)"
	edited.Amount = core.Money{Cents: 125000}
	edited.Date = core.NewDate(2024, 4, 5)
	found, err := s.UpdateExpense(ctx, edited)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !found {
		t.Fatalf("expected expense found")
	}

	rec := s.MonthRecord("2024-03")
	if len(rec.Expenses) != 2 {
		t.Fatalf("expected both expenses still in 2024-03, got %d", len(rec.Expenses))
	}
	if rec.Expenses[0].ID != first[0].ID || rec.Expenses[0].Name != "Rent (adjusted)" {
		t.Fatalf("expected edited expense kept in position 0, got %+v", rec.Expenses[0])
	}
	if rec.Expenses[1].ID != second[0].ID {
		t.Fatalf("expected second expense kept in position 1")
	}
	if rec.TotalToPay.Cents != 125000+9900 {
		t.Fatalf("total expected %d, got %d", 125000+9900, rec.TotalToPay.Cents)
	}
	// April only has its lazily-created empty record at most.
	if got := s.MonthRecord("2024-04"); len(got.Expenses) != 0 {
		t.Fatalf("edited expense must not be re-filed into 2024-04")
	}

	// Unknown id no-ops.
	ghost := edited
	ghost.ID = "missing"
	found, err = s.UpdateExpense(ctx, ghost)
	if err != nil || found {
		t.Fatalf("expected silent no-op for unknown id, got %v, %v", found, err)
	}
}

func TestOverdueExpenses(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Unpaid in January and February (past), paid in February, unpaid in
	// March (current) and April (future).
	add := func(month core.MonthKey, name string, paid bool, day int) {
		if err := s.SetCurrentMonth(ctx, month); err != nil {
			t.Fatalf("set month: %v", err)
		}
		d, _ := core.ParseDate(fmt.Sprintf("%s-%02d", month, day))
		if _, err := s.AddExpense(ctx, core.Draft{
			Name:              name,
			Amount:            core.Money{Cents: 1000},
			Date:              d,
			Category:          core.CategoryOther,
			IsPaid:            paid,
			TotalInstallments: 1,
		}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	add("2024-01", "old-unpaid", false, 10)
	add("2024-02", "feb-unpaid", false, 11)
	add("2024-02", "feb-paid", true, 12)
	add("2024-03", "current-unpaid", false, 13)
	add("2024-04", "future-unpaid", false, 14)

	overdue := s.OverdueExpenses()
	if len(overdue) != 2 {
		t.Fatalf("expected 2 overdue expenses, got %d", len(overdue))
	}
	names := map[string]bool{}
	for _, e := range overdue {
		names[e.Name] = true
	}
	if !names["old-unpaid"] || !names["feb-unpaid"] {
		t.Fatalf("unexpected overdue set: %v", names)
	}
}

func TestExpensesByCategory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	add := func(name string, cents int64, cat core.Category) {
		if _, err := s.AddExpense(ctx, core.Draft{
			Name:              name,
			Amount:            core.Money{Cents: cents},
			Date:              core.NewDate(2024, 3, 5),
			Category:          cat,
			TotalInstallments: 1,
		}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	add("Rent", 120000, core.CategoryHousing)
	add("Bus pass", 8000, core.CategoryTransport)
	add("Market", 25000, core.CategoryFood)
	add("Bakery", 3000, core.CategoryFood)

	sum := s.ExpensesByCategory("2024-03")
	if len(sum) != 8 {
		t.Fatalf("summary must always carry all 8 categories, got %d", len(sum))
	}
	if sum[core.CategoryHousing].Cents != 120000 {
		t.Errorf("housing expected 120000, got %d", sum[core.CategoryHousing].Cents)
	}
	if sum[core.CategoryFood].Cents != 28000 {
		t.Errorf("food expected 28000, got %d", sum[core.CategoryFood].Cents)
	}
	if sum[core.CategoryLeisure].Cents != 0 {
		t.Errorf("leisure expected 0, got %d", sum[core.CategoryLeisure].Cents)
	}

	// Absent month yields the all-zero mapping.
	empty := s.ExpensesByCategory("2031-01")
	for cat, amount := range empty {
		if amount.Cents != 0 {
			t.Fatalf("absent month: category %s expected 0, got %d", cat, amount.Cents)
		}
	}
}

func TestSetCurrentMonthLazyCreate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if s.CurrentMonth() != "2024-03" {
		t.Fatalf("expected current month 2024-03, got %s", s.CurrentMonth())
	}
	if err := s.SetCurrentMonth(ctx, "2025-07"); err != nil {
		t.Fatalf("set month: %v", err)
	}
	if s.CurrentMonth() != "2025-07" {
		t.Fatalf("expected 2025-07, got %s", s.CurrentMonth())
	}
	snap := s.Snapshot()
	if rec, ok := snap["2025-07"]; !ok || len(rec.Expenses) != 0 {
		t.Fatalf("expected lazily-created empty record for 2025-07")
	}

	if err := s.SetCurrentMonth(ctx, "garbage"); err == nil {
		t.Fatalf("expected error for malformed month key")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	mem := storage.NewMemoryStore()
	ctx := context.Background()

	s, err := Open(ctx, mem, WithClock(fixedNow))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.AddExpense(ctx, core.Draft{
		Name:              "Laptop",
		Amount:            core.Money{Cents: 600000},
		Date:              core.NewDate(2024, 3, 1),
		Category:          core.CategoryShopping,
		IsInstallment:     true,
		TotalInstallments: 6,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.AddExpense(ctx, rentDraft()); err != nil {
		t.Fatalf("add rent: %v", err)
	}
	before := s.Snapshot()

	// A second store seeded from the same slot sees identical state.
	s2, err := Open(ctx, mem, WithClock(fixedNow))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	after := s2.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("expected %d months after reload, got %d", len(before), len(after))
	}
	for key, rec := range before {
		got, ok := after[key]
		if !ok {
			t.Fatalf("month %s lost on reload", key)
		}
		if len(got.Expenses) != len(rec.Expenses) {
			t.Fatalf("month %s: expense count changed on reload", key)
		}
		for i := range rec.Expenses {
			if got.Expenses[i] != rec.Expenses[i] {
				t.Fatalf("month %s expense %d changed on reload:\n%+v\n%+v",
					key, i, rec.Expenses[i], got.Expenses[i])
			}
		}
		if got.TotalToPay != rec.TotalToPay || got.BalanceToPay != rec.BalanceToPay {
			t.Fatalf("month %s: totals changed on reload", key)
		}
	}

	// Mutations remain possible after reload.
	id := after["2024-03"].Expenses[0].ID
	if _, err := s2.TogglePaidStatus(ctx, id); err != nil {
		t.Fatalf("toggle after reload: %v", err)
	}
}

func TestObserversNotified(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	created, err := s.AddExpense(ctx, rentDraft())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.TogglePaidStatus(ctx, created[0].ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := s.DeleteExpense(ctx, created[0].ID, false); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	wantActions := []Action{ActionCreated, ActionPaidToggled, ActionDeleted}
	for i, ev := range events {
		if ev.Action != wantActions[i] {
			t.Errorf("event %d: expected %s, got %s", i, wantActions[i], ev.Action)
		}
		if len(ev.Months) == 0 || ev.Months[0] != "2024-03" {
			t.Errorf("event %d: expected month 2024-03, got %v", i, ev.Months)
		}
	}
}

type staticSnapshotStore struct {
	snap core.Snapshot
}

func (s staticSnapshotStore) Load(context.Context) (core.Snapshot, error) { return s.snap, nil }
func (s staticSnapshotStore) Save(context.Context, core.Snapshot) error   { return nil }
func (s staticSnapshotStore) Close() error                                { return nil }

func TestOpenFallsBackOnCorruptSlot(t *testing.T) {
	// A slot holding a null month record decodes into a snapshot the ledger
	// cannot use; opening must fall back to an empty ledger, not fail.
	path := filepath.Join(t.TempDir(), "finance.json")
	if err := os.WriteFile(path, []byte(`{"2024-03":null}`), 0644); err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	fs, err := storage.NewFileStore(path)
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}

	s, err := Open(context.Background(), fs, WithClock(fixedNow))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	if rec := s.MonthRecord("2024-03"); len(rec.Expenses) != 0 {
		t.Fatalf("expected empty fallback record, got %+v", rec)
	}

	// The fallback ledger is fully usable.
	if _, err := s.AddExpense(context.Background(), rentDraft()); err != nil {
		t.Fatalf("add after fallback: %v", err)
	}
}

func TestOpenToleratesNilMonthRecord(t *testing.T) {
	// A backend handing back a nil record directly must not crash Open.
	snap := core.Snapshot{"2024-01": nil, "2024-02": core.NewMonthRecord()}

	s, err := Open(context.Background(), staticSnapshotStore{snap: snap}, WithClock(fixedNow))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	rec := s.MonthRecord("2024-01")
	if len(rec.Expenses) != 0 || rec.TotalToPay.Cents != 0 {
		t.Fatalf("expected empty replacement record, got %+v", rec)
	}
}
