package core

import (
	"errors"
	"time"
)

// monthLayout is the wire form for month keys.
const monthLayout = "2006-01"

// MonthKey identifies one calendar month as a zero-padded "YYYY-MM" string.
// The format is year-first and zero-padded on purpose: lexicographic order
// on keys matches chronological order, which overdue detection relies on.
type MonthKey string

// MonthKeyFor returns the key of the month the date falls in.
func MonthKeyFor(d Date) MonthKey {
	return MonthKey(d.Time.Format(monthLayout))
}

// MonthKeyOf returns the key of the month t falls in.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthLayout))
}

// ParseMonthKey validates and returns a month key.
func ParseMonthKey(s string) (MonthKey, error) {
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", errors.New("invalid month key: " + s)
	}
	return MonthKey(s), nil
}

// Valid reports whether the key is a well-formed "YYYY-MM" string.
func (k MonthKey) Valid() bool {
	_, err := time.Parse(monthLayout, string(k))
	return err == nil
}

// Before reports whether k is chronologically earlier than other.
func (k MonthKey) Before(other MonthKey) bool {
	return string(k) < string(other)
}

// String implements fmt.Stringer.
func (k MonthKey) String() string {
	return string(k)
}

// MonthRecord aggregates one calendar month: the expense list in insertion
// order plus the derived totals. Totals are recomputed after every mutation
// and must never be read stale.
type MonthRecord struct {
	Expenses     []Expense `json:"expenses"`
	TotalToPay   Money     `json:"totalToPay"`
	BalanceToPay Money     `json:"balanceToPay"`
}

// NewMonthRecord returns an empty record with zero totals.
func NewMonthRecord() *MonthRecord {
	return &MonthRecord{Expenses: []Expense{}}
}

// Recompute rebuilds both derived totals with a full linear pass.
// O(n) per mutation, which is fine at this data scale.
func (r *MonthRecord) Recompute() {
	var total, balance Money
	for _, e := range r.Expenses {
		total = total.Add(e.Amount)
		if !e.IsPaid {
			balance = balance.Add(e.Amount)
		}
	}
	r.TotalToPay = total
	r.BalanceToPay = balance
}

// Clone returns a deep copy of the record.
func (r *MonthRecord) Clone() *MonthRecord {
	expenses := make([]Expense, len(r.Expenses))
	copy(expenses, r.Expenses)
	return &MonthRecord{
		Expenses:     expenses,
		TotalToPay:   r.TotalToPay,
		BalanceToPay: r.BalanceToPay,
	}
}

// Snapshot is the whole persisted state: every month record keyed by month.
type Snapshot map[MonthKey]*MonthRecord

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, r := range s {
		out[k] = r.Clone()
	}
	return out
}
