package core

import (
	"errors"
	"strings"
)

var (
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidInstallments = errors.New("installments must be at least 1")
)

// Expense is a single monetary obligation filed under one month record.
// ID and the installment fields are assigned at creation and immutable.
type Expense struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Amount             Money    `json:"amount"`
	Date               Date     `json:"date"`
	Category           Category `json:"category"`
	IsPaid             bool     `json:"isPaid"`
	IsInstallment      bool     `json:"isInstallment"`
	TotalInstallments  int      `json:"totalInstallments"`
	CurrentInstallment int      `json:"currentInstallment"`
	InstallmentGroupID string   `json:"installmentGroupId,omitempty"`
}

// Validate checks the invariants every stored expense must satisfy.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("empty id")
	}
	if len(strings.TrimSpace(e.Name)) == 0 {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if e.TotalInstallments < 1 {
		return ErrInvalidInstallments
	}
	if e.CurrentInstallment < 1 || e.CurrentInstallment > e.TotalInstallments {
		return errors.New("current installment out of range")
	}
	return nil
}

// Draft is the caller-provided shape of a new expense: an Expense without an
// assigned ID or installment group. Amount is the full requested amount; for
// installment plans the store splits it across the generated siblings.
type Draft struct {
	Name              string   `json:"name"`
	Amount            Money    `json:"amount"`
	Date              Date     `json:"date"`
	Category          Category `json:"category"`
	IsPaid            bool     `json:"isPaid"`
	IsInstallment     bool     `json:"isInstallment"`
	TotalInstallments int      `json:"totalInstallments"`
}

// Validate checks the add-operation constraints.
func (d Draft) Validate() error {
	if len(strings.TrimSpace(d.Name)) == 0 {
		return ErrEmptyName
	}
	if len(d.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if !d.Category.Valid() {
		return ErrInvalidCategory
	}
	if d.TotalInstallments < 1 {
		return ErrInvalidInstallments
	}
	return nil
}

// CategorySummary maps every fixed category to a summed amount for one month.
type CategorySummary map[Category]Money

// NewCategorySummary returns a summary with all categories zeroed.
func NewCategorySummary() CategorySummary {
	out := make(CategorySummary, len(Categories()))
	for _, c := range Categories() {
		out[c] = Money{}
	}
	return out
}
