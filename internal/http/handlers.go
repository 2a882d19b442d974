package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"contas/internal/core"
)

// expensePayload is the wire shape for add and update requests. Amounts
// travel as decimal strings ("120.50") and are converted to cents at the
// boundary, so clients never deal in integer cents.
type expensePayload struct {
	ID                string `json:"id,omitempty"`
	Name              string `json:"name"`
	Amount            string `json:"amount"`
	Date              string `json:"date"`
	Category          string `json:"category"`
	IsPaid            bool   `json:"isPaid"`
	IsInstallment     bool   `json:"isInstallment"`
	TotalInstallments int    `json:"totalInstallments"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (p expensePayload) toDraft() (core.Draft, error) {
	cents, err := core.ParseDecimalToCents(p.Amount)
	if err != nil {
		return core.Draft{}, err
	}
	date, err := core.ParseDate(p.Date)
	if err != nil {
		return core.Draft{}, err
	}
	installments := p.TotalInstallments
	if installments == 0 {
		installments = 1
	}
	return core.Draft{
		Name:              p.Name,
		Amount:            core.Money{Cents: cents},
		Date:              date,
		Category:          core.Category(p.Category),
		IsPaid:            p.IsPaid,
		IsInstallment:     p.IsInstallment,
		TotalInstallments: installments,
	}, nil
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAddExpense(w, r)
	case http.MethodPut:
		s.handleUpdateExpense(w, r)
	case http.MethodDelete:
		s.handleDeleteExpense(w, r)
	default:
		methodNotAllowed(w, "POST, PUT, DELETE")
	}
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var payload expensePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	draft, err := payload.toDraft()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.svc.AddExpense(r.Context(), draft)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Failed to add expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add expense")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var payload expensePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.ID == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing expense id")
		return
	}

	// Updates target one record; the installment bookkeeping of the stored
	// expense is preserved by the ledger, so the payload only carries the
	// editable fields.
	draft, err := payload.toDraft()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	expense := core.Expense{
		ID:                payload.ID,
		Name:              draft.Name,
		Amount:            draft.Amount,
		Date:              draft.Date,
		Category:          draft.Category,
		IsPaid:            draft.IsPaid,
		IsInstallment:     draft.IsInstallment,
		TotalInstallments: draft.TotalInstallments,
	}

	found, err := s.svc.UpdateExpense(r.Context(), expense)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Failed to update expense", "error", err, "id", payload.ID)
		writeError(w, http.StatusInternalServerError, "failed to update expense")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id parameter")
		return
	}
	deleteAll := r.URL.Query().Get("all") == "true"

	removed, err := s.svc.DeleteExpense(r.Context(), id, deleteAll)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to delete expense", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}
	if len(removed) == 0 {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "removed": len(removed)})
}

func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id parameter")
		return
	}

	toggled, err := s.svc.TogglePaidStatus(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to toggle paid status", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to toggle paid status")
		return
	}
	if toggled == nil {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}

	writeJSON(w, http.StatusOK, toggled)
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	month, ok := s.monthParam(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.svc.MonthRecord(month))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleOverdue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	overdue := s.svc.OverdueExpenses()
	if overdue == nil {
		overdue = []core.Expense{}
	}

	writeJSON(w, http.StatusOK, overdue)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	month, ok := s.monthParam(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.categorySummary(month))
}

func (s *Server) handleCurrentMonth(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"month": string(s.svc.CurrentMonth())})
	case http.MethodPut:
		var payload struct {
			Month string `json:"month"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		month, err := core.ParseMonthKey(payload.Month)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err := s.svc.SetCurrentMonth(r.Context(), month); err != nil {
			slog.ErrorContext(r.Context(), "Failed to set current month", "error", err, "month", payload.Month)
			writeError(w, http.StatusInternalServerError, "failed to set current month")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"month": string(month)})
	default:
		methodNotAllowed(w, "GET, PUT")
	}
}

// monthParam reads and validates the ?month= query parameter, defaulting to
// the ledger's current month when absent.
func (s *Server) monthParam(w http.ResponseWriter, r *http.Request) (core.MonthKey, bool) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return s.svc.CurrentMonth(), true
	}
	month, err := core.ParseMonthKey(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return "", false
	}
	return month, true
}

// isValidationError reports whether the error stems from caller input rather
// than an infrastructure failure.
func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyName) ||
		errors.Is(err, core.ErrInvalidCategory) ||
		errors.Is(err, core.ErrInvalidInstallments) ||
		errors.Is(err, core.ErrInvalidAmount)
}
