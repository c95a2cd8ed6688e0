package http

import (
	"net/http"

	"budgettracker/internal/core"
	"budgettracker/internal/log"
)

// handleAddEntry records an income or expense. The body is
// {"userId": 1, "amount": 500, "description": "Salary"}; description names the
// category and may be omitted.
func (s *Server) handleAddEntry(kind core.EntryKind) http.HandlerFunc {
	op := log.OpAddEntry
	return func(w http.ResponseWriter, r *http.Request) {
		p := NewRequestBodyParser(r)
		if err := p.Parse(); err != nil {
			writeError(w, r, op, err)
			return
		}

		userID, ok := p.GetInt64("userId")
		if !ok {
			if _, present := p.Lookup("userId"); present {
				writeError(w, r, op, core.ErrInvalidUserID)
			} else {
				writeError(w, r, op, core.ErrMissingFields)
			}
			return
		}
		rawAmount, ok := p.Lookup("amount")
		if !ok {
			writeError(w, r, op, core.ErrMissingFields)
			return
		}
		amount, err := core.ParseAmount(rawAmount)
		if err != nil {
			writeError(w, r, op, err)
			return
		}

		var category *string
		if label, present := p.Lookup("description"); present {
			category = &label
		}

		item, err := s.budgets.AddEntry(r.Context(), core.EntryRequest{
			Kind:     kind,
			UserID:   userID,
			Amount:   amount,
			Category: category,
		})
		if err != nil {
			writeError(w, r, op, err)
			return
		}
		NewJSONResponse().Status(http.StatusCreated).Body(item).Write(w)
	}
}
