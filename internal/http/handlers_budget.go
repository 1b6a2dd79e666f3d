package http

import (
	"net/http"

	"spendwise/internal/services"
)

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var in services.BudgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.Upsert(r.Context(), currentUserID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	month, err := pathInt(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := pathInt(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.Get(r.Context(), currentUserID(r), month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
