package api

import (
	"net/http"
	"strconv"

	"github.com/kjannette/trahn-papertrade/internal/chart"
	"github.com/kjannette/trahn-papertrade/internal/models"
)

// ensureLoaded fetches every source the first time a view is requested.
func (s *Server) ensureLoaded(r *http.Request) error {
	if s.deps.Dashboard.Loaded() {
		return nil
	}
	return s.deps.Dashboard.Refresh(r.Context())
}

func parseInterval(r *http.Request) (chart.Interval, error) {
	return chart.ParseInterval(r.URL.Query().Get("interval"))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	interval, err := parseInterval(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ensureLoaded(r); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if v := r.URL.Query().Get("asset"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid asset id")
			return
		}
		if err := s.deps.Dashboard.Select(r.Context(), id); err != nil {
			s.writeFailure(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.deps.Dashboard.View(interval))
}

func (s *Server) handleDashboardRefresh(w http.ResponseWriter, r *http.Request) {
	interval, err := parseInterval(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Dashboard.Refresh(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Dashboard.View(interval))
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureLoaded(r); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	pv, err := s.deps.Dashboard.Portfolio()
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

type transactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureLoaded(r); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	txs, err := s.deps.Dashboard.Transactions()
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Transactions: txs, Count: len(txs)})
}
