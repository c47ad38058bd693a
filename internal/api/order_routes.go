package api

import (
	"context"
	"net/http"

	"github.com/kjannette/trahn-papertrade/internal/dashboard"
	"github.com/kjannette/trahn-papertrade/internal/models"
	"github.com/kjannette/trahn-papertrade/internal/workflow"
)

type openOrderRequest struct {
	Kind     string `json:"kind"`
	AssetID  int64  `json:"assetId,omitempty"`
	Quantity int    `json:"quantity"`
}

type outcomeResponse struct {
	Outcome *workflow.Outcome `json:"outcome,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Orders.Snapshot())
}

// handleOpenOrder starts a confirmation for the given asset, or for the
// charted asset when assetId is omitted.
func (s *Server) handleOpenOrder(w http.ResponseWriter, r *http.Request) {
	var req openOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := models.ParseTransactionKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ensureLoaded(r); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	var asset *models.Asset
	if req.AssetID != 0 {
		a, ok := s.deps.Dashboard.Asset(req.AssetID)
		if !ok {
			s.writeFailure(w, r, dashboard.ErrUnknownAsset)
			return
		}
		asset = a
	} else if a, ok := s.deps.Dashboard.SelectedAsset(); ok {
		asset = a
	}

	if _, err := s.deps.Orders.Open(r.Context(), kind, asset, req.Quantity); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.deps.Orders.Snapshot())
}

func (s *Server) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	// The submission outlives a dropped client connection.
	ctx := context.WithoutCancel(r.Context())

	outcome, err := s.deps.Orders.Confirm(ctx)
	if err != nil {
		status, msg := statusFor(err)
		if outcome != nil {
			msg = outcome.Message
		}
		writeJSON(w, status, outcomeResponse{Outcome: outcome, Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Outcome: outcome})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.deps.Orders.Cancel()
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Outcome: outcome})
}

type historyResponse struct {
	Attempts []models.OrderAttempt `json:"attempts"`
	Count    int                   `json:"count"`
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeError(w, http.StatusNotFound, "order journal disabled")
		return
	}
	attempts, err := s.deps.Journal.Recent(r.Context(), parseLimit(r, 50))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch order history")
		writeError(w, http.StatusInternalServerError, "failed to fetch order history")
		return
	}
	if attempts == nil {
		attempts = []models.OrderAttempt{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Attempts: attempts, Count: len(attempts)})
}
