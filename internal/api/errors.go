package api

import (
	"errors"
	"net/http"

	"github.com/kjannette/trahn-papertrade/internal/auth"
	"github.com/kjannette/trahn-papertrade/internal/dashboard"
	"github.com/kjannette/trahn-papertrade/internal/external"
	"github.com/kjannette/trahn-papertrade/internal/risk"
	"github.com/kjannette/trahn-papertrade/internal/workflow"
)

// statusFor maps a domain error onto an HTTP status and a user-facing message.
func statusFor(err error) (int, string) {
	switch {
	case external.IsAuthFailure(err), errors.Is(err, workflow.ErrNoPortfolio):
		return http.StatusUnauthorized, workflow.MsgSessionExpired
	case errors.Is(err, workflow.ErrOrderInProgress), errors.Is(err, workflow.ErrNoPendingOrder):
		return http.StatusConflict, err.Error()
	case errors.Is(err, dashboard.ErrBalanceUnknown), errors.Is(err, dashboard.ErrNotLoaded):
		return http.StatusConflict, err.Error()
	case errors.Is(err, dashboard.ErrUnknownAsset):
		return http.StatusNotFound, err.Error()
	case risk.IsValidation(err),
		errors.Is(err, workflow.ErrNoAssetSelected),
		errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrIncompleteForm):
		return http.StatusUnprocessableEntity, err.Error()
	}

	msg := workflow.MsgUnreachable
	if m := external.BackendMessage(err); m != "" {
		msg = m
	}
	var step *auth.StepError
	if errors.As(err, &step) {
		msg = step.Step + " failed: " + msg
	}
	return http.StatusBadGateway, msg
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn().Str("path", r.URL.Path).Int("status", status).Err(err).Msg("request failed")
	}
	writeError(w, status, msg)
}
