package api

import (
	"net/http"
	"strconv"

	"github.com/kjannette/trahn-papertrade/internal/notifications"
)

type notificationsResponse struct {
	Messages []notifications.Message `json:"messages"`
}

// handleNotifications returns the newest messages, or those after ?since=seq
// in arrival order.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	var msgs []notifications.Message
	if v := r.URL.Query().Get("since"); v != "" {
		seq, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		msgs = s.deps.Inbox.Since(seq)
	} else {
		msgs = s.deps.Inbox.Recent(parseLimit(r, 20))
	}
	if msgs == nil {
		msgs = []notifications.Message{}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Messages: msgs})
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.deps.Inbox.Clear()
	w.WriteHeader(http.StatusNoContent)
}
