package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	View      string            `json:"view"`
	Order     string            `json:"order"`
	Services  map[string]string `json:"services"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{}
	if s.deps.Probe != nil {
		services = s.deps.Probe(r.Context())
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		View:      string(s.deps.Navigator.Current()),
		Order:     s.deps.Orders.Snapshot().State.String(),
		Services:  services,
	})
}
