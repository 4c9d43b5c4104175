package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// Health statuses. The endpoint always answers 200; degradation is in the
// body so load balancers keep routing while matchmaking is impaired (bot
// matches still work without the coordination store).
const (
	StatusHealthy  = "Healthy"
	StatusDegraded = "Degraded"
)

type healthDependencies struct {
	CoordStoreConnected bool   `json:"coordStoreConnected"`
	CoordStoreError     string `json:"coordStoreError,omitempty"`
}

type healthMetrics struct {
	WaitingPlayers int64 `json:"waitingPlayers"`
	ActiveGames    int   `json:"activeGames"`
}

type healthResponse struct {
	Status       string             `json:"status"`
	Timestamp    time.Time          `json:"timestamp"`
	Dependencies healthDependencies `json:"dependencies"`
	Metrics      healthMetrics      `json:"metrics"`
}

// HandleHealthCheck reports liveness, coordination store reachability,
// queue depth and the active game count.
func (s *Server) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := queueContext()
	defer cancel()

	resp := healthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Dependencies: healthDependencies{
			CoordStoreConnected: true,
		},
		Metrics: healthMetrics{
			ActiveGames: s.store.Count(),
		},
	}

	if err := s.queue.Ping(ctx); err != nil {
		resp.Status = StatusDegraded
		resp.Dependencies.CoordStoreConnected = false
		resp.Dependencies.CoordStoreError = err.Error()
	} else if depth, err := s.queue.Depth(ctx); err != nil {
		resp.Status = StatusDegraded
		resp.Dependencies.CoordStoreConnected = false
		resp.Dependencies.CoordStoreError = err.Error()
	} else {
		resp.Metrics.WaitingPlayers = depth
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn().Err(err).Msg("health response write failed")
	}
}
