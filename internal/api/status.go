package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/climate-sync-core/internal/climatesync"
)

// statusResponse is the payload for GET /api/v1/status.
type statusResponse struct {
	State         climatesync.LifecycleState `json:"state"`
	ActuatorCount int                        `json:"actuator_count"`
	MQTTConnected *bool                      `json:"mqtt_connected,omitempty"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Version       string                     `json:"version"`
}

// handleStatus returns the coordinator lifecycle state and fleet size.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		State:         s.coordinator.State(),
		ActuatorCount: s.coordinator.ActuatorCount(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Version:       s.version,
	}

	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		resp.MQTTConnected = &connected
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListActuators returns a snapshot of every tracked actuator.
func (s *Server) handleListActuators(w http.ResponseWriter, _ *http.Request) {
	actuators := s.coordinator.Actuators()
	if actuators == nil {
		actuators = []climatesync.ActuatorStatus{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"actuators": actuators,
		"count":     len(actuators),
	})
}

// handleRefresh re-runs discovery against the current catalog.
//
// Use after catalog edits: new zones, reassigned devices, replaced sensors.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.Refresh(r.Context()); err != nil {
		if errors.Is(err, climatesync.ErrNotActive) {
			writeConflict(w, "coordinator is not active")
			return
		}
		s.logger.Error("refresh failed", "error", err)
		writeInternalError(w, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "refreshed",
		"actuator_count": s.coordinator.ActuatorCount(),
	})
}
