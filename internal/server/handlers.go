package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	databases := make(map[string]string, len(s.cfg.Databases))
	for _, db := range s.cfg.Databases {
		if err := db.HealthCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			databases[db.Name()] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		databases[db.Name()] = "healthy"
	}

	response := map[string]interface{}{
		"status":    "healthy",
		"version":   "1.0.0",
		"service":   "alphascan",
		"databases": databases,
	}
	if status != http.StatusOK {
		response["status"] = "degraded"
	}
	s.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
