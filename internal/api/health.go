package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status        string `json:"status"`
	ModelProvider string `json:"model_provider"`
	LocalService  string `json:"local_service,omitempty"`
	Store         string `json:"store"`
	Timestamp     string `json:"timestamp"`
}

// Healthy reports whether the collection store is reachable.
func (h HealthResponse) Healthy() bool {
	return h.Store == "connected"
}

// StoreChecker is implemented by every collection store.
type StoreChecker interface {
	Health(ctx context.Context) error
}

// ProviderChecker reports the active embedding provider and, for local
// providers, whether the service behind it answers.
type ProviderChecker interface {
	Active() string
	PingLocal(ctx context.Context) (checked bool, err error)
}

// Checker assembles health reports. The store decides overall health; the
// local embedding service is informational since embedding degrades softly.
type Checker struct {
	Store    StoreChecker
	Provider ProviderChecker
	Timeout  time.Duration
}

// Check runs the store and provider checks under the checker's timeout.
func (c *Checker) Check(ctx context.Context) HealthResponse {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response := HealthResponse{
		Status:        "healthy",
		ModelProvider: c.Provider.Active(),
		Store:         "connected",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	if checked, err := c.Provider.PingLocal(ctx); checked {
		if err != nil {
			response.LocalService = "unreachable"
			response.Status = "degraded"
		} else {
			response.LocalService = "reachable"
		}
	}

	if err := c.Store.Health(ctx); err != nil {
		response.Store = "disconnected"
		response.Status = "unhealthy"
	}
	return response
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It returns 503 only when the store is unreachable.
func NewHealthHandler(checker *Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := checker.Check(r.Context())

		status := http.StatusOK
		if !response.Healthy() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
