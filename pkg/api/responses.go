package api

import "github.com/shift-health/pipeline/pkg/queue"

// watchEventsResponse is the 2xx body for POST /watch_events (spec.md §6).
type watchEventsResponse struct {
	Message         string `json:"message"`
	SamplesReceived int    `json:"samples_received"`
	UserID          string `json:"user_id"`
}

// appInteractionResponse is the 2xx body for POST /app_interactions.
type appInteractionResponse struct {
	Status        string `json:"status"`
	InteractionID string `json:"interaction_id"`
}

// resetResponse is the 2xx body for POST /user/reset.
type resetResponse struct {
	Scope         string `json:"scope"`
	InteractionID string `json:"interaction_id"`
}

// appleAuthResponse is the 2xx body for POST /auth/apple.
type appleAuthResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	User         string `json:"user"`
}

// errorResponse is the uniform JSON error envelope for all non-2xx
// responses.
type errorResponse struct {
	Error string `json:"error"`
}

// healthResponse is the body for GET /health (SPEC_FULL.md supplemented
// feature 2: per-dependency readiness breakdown).
type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]healthCheck `json:"checks"`
	Queues []queue.PoolHealth     `json:"queues,omitempty"`
}

type healthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
