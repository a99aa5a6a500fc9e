package models

// GettingStartedKey is the current onboarding intervention key (spec.md
// §4.E step 3). Future onboarding revisions would add getting_started_v2,
// etc. — the "_v1" suffix is intentional, not a placeholder.
const GettingStartedKey = "getting_started_v1"

// GettingStartedFlowID is the flow_id used in flow_completed/flow_reset/
// flow_requested events for the onboarding flow.
const GettingStartedFlowID = "getting_started"

// gettingStartedPrefix is the key prefix tested by the selector's
// onboarding gate (spec.md §4.D step 7).
const gettingStartedPrefix = "getting_started_"

// IsOnboardingKey reports whether key belongs to the onboarding family.
func IsOnboardingKey(key string) bool {
	return len(key) >= len(gettingStartedPrefix) && key[:len(gettingStartedPrefix)] == gettingStartedPrefix
}

// Context is the read-only home-screen payload returned by GET /context
// (spec.md §4.E, §6).
type Context struct {
	StateEstimate      *DerivedStateEstimate  `json:"state_estimate,omitempty"`
	Interventions      []InterventionView     `json:"interventions"`
	SavedInterventions []string               `json:"saved_interventions"`
}

// InterventionView is one aggregator-facing intervention row: instance
// fields joined with catalog copy (spec.md §4.E step 4).
type InterventionView struct {
	InstanceID      string         `json:"instance_id"`
	TraceID         string         `json:"trace_id"`
	InterventionKey string         `json:"intervention_key"`
	Metric          string         `json:"metric"`
	Level           string         `json:"level"`
	Surface         string         `json:"surface"`
	Title           string         `json:"title"`
	Body            string         `json:"body"`
	Status          InstanceStatus `json:"status"`
	CreatedAt       string         `json:"created_at"`
}
