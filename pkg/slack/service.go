package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token   string
	Channel string
}

// Service posts operator-alerting notifications for traceability
// defects (SPEC_FULL.md "Operator alerting": a trace id was expected on
// a derived row but absent — spec.md §7). Nil-safe: all methods are
// no-ops when the service is nil, so components can hold a *Service
// unconditionally.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates a new Slack notification service. Returns nil if
// Token or Channel is empty, so callers can wire it unconditionally and
// let services.DefectNotifier's nil check do the rest.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client: NewClient(cfg.Token, cfg.Channel),
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NotifyTraceabilityDefect implements services.DefectNotifier. Fail-open:
// delivery errors are logged, never returned — a Slack outage must never
// interrupt the pipeline component reporting the defect.
func (s *Service) NotifyTraceabilityDefect(ctx context.Context, component, detail string) {
	if s == nil {
		return
	}

	blocks := BuildTraceabilityDefectMessage(component, detail)
	if err := s.client.PostMessage(ctx, blocks, "", 5*time.Second); err != nil {
		s.logger.Error("failed to send traceability defect alert",
			"component", component, "error", err)
	}
}
