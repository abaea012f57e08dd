// Package audit turns orchestrator events into structured log records,
// Prometheus counters and, optionally, rows in the audit store.
package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loginguard/auth-service/internal/api/metrics"
	"github.com/loginguard/auth-service/internal/core/domain"
)

// Sink implements ports.EventSink.
type Sink struct {
	log        zerolog.Logger
	dispatcher *Dispatcher
}

// NewSink builds a sink that logs every event and, when dispatcher is not
// nil, queues it for persistence.
func NewSink(log zerolog.Logger, dispatcher *Dispatcher) *Sink {
	return &Sink{log: log, dispatcher: dispatcher}
}

func (s *Sink) Emit(_ context.Context, event domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	metrics.AuthEventsTotal.WithLabelValues(string(event.Kind)).Inc()

	rec := s.log.WithLevel(levelFor(event.Kind)).
		Str("event", string(event.Kind)).
		Str("event_id", event.ID).
		Str("username", event.Username).
		Str("client_ip", event.ClientIP).
		Time("at", event.Timestamp)
	if event.UserID != "" {
		rec = rec.Str("user_id", event.UserID)
	}
	for k, v := range event.Fields {
		rec = rec.Str(k, v)
	}
	rec.Msg("auth event")

	if s.dispatcher != nil {
		s.dispatcher.Enqueue(event)
	}
}

func levelFor(kind domain.AuditEventKind) zerolog.Level {
	switch kind {
	case domain.EventAccountLockout, domain.EventLockedLoginAttempt, domain.EventMFAAttemptsExceeded:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
