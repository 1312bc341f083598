// Package audit persists security events. Writes are fire-and-forget so a
// slow or failing audit store never blocks the decision path.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/db/models"
	"github.com/jasperfordesq-ai/nexus-v1-sub029/internal/repository"
)

// Sink records audit events.
type Sink interface {
	Record(event models.AuditEvent)
}

// Service writes audit events to the repository in the background.
type Service struct {
	repo    repository.AuditRepository
	timeout time.Duration
}

// NewService creates an audit service backed by the given repository.
func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo, timeout: 5 * time.Second}
}

// Record persists the event without blocking the caller. Insert failures
// are logged and dropped.
func (s *Service) Record(event models.AuditEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.repo.Insert(ctx, &event); err != nil {
			log.Printf("audit: failed to record %s event: %v", event.Kind, err)
		}
	}()
}

// Discard is a Sink that drops every event. Used in tests and tools that
// have no audit store.
type Discard struct{}

// Record implements Sink.
func (Discard) Record(models.AuditEvent) {}
