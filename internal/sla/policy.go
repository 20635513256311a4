// Package sla resolves resolution-time budgets for tickets.
package sla

import (
	"time"

	"github.com/campusdesk/servicedesk/internal/config"
	"github.com/campusdesk/servicedesk/internal/domain"
)

// Policy maps (priority, category) to allowed resolution hours. It is a pure
// lookup over the injected table and never fails: a missing category falls
// back to the priority default, a missing priority to the global default.
type Policy struct {
	cfg config.SLAConfig
}

// NewPolicy builds a resolver over the typed SLA table.
func NewPolicy(cfg config.SLAConfig) *Policy {
	if cfg.DefaultHours <= 0 {
		cfg.DefaultHours = 24
	}
	return &Policy{cfg: cfg}
}

// ResolveHours returns the allowed resolution hours for the given priority and
// category.
func (p *Policy) ResolveHours(priority domain.TicketPriority, category string) int {
	if byPriority, ok := p.cfg.CategoryHours[category]; ok {
		if hours, ok := byPriority[priority]; ok && hours > 0 {
			return hours
		}
	}
	if hours, ok := p.cfg.PriorityHours[priority]; ok && hours > 0 {
		return hours
	}
	return p.cfg.DefaultHours
}

// Deadline computes the SLA deadline for a ticket created at the given time.
// It is computed once at creation and never silently recomputed.
func (p *Policy) Deadline(createdAt time.Time, priority domain.TicketPriority, category string) time.Time {
	return createdAt.Add(time.Duration(p.ResolveHours(priority, category)) * time.Hour)
}
