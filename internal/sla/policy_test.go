package sla

import (
	"testing"
	"time"

	"github.com/campusdesk/servicedesk/internal/config"
	"github.com/campusdesk/servicedesk/internal/domain"
)

func testConfig() config.SLAConfig {
	return config.SLAConfig{
		DefaultHours: 24,
		PriorityHours: map[domain.TicketPriority]int{
			domain.TicketPriorityLow:    72,
			domain.TicketPriorityMedium: 24,
			domain.TicketPriorityHigh:   8,
			domain.TicketPriorityUrgent: 2,
		},
		CategoryHours: map[string]map[domain.TicketPriority]int{
			"Academic": {
				domain.TicketPriorityUrgent: 1,
				domain.TicketPriorityHigh:   4,
			},
		},
	}
}

func TestResolveHours(t *testing.T) {
	policy := NewPolicy(testConfig())

	tests := []struct {
		name     string
		priority domain.TicketPriority
		category string
		want     int
	}{
		{"category override wins", domain.TicketPriorityUrgent, "Academic", 1},
		{"category override for high", domain.TicketPriorityHigh, "Academic", 4},
		{"category known but priority not overridden", domain.TicketPriorityMedium, "Academic", 24},
		{"priority default for unknown category", domain.TicketPriorityHigh, "Facility", 8},
		{"low priority default", domain.TicketPriorityLow, "Facility", 72},
		{"unknown priority falls back to default", domain.TicketPriority("weird"), "Facility", 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ResolveHours(tt.priority, tt.category); got != tt.want {
				t.Errorf("ResolveHours(%q, %q) = %d, want %d", tt.priority, tt.category, got, tt.want)
			}
		})
	}
}

func TestResolveHoursEmptyTable(t *testing.T) {
	policy := NewPolicy(config.SLAConfig{})
	if got := policy.ResolveHours(domain.TicketPriorityUrgent, "Academic"); got != 24 {
		t.Errorf("ResolveHours on empty table = %d, want 24", got)
	}
}

func TestDeadline(t *testing.T) {
	policy := NewPolicy(testConfig())
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	got := policy.Deadline(createdAt, domain.TicketPriorityUrgent, "Academic")
	want := createdAt.Add(time.Hour)
	if !got.Equal(want) {
		t.Errorf("Deadline = %v, want %v", got, want)
	}

	got = policy.Deadline(createdAt, domain.TicketPriorityMedium, "Facility")
	want = createdAt.Add(24 * time.Hour)
	if !got.Equal(want) {
		t.Errorf("Deadline = %v, want %v", got, want)
	}
}
