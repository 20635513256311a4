package domain

import "time"

// DispositionAction classifies a forwarding hop.
type DispositionAction string

const (
	DispositionForward  DispositionAction = "forward"
	DispositionReturn   DispositionAction = "return"
	DispositionEscalate DispositionAction = "escalate"
	DispositionOverride DispositionAction = "override"
)

// ValidDispositionAction reports whether a is a known action type.
func ValidDispositionAction(a DispositionAction) bool {
	switch a {
	case DispositionForward, DispositionReturn, DispositionEscalate, DispositionOverride:
		return true
	}
	return false
}

// SLAImpact records how a hop is expected to affect the resolution deadline.
type SLAImpact string

const (
	SLAImpactMaintained SLAImpact = "maintained"
	SLAImpactExtended   SLAImpact = "extended"
	SLAImpactImproved   SLAImpact = "improved"
)

// DispositionEvent is one immutable hop in a ticket's forwarding chain.
// FromUserID is nil for system-initiated hops.
type DispositionEvent struct {
	ID                     int64
	TicketID               int64
	FromUserID             *int64
	ToUserID               int64
	Reason                 string
	Notes                  string
	ProgressUpdate         *int
	ActionType             DispositionAction
	ExpectedCompletionTime *time.Time
	SLAImpact              SLAImpact
	CreatedAt              time.Time
}
