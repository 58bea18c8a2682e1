// Package escalation hands queries the FAQ engine could not answer over to
// human support and tracks them through their lifecycle.
package escalation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an escalation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusClosed}

// Priority is the support urgency of an escalation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Errors
var (
	ErrInvalidTransition = errors.New("invalid escalation status transition")
	ErrInvalidStatus     = errors.New("invalid escalation status")
	ErrInvalidPriority   = errors.New("invalid escalation priority")
	ErrStaleStatus       = errors.New("escalation status changed concurrently")
)

// Escalation is a customer query routed to a human agent.
type Escalation struct {
	ID         string     `json:"id"`
	QueryText  string     `json:"query_text"`
	UserID     string     `json:"user_id,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	Priority   Priority   `json:"priority"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// transitions lists the forward moves; closing is handled separately.
var transitions = map[Status]Status{
	StatusPending:    StatusInProgress,
	StatusInProgress: StatusResolved,
}

// CanTransition reports whether an escalation may move from one status to
// another. Escalations advance pending, in_progress, resolved and can be
// closed from any state that is not already closed.
func CanTransition(from, to Status) bool {
	if from == StatusClosed {
		return false
	}
	if to == StatusClosed {
		return true
	}
	next, ok := transitions[from]
	return ok && next == to
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ParsePriority validates a priority name.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// priorityRules are checked in order; the first rule with a matching keyword wins.
var priorityRules = []struct {
	priority Priority
	keywords []string
}{
	{PriorityUrgent, []string{"accident*", "fire", "smoke*", "injur*", "crash*"}},
	{PriorityHigh, []string{"brake*", "battery", "batteries", "not charging", "won't charge", "refund*"}},
	{PriorityMedium, []string{"order*", "deliver*", "app", "apps"}},
}

// ClassifyPriority assigns a priority from keywords in the query text.
func ClassifyPriority(text string) Priority {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	joined := " " + strings.Join(words, " ") + " "

	for _, rule := range priorityRules {
		for _, kw := range rule.keywords {
			if matchesKeyword(joined, kw) {
				return rule.priority
			}
		}
	}
	return PriorityLow
}

// matchesKeyword matches kw as whole words. A trailing "*" matches any word
// starting with kw, so "injur*" covers "injured".
func matchesKeyword(text, kw string) bool {
	if prefix, ok := strings.CutSuffix(kw, "*"); ok {
		return strings.Contains(text, " "+prefix)
	}
	return strings.Contains(text, " "+kw+" ")
}
