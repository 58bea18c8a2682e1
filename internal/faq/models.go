// Package faq defines the FAQ knowledge base data model shared by matching,
// feedback and storage.
package faq

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category is the fixed set of FAQ categories.
type Category string

const (
	CategoryGeneral         Category = "general"
	CategoryCharging        Category = "charging"
	CategoryBattery         Category = "battery"
	CategoryMaintenance     Category = "maintenance"
	CategoryRide            Category = "ride"
	CategoryApp             Category = "app"
	CategoryOrdering        Category = "ordering"
	CategoryWarranty        Category = "warranty"
	CategoryTroubleshooting Category = "troubleshooting"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryGeneral,
	CategoryCharging,
	CategoryBattery,
	CategoryMaintenance,
	CategoryRide,
	CategoryApp,
	CategoryOrdering,
	CategoryWarranty,
	CategoryTroubleshooting,
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// ScooterModel is a scooter model tag such as "450X".
type ScooterModel string

// Key returns the comparison form of the model tag.
func (m ScooterModel) Key() string {
	return strings.ToLower(strings.TrimSpace(string(m)))
}

// ParseModels converts raw model strings, dropping blanks and duplicates.
func ParseModels(raw []string) []ScooterModel {
	seen := make(map[string]struct{}, len(raw))
	models := make([]ScooterModel, 0, len(raw))
	for _, r := range raw {
		m := ScooterModel(strings.TrimSpace(r))
		key := m.Key()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		models = append(models, m)
	}
	return models
}

// ModelKeys returns the sorted comparison keys of models.
func ModelKeys(models []ScooterModel) []string {
	keys := make([]string, 0, len(models))
	for _, m := range models {
		if k := m.Key(); k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Entry is one question/answer record of the knowledge base.
type Entry struct {
	ID               string         `json:"id" yaml:"id"`
	Question         string         `json:"question" yaml:"question"`
	Answer           string         `json:"answer" yaml:"answer"`
	Category         Category       `json:"category" yaml:"category"`
	ApplicableModels []ScooterModel `json:"applicable_models" yaml:"applicable_models"`
	Tags             []string       `json:"tags" yaml:"tags"`
	IsActive         bool           `json:"is_active" yaml:"is_active"`
	ViewCount        int64          `json:"view_count" yaml:"-"`
	HelpfulCount     int64          `json:"helpful_count" yaml:"-"`
	NotHelpfulCount  int64          `json:"not_helpful_count" yaml:"-"`
	CreatedAt        time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt        time.Time      `json:"updated_at" yaml:"-"`
}

// AppliesToAll reports whether the entry has no model restriction.
func (e Entry) AppliesToAll() bool {
	return len(e.ApplicableModels) == 0
}

// MatchesModels reports whether the entry's applicable models intersect models.
// An unrestricted entry does not count as a match.
func (e Entry) MatchesModels(models []ScooterModel) bool {
	if len(e.ApplicableModels) == 0 || len(models) == 0 {
		return false
	}
	want := make(map[string]struct{}, len(models))
	for _, m := range models {
		want[m.Key()] = struct{}{}
	}
	for _, m := range e.ApplicableModels {
		if _, ok := want[m.Key()]; ok {
			return true
		}
	}
	return false
}

// HelpfulRatio is helpful votes over all votes, or 0 without votes.
func (e Entry) HelpfulRatio() float64 {
	total := e.HelpfulCount + e.NotHelpfulCount
	if total == 0 {
		return 0
	}
	return float64(e.HelpfulCount) / float64(total)
}

// Query is a customer's free-text question with optional context.
type Query struct {
	Text       string
	UserModels []ScooterModel
	Category   *Category
}

// ScoredCandidate is an entry with its similarity to a query.
type ScoredCandidate struct {
	Entry         Entry   `json:"entry"`
	Score         float64 `json:"score"`
	ModelAffinity bool    `json:"model_affinity"`
}

// MatchResult is the ordered set of candidates that cleared the threshold.
// An empty result means the query should be escalated.
type MatchResult struct {
	Candidates []ScoredCandidate `json:"candidates"`
	Threshold  float64           `json:"threshold"`
	Scored     int               `json:"scored"`
	TimedOut   bool              `json:"timed_out"`
}

// Empty reports whether nothing cleared the threshold.
func (r *MatchResult) Empty() bool {
	return r == nil || len(r.Candidates) == 0
}

// Best returns the top candidate, if any.
func (r *MatchResult) Best() (ScoredCandidate, bool) {
	if r.Empty() {
		return ScoredCandidate{}, false
	}
	return r.Candidates[0], true
}
