package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
)

// MemoryStore keeps FAQs, escalations and settings in process memory. It
// serves the same operations as the SQL repositories and is safe for
// concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	faqs        map[string]faq.Entry
	escalations map[string]escalation.Escalation
	threshold   float64
}

// NewMemoryStore creates an empty store with the given threshold.
func NewMemoryStore(threshold float64) *MemoryStore {
	return &MemoryStore{
		faqs:        make(map[string]faq.Entry),
		escalations: make(map[string]escalation.Escalation),
		threshold:   threshold,
	}
}

// CreateFAQ stores a new FAQ. Missing ids are generated.
func (s *MemoryStore) CreateFAQ(ctx context.Context, entry *faq.Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.faqs[entry.ID] = cloneEntry(*entry)
	return nil
}

// UpdateFAQ replaces the editable fields of an FAQ.
func (s *MemoryStore) UpdateFAQ(ctx context.Context, entry *faq.Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.faqs[entry.ID]
	if !ok {
		return ErrNotFound
	}
	entry.UpdatedAt = time.Now().UTC()
	entry.CreatedAt = stored.CreatedAt
	entry.ViewCount = stored.ViewCount
	entry.HelpfulCount = stored.HelpfulCount
	entry.NotHelpfulCount = stored.NotHelpfulCount
	s.faqs[entry.ID] = cloneEntry(*entry)
	return nil
}

// SaveFAQ updates an existing FAQ or creates it.
func (s *MemoryStore) SaveFAQ(ctx context.Context, entry *faq.Entry) (bool, error) {
	if entry.ID != "" {
		s.mu.RLock()
		_, exists := s.faqs[entry.ID]
		s.mu.RUnlock()
		if exists {
			return false, s.UpdateFAQ(ctx, entry)
		}
	}
	return true, s.CreateFAQ(ctx, entry)
}

// SetActive activates or deactivates an FAQ.
func (s *MemoryStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.faqs[id]
	if !ok {
		return ErrNotFound
	}
	e.IsActive = active
	e.UpdatedAt = time.Now().UTC()
	s.faqs[id] = e
	return nil
}

// GetFAQ returns a copy of the FAQ.
func (s *MemoryStore) GetFAQ(ctx context.Context, id string) (*faq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.faqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := cloneEntry(e)
	return &copied, nil
}

// ListFAQs lists FAQs ordered by id.
func (s *MemoryStore) ListFAQs(ctx context.Context, filter FAQFilter) ([]faq.Entry, error) {
	s.mu.RLock()
	entries := make([]faq.Entry, 0, len(s.faqs))
	for _, e := range s.faqs {
		if filter.ActiveOnly && !e.IsActive {
			continue
		}
		if filter.Category != nil && e.Category != *filter.Category {
			continue
		}
		entries = append(entries, cloneEntry(e))
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	if filter.Limit > 0 {
		start := filter.Offset
		if start > len(entries) {
			start = len(entries)
		}
		end := start + filter.Limit
		if end > len(entries) {
			end = len(entries)
		}
		entries = entries[start:end]
	}
	return entries, nil
}

// ActiveFAQs returns the active corpus, optionally limited to one category.
func (s *MemoryStore) ActiveFAQs(ctx context.Context, category *faq.Category) ([]faq.Entry, error) {
	return s.ListFAQs(ctx, FAQFilter{ActiveOnly: true, Category: category})
}

// IncrementView adds one to the view count.
func (s *MemoryStore) IncrementView(ctx context.Context, id string) error {
	return s.update(id, func(e *faq.Entry) { e.ViewCount++ })
}

// IncrementRating adds one to the helpful or not-helpful count.
func (s *MemoryStore) IncrementRating(ctx context.Context, id string, helpful bool) error {
	return s.update(id, func(e *faq.Entry) {
		if helpful {
			e.HelpfulCount++
		} else {
			e.NotHelpfulCount++
		}
	})
}

func (s *MemoryStore) update(id string, fn func(*faq.Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.faqs[id]
	if !ok {
		return ErrNotFound
	}
	fn(&e)
	s.faqs[id] = e
	return nil
}

// CreateEscalation stores a new escalation.
func (s *MemoryStore) CreateEscalation(ctx context.Context, e *escalation.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalations[e.ID] = *e
	return nil
}

// GetEscalation returns a copy of the escalation.
func (s *MemoryStore) GetEscalation(ctx context.Context, id string) (*escalation.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escalations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// ListEscalations lists escalations newest first, optionally by status.
func (s *MemoryStore) ListEscalations(ctx context.Context, status *escalation.Status) ([]*escalation.Escalation, error) {
	s.mu.RLock()
	out := make([]*escalation.Escalation, 0, len(s.escalations))
	for _, e := range s.escalations {
		if status != nil && e.Status != *status {
			continue
		}
		e := e
		out = append(out, &e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateEscalationStatus moves an escalation while its status still equals from.
func (s *MemoryStore) UpdateEscalationStatus(
	ctx context.Context,
	id string,
	from, to escalation.Status,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escalations[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != from {
		return escalation.ErrStaleStatus
	}
	e.Status = to
	e.UpdatedAt = at
	if to == escalation.StatusResolved {
		resolved := at
		e.ResolvedAt = &resolved
	}
	s.escalations[id] = e
	return nil
}

// ConfidenceThreshold returns the stored match threshold.
func (s *MemoryStore) ConfidenceThreshold(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold, nil
}

// SetConfidenceThreshold stores the match threshold.
func (s *MemoryStore) SetConfidenceThreshold(ctx context.Context, threshold float64) error {
	if threshold < 0 {
		return fmt.Errorf("confidence threshold must be non-negative, got %v", threshold)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = threshold
	return nil
}

func cloneEntry(e faq.Entry) faq.Entry {
	if e.ApplicableModels != nil {
		e.ApplicableModels = append([]faq.ScooterModel(nil), e.ApplicableModels...)
	}
	if e.Tags != nil {
		e.Tags = append([]string(nil), e.Tags...)
	}
	return e
}
