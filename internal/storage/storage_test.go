package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/config"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/matching"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// faqStore is the operation set shared by the SQL repositories and MemoryStore.
type faqStore interface {
	CreateFAQ(ctx context.Context, entry *faq.Entry) error
	UpdateFAQ(ctx context.Context, entry *faq.Entry) error
	SaveFAQ(ctx context.Context, entry *faq.Entry) (bool, error)
	SetActive(ctx context.Context, id string, active bool) error
	GetFAQ(ctx context.Context, id string) (*faq.Entry, error)
	ListFAQs(ctx context.Context, filter FAQFilter) ([]faq.Entry, error)
	ActiveFAQs(ctx context.Context, category *faq.Category) ([]faq.Entry, error)
	IncrementView(ctx context.Context, id string) error
	IncrementRating(ctx context.Context, id string, helpful bool) error
}

type settingsStore interface {
	ConfidenceThreshold(ctx context.Context) (float64, error)
	SetConfidenceThreshold(ctx context.Context, threshold float64) error
}

var (
	_ faqStore              = (*FAQRepository)(nil)
	_ faqStore              = (*MemoryStore)(nil)
	_ settingsStore         = (*SettingsRepository)(nil)
	_ settingsStore         = (*MemoryStore)(nil)
	_ escalation.Repository = (*EscalationRepository)(nil)
	_ escalation.Repository = (*MemoryStore)(nil)
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenSQLite(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = NewMigrationManager(db, DriverSQLite, observability.NopLogger()).Migrate(context.Background())
	require.NoError(t, err)
	return db
}

type storeFactory func(t *testing.T) (faqStore, settingsStore, escalation.Repository)

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"sqlite": func(t *testing.T) (faqStore, settingsStore, escalation.Repository) {
			repos := NewRepositories(openTestDB(t), DriverSQLite, 0.15)
			return repos.FAQs, repos.Settings, repos.Escalations
		},
		"memory": func(t *testing.T) (faqStore, settingsStore, escalation.Repository) {
			m := NewMemoryStore(0.15)
			return m, m, m
		},
	}
}

func newEntry(id, question string, active bool, models ...faq.ScooterModel) *faq.Entry {
	return &faq.Entry{
		ID:               id,
		Question:         question,
		Answer:           "Answer to " + question,
		Category:         faq.CategoryCharging,
		ApplicableModels: models,
		Tags:             []string{"test"},
		IsActive:         active,
	}
}

func TestMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrationManager(db, DriverSQLite, nil)

	status, err := m.CheckMigrations(context.Background())
	require.NoError(t, err)
	assert.True(t, status.UpToDate)
	assert.Empty(t, status.Pending)
	assert.Equal(t, status.Total, len(status.Applied))

	again, err := m.Migrate(context.Background())
	require.NoError(t, err)
	assert.True(t, again.UpToDate)
}

func TestMigrations_ThresholdFollowsConfiguredDefault(t *testing.T) {
	repos := NewRepositories(openTestDB(t), DriverSQLite, 0.6)

	threshold, err := repos.Settings.ConfidenceThreshold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.6, threshold)

	engine := matching.NewEngine(nil, repos.FAQs, repos.Settings, nil, nil, nil, matching.EngineConfig{DefaultThreshold: 0.15})
	assert.Equal(t, 0.6, engine.Threshold(context.Background()))

	require.NoError(t, repos.Settings.SetConfidenceThreshold(context.Background(), 0.25))
	assert.Equal(t, 0.25, engine.Threshold(context.Background()))
}

func TestFAQStores_CRUD(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			faqs, _, _ := factory(t)
			ctx := context.Background()

			entry := newEntry("", "How do I charge my scooter?", true, "450X")
			require.NoError(t, faqs.CreateFAQ(ctx, entry))
			require.NotEmpty(t, entry.ID)

			got, err := faqs.GetFAQ(ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, entry.Question, got.Question)
			assert.Equal(t, faq.CategoryCharging, got.Category)
			assert.Equal(t, []faq.ScooterModel{"450X"}, got.ApplicableModels)
			assert.Equal(t, []string{"test"}, got.Tags)
			assert.True(t, got.IsActive)
			assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

			got.Answer = "Use the portable charger."
			require.NoError(t, faqs.UpdateFAQ(ctx, got))
			updated, err := faqs.GetFAQ(ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, "Use the portable charger.", updated.Answer)

			_, err = faqs.GetFAQ(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, faqs.UpdateFAQ(ctx, newEntry("missing", "q", true)), ErrNotFound)
		})
	}
}

func TestFAQStores_Validation(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			faqs, _, _ := factory(t)

			err := faqs.CreateFAQ(context.Background(), &faq.Entry{Question: "q"})
			assert.ErrorIs(t, err, faq.ErrInvalidInput)

			bad := newEntry("", "q", true)
			bad.Category = "weather"
			assert.ErrorIs(t, faqs.CreateFAQ(context.Background(), bad), faq.ErrInvalidInput)
		})
	}
}

func TestFAQStores_ActiveFAQs(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			faqs, _, _ := factory(t)
			ctx := context.Background()

			require.NoError(t, faqs.CreateFAQ(ctx, newEntry("a", "first", true)))
			require.NoError(t, faqs.CreateFAQ(ctx, newEntry("b", "second", false)))
			ordering := newEntry("c", "third", true)
			ordering.Category = faq.CategoryOrdering
			require.NoError(t, faqs.CreateFAQ(ctx, ordering))

			active, err := faqs.ActiveFAQs(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c"}, entryIDs(active))

			category := faq.CategoryOrdering
			filtered, err := faqs.ActiveFAQs(ctx, &category)
			require.NoError(t, err)
			assert.Equal(t, []string{"c"}, entryIDs(filtered))

			require.NoError(t, faqs.SetActive(ctx, "b", true))
			require.NoError(t, faqs.SetActive(ctx, "a", false))
			active, err = faqs.ActiveFAQs(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "c"}, entryIDs(active))

			all, err := faqs.ListFAQs(ctx, FAQFilter{Limit: 2, Offset: 1})
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "c"}, entryIDs(all))

			assert.ErrorIs(t, faqs.SetActive(ctx, "missing", true), ErrNotFound)
		})
	}
}

func TestFAQStores_SaveFAQ(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			faqs, _, _ := factory(t)
			ctx := context.Background()

			created, err := faqs.SaveFAQ(ctx, newEntry("faq-1", "first", true))
			require.NoError(t, err)
			assert.True(t, created)

			require.NoError(t, faqs.IncrementView(ctx, "faq-1"))

			edited := newEntry("faq-1", "first, edited", true)
			created, err = faqs.SaveFAQ(ctx, edited)
			require.NoError(t, err)
			assert.False(t, created)

			got, err := faqs.GetFAQ(ctx, "faq-1")
			require.NoError(t, err)
			assert.Equal(t, "first, edited", got.Question)
			assert.Equal(t, int64(1), got.ViewCount, "saving an FAQ keeps its counters")
		})
	}
}

func TestFAQStores_Counters(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			faqs, _, _ := factory(t)
			ctx := context.Background()
			require.NoError(t, faqs.CreateFAQ(ctx, newEntry("faq-1", "q", true)))

			require.NoError(t, faqs.IncrementView(ctx, "faq-1"))
			require.NoError(t, faqs.IncrementRating(ctx, "faq-1", true))
			require.NoError(t, faqs.IncrementRating(ctx, "faq-1", false))
			require.NoError(t, faqs.IncrementRating(ctx, "faq-1", false))

			got, err := faqs.GetFAQ(ctx, "faq-1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.ViewCount)
			assert.Equal(t, int64(1), got.HelpfulCount)
			assert.Equal(t, int64(2), got.NotHelpfulCount)

			assert.ErrorIs(t, faqs.IncrementView(ctx, "missing"), ErrNotFound)
			assert.ErrorIs(t, faqs.IncrementRating(ctx, "missing", true), ErrNotFound)
		})
	}
}

func TestFAQStores_ConcurrentViews(t *testing.T) {
	const k = 100
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			faqs, _, _ := factory(t)
			ctx := context.Background()
			require.NoError(t, faqs.CreateFAQ(ctx, newEntry("faq-1", "q", true)))

			var wg sync.WaitGroup
			for i := 0; i < k; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, faqs.IncrementView(ctx, "faq-1"))
				}()
			}
			wg.Wait()

			got, err := faqs.GetFAQ(ctx, "faq-1")
			require.NoError(t, err)
			assert.Equal(t, int64(k), got.ViewCount)
		})
	}
}

func TestSettingsStores(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			_, settings, _ := factory(t)
			ctx := context.Background()

			threshold, err := settings.ConfidenceThreshold(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0.15, threshold)

			require.NoError(t, settings.SetConfidenceThreshold(ctx, 0.4))
			threshold, err = settings.ConfidenceThreshold(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0.4, threshold)

			assert.Error(t, settings.SetConfidenceThreshold(ctx, -1))
		})
	}
}

func TestSettingsRepository_DefaultWhenUnset(t *testing.T) {
	db := openTestDB(t)

	repo := NewSettingsRepository(db, DriverSQLite, 0.15)
	threshold, err := repo.ConfidenceThreshold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.15, threshold)

	require.NoError(t, repo.Set(context.Background(), "greeting", "hello"))
	value, err := repo.Get(context.Background(), "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestSettingsRepository_ConcurrentFirstWrites(t *testing.T) {
	repo := NewSettingsRepository(openTestDB(t), DriverSQLite, 0.15)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.SetConfidenceThreshold(ctx, 0.3)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	threshold, err := repo.ConfidenceThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.3, threshold)

	require.NoError(t, repo.Set(ctx, SettingConfidenceThreshold, "0.45"))
	threshold, err = repo.ConfidenceThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.45, threshold)
}

func TestEscalationStores(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			_, _, repo := factory(t)
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

			for i, id := range []string{"esc-1", "esc-2"} {
				at := base.Add(time.Duration(i) * time.Minute)
				require.NoError(t, repo.CreateEscalation(ctx, &escalation.Escalation{
					ID:        id,
					QueryText: "help " + id,
					UserID:    "user-1",
					Priority:  escalation.PriorityHigh,
					Status:    escalation.StatusPending,
					CreatedAt: at,
					UpdatedAt: at,
				}))
			}

			all, err := repo.ListEscalations(ctx, nil)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "esc-2", all[0].ID, "newest first")

			resolvedAt := base.Add(time.Hour)
			require.NoError(t, repo.UpdateEscalationStatus(ctx, "esc-1", escalation.StatusPending, escalation.StatusInProgress, resolvedAt))
			require.NoError(t, repo.UpdateEscalationStatus(ctx, "esc-1", escalation.StatusInProgress, escalation.StatusResolved, resolvedAt))

			got, err := repo.GetEscalation(ctx, "esc-1")
			require.NoError(t, err)
			assert.Equal(t, escalation.StatusResolved, got.Status)
			require.NotNil(t, got.ResolvedAt)
			assert.True(t, resolvedAt.Equal(*got.ResolvedAt))
			assert.Equal(t, escalation.PriorityHigh, got.Priority)

			err = repo.UpdateEscalationStatus(ctx, "esc-1", escalation.StatusPending, escalation.StatusClosed, resolvedAt)
			assert.ErrorIs(t, err, escalation.ErrStaleStatus)

			err = repo.UpdateEscalationStatus(ctx, "missing", escalation.StatusPending, escalation.StatusClosed, resolvedAt)
			assert.ErrorIs(t, err, ErrNotFound)

			pending := escalation.StatusPending
			open, err := repo.ListEscalations(ctx, &pending)
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, "esc-2", open[0].ID)
			assert.Nil(t, open[0].ResolvedAt)
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func entryIDs(entries []faq.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
