//go:build integration

package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/config"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("faq_engine_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test:test@%s:%s/faq_engine_test?sslmode=disable", host, port.Port())
}

func TestPostgres_Repositories(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	db, err := Open(config.DatabaseConfig{
		Driver:   DriverPostgres,
		Postgres: config.PostgresConfig{DSN: dsn, MaxOpenConns: 10},
	})
	require.NoError(t, err)
	defer db.Close()

	status, err := NewMigrationManager(db, DriverPostgres, observability.NopLogger()).Migrate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, status.Pending)

	repos := NewRepositories(db, DriverPostgres, 0.15)

	threshold, err := repos.Settings.ConfidenceThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.15, threshold)
	require.NoError(t, repos.Settings.SetConfidenceThreshold(ctx, 0.3))
	threshold, err = repos.Settings.ConfidenceThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.3, threshold)

	entry := newEntry("", "How do I charge my scooter?", true, "450X", "Rizta")
	require.NoError(t, repos.FAQs.CreateFAQ(ctx, entry))
	require.NoError(t, repos.FAQs.CreateFAQ(ctx, newEntry("", "Retired question", false)))

	active, err := repos.FAQs.ActiveFAQs(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, []faq.ScooterModel{"450X", "Rizta"}, active[0].ApplicableModels)

	const k = 50
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repos.FAQs.IncrementView(ctx, entry.ID))
			assert.NoError(t, repos.FAQs.IncrementRating(ctx, entry.ID, i%2 == 0))
		}(i)
	}
	wg.Wait()

	got, err := repos.FAQs.GetFAQ(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(k), got.ViewCount)
	assert.Equal(t, int64(k), got.HelpfulCount+got.NotHelpfulCount)

	svc := escalation.NewService(observability.NopLogger(), repos.Escalations, nil, "", nil)
	id, err := svc.Create(ctx, escalation.CreateRequest{QueryText: "The brakes are squeaking"})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, id, escalation.StatusInProgress)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, id, escalation.StatusPending)
	assert.ErrorIs(t, err, escalation.ErrInvalidTransition)

	inProgress := escalation.StatusInProgress
	list, err := svc.List(ctx, &inProgress)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, escalation.PriorityHigh, list[0].Priority)
}
