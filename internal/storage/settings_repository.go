package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
)

const (
	settingsTable = "system_settings"

	// SettingConfidenceThreshold is the settings key of the match threshold.
	SettingConfidenceThreshold = "confidence_threshold"
)

// SettingsRepository reads and writes process-wide settings.
type SettingsRepository struct {
	db               DB
	builder          goqu.DialectWrapper
	defaultThreshold float64
}

// NewSettingsRepository creates a settings repository. defaultThreshold is
// returned when no threshold has been stored.
func NewSettingsRepository(db DB, driver string, defaultThreshold float64) *SettingsRepository {
	return &SettingsRepository{db: db, builder: newBuilder(driver), defaultThreshold: defaultThreshold}
}

// Get returns a setting value.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	query, args, err := r.builder.From(settingsTable).
		Select("value").
		Where(goqu.Ex{"key": key}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("build settings select: %w", err)
	}

	var value string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// Set stores a setting value, inserting or replacing it in one statement.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query, args, err := r.builder.Insert(settingsTable).
		Rows(goqu.Record{"key": key, "value": value, "updated_at": time.Now().UTC()}).
		OnConflict(goqu.DoUpdate("key", goqu.Record{
			"value":      goqu.I("excluded.value"),
			"updated_at": goqu.I("excluded.updated_at"),
		})).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build settings upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}
	return nil
}

// ConfidenceThreshold returns the stored match threshold, or the default
// when none is stored.
func (r *SettingsRepository) ConfidenceThreshold(ctx context.Context) (float64, error) {
	value, err := r.Get(ctx, SettingConfidenceThreshold)
	if errors.Is(err, ErrNotFound) {
		return r.defaultThreshold, nil
	}
	if err != nil {
		return 0, err
	}

	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", SettingConfidenceThreshold, value, err)
	}
	return threshold, nil
}

// SetConfidenceThreshold stores the match threshold.
func (r *SettingsRepository) SetConfidenceThreshold(ctx context.Context, threshold float64) error {
	if threshold < 0 {
		return fmt.Errorf("confidence threshold must be non-negative, got %v", threshold)
	}
	return r.Set(ctx, SettingConfidenceThreshold, strconv.FormatFloat(threshold, 'f', -1, 64))
}
