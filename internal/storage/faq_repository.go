package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
)

const faqsTable = "faqs"

var faqColumns = []interface{}{
	"id", "question", "answer", "category", "applicable_models", "tags", "is_active",
	"view_count", "helpful_count", "not_helpful_count", "created_at", "updated_at",
}

// FAQFilter narrows FAQ listings.
type FAQFilter struct {
	Category   *faq.Category
	ActiveOnly bool
	Limit      int
	// Offset applies only together with Limit.
	Offset int
}

// FAQRepository handles FAQ CRUD and counter operations.
type FAQRepository struct {
	db      DB
	builder goqu.DialectWrapper
}

// NewFAQRepository creates a new FAQ repository.
func NewFAQRepository(db DB, driver string) *FAQRepository {
	return &FAQRepository{db: db, builder: newBuilder(driver)}
}

// CreateFAQ inserts a new FAQ. Missing ids are generated.
func (r *FAQRepository) CreateFAQ(ctx context.Context, entry *faq.Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	record, err := faqRecord(entry)
	if err != nil {
		return err
	}
	record["id"] = entry.ID
	record["view_count"] = entry.ViewCount
	record["helpful_count"] = entry.HelpfulCount
	record["not_helpful_count"] = entry.NotHelpfulCount
	record["created_at"] = entry.CreatedAt

	query, args, err := r.builder.Insert(faqsTable).Rows(record).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build faq insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert faq: %w", err)
	}
	return nil
}

// UpdateFAQ replaces the editable fields of an FAQ. Counters are untouched.
func (r *FAQRepository) UpdateFAQ(ctx context.Context, entry *faq.Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	entry.UpdatedAt = time.Now().UTC()

	record, err := faqRecord(entry)
	if err != nil {
		return err
	}

	query, args, err := r.builder.Update(faqsTable).
		Set(record).
		Where(goqu.Ex{"id": entry.ID}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build faq update: %w", err)
	}
	return r.execOne(ctx, query, args)
}

// SaveFAQ updates the FAQ when its id exists and creates it otherwise.
// It reports whether a new row was created.
func (r *FAQRepository) SaveFAQ(ctx context.Context, entry *faq.Entry) (bool, error) {
	if entry.ID != "" {
		err := r.UpdateFAQ(ctx, entry)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return false, err
		}
	}
	return true, r.CreateFAQ(ctx, entry)
}

// SetActive activates or deactivates an FAQ.
func (r *FAQRepository) SetActive(ctx context.Context, id string, active bool) error {
	query, args, err := r.builder.Update(faqsTable).
		Set(goqu.Record{"is_active": active, "updated_at": time.Now().UTC()}).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build faq activation: %w", err)
	}
	return r.execOne(ctx, query, args)
}

// GetFAQ retrieves an FAQ by id, active or not.
func (r *FAQRepository) GetFAQ(ctx context.Context, id string) (*faq.Entry, error) {
	query, args, err := r.builder.From(faqsTable).
		Select(faqColumns...).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build faq select: %w", err)
	}

	entry, err := scanFAQ(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

// ListFAQs lists FAQs ordered by id.
func (r *FAQRepository) ListFAQs(ctx context.Context, filter FAQFilter) ([]faq.Entry, error) {
	ds := r.builder.From(faqsTable).Select(faqColumns...)
	if filter.ActiveOnly {
		ds = ds.Where(goqu.L("is_active = ?", true))
	}
	if filter.Category != nil {
		ds = ds.Where(goqu.Ex{"category": string(*filter.Category)})
	}
	ds = ds.Order(goqu.I("id").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
		if filter.Offset > 0 {
			ds = ds.Offset(uint(filter.Offset))
		}
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build faq list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query faqs: %w", err)
	}
	defer rows.Close()

	entries := []faq.Entry{}
	for rows.Next() {
		entry, err := scanFAQ(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// ActiveFAQs returns the active corpus, optionally limited to one category.
func (r *FAQRepository) ActiveFAQs(ctx context.Context, category *faq.Category) ([]faq.Entry, error) {
	return r.ListFAQs(ctx, FAQFilter{ActiveOnly: true, Category: category})
}

// IncrementView adds one to the view count in a single statement.
func (r *FAQRepository) IncrementView(ctx context.Context, id string) error {
	return r.increment(ctx, id, "view_count")
}

// IncrementRating adds one to the helpful or not-helpful count.
func (r *FAQRepository) IncrementRating(ctx context.Context, id string, helpful bool) error {
	if helpful {
		return r.increment(ctx, id, "helpful_count")
	}
	return r.increment(ctx, id, "not_helpful_count")
}

func (r *FAQRepository) increment(ctx context.Context, id, column string) error {
	query, args, err := r.builder.Update(faqsTable).
		Set(goqu.Record{column: goqu.L(column + " + 1")}).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build %s increment: %w", column, err)
	}
	return r.execOne(ctx, query, args)
}

// execOne runs a statement that must affect exactly one row.
func (r *FAQRepository) execOne(ctx context.Context, query string, args []interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func validateEntry(entry *faq.Entry) error {
	if entry == nil {
		return faq.InputError("faq is nil", nil)
	}
	if strings.TrimSpace(entry.Question) == "" || strings.TrimSpace(entry.Answer) == "" {
		return faq.InputError("faq question and answer are required", nil)
	}
	if entry.Category == "" {
		entry.Category = faq.CategoryGeneral
	}
	if _, err := faq.ParseCategory(string(entry.Category)); err != nil {
		return faq.InputError("validate faq", err)
	}
	return nil
}

// faqRecord holds the editable columns of an FAQ.
func faqRecord(entry *faq.Entry) (goqu.Record, error) {
	models, err := encodeList(entry.ApplicableModels)
	if err != nil {
		return nil, fmt.Errorf("encode applicable models: %w", err)
	}
	tags, err := encodeList(entry.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return goqu.Record{
		"question":          entry.Question,
		"answer":            entry.Answer,
		"category":          string(entry.Category),
		"applicable_models": models,
		"tags":              tags,
		"is_active":         entry.IsActive,
		"updated_at":        entry.UpdatedAt,
	}, nil
}

// encodeList stores a list as JSON text; nil becomes "[]".
func encodeList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	return string(data), err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFAQ(row rowScanner) (*faq.Entry, error) {
	var (
		entry        faq.Entry
		category     string
		models, tags []byte
	)
	err := row.Scan(
		&entry.ID, &entry.Question, &entry.Answer, &category, &models, &tags, &entry.IsActive,
		&entry.ViewCount, &entry.HelpfulCount, &entry.NotHelpfulCount, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Category = faq.Category(category)

	if len(models) > 0 {
		if err := json.Unmarshal(models, &entry.ApplicableModels); err != nil {
			return nil, fmt.Errorf("decode applicable models of %s: %w", entry.ID, err)
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &entry.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", entry.ID, err)
		}
	}
	return &entry, nil
}
