package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/escalation"
)

const escalationsTable = "escalations"

var escalationColumns = []interface{}{
	"id", "query_text", "user_id", "session_id", "priority", "status",
	"created_at", "updated_at", "resolved_at",
}

// EscalationRepository handles escalation persistence.
type EscalationRepository struct {
	db      DB
	builder goqu.DialectWrapper
}

// NewEscalationRepository creates a new escalation repository.
func NewEscalationRepository(db DB, driver string) *EscalationRepository {
	return &EscalationRepository{db: db, builder: newBuilder(driver)}
}

// CreateEscalation inserts a new escalation.
func (r *EscalationRepository) CreateEscalation(ctx context.Context, e *escalation.Escalation) error {
	record := goqu.Record{
		"id":         e.ID,
		"query_text": e.QueryText,
		"user_id":    e.UserID,
		"session_id": e.SessionID,
		"priority":   string(e.Priority),
		"status":     string(e.Status),
		"created_at": e.CreatedAt,
		"updated_at": e.UpdatedAt,
	}
	if e.ResolvedAt != nil {
		record["resolved_at"] = *e.ResolvedAt
	}

	query, args, err := r.builder.Insert(escalationsTable).
		Rows(record).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build escalation insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

// GetEscalation retrieves an escalation by id.
func (r *EscalationRepository) GetEscalation(ctx context.Context, id string) (*escalation.Escalation, error) {
	query, args, err := r.builder.From(escalationsTable).
		Select(escalationColumns...).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build escalation select: %w", err)
	}

	e, err := scanEscalation(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListEscalations lists escalations newest first, optionally by status.
func (r *EscalationRepository) ListEscalations(ctx context.Context, status *escalation.Status) ([]*escalation.Escalation, error) {
	ds := r.builder.From(escalationsTable).Select(escalationColumns...)
	if status != nil {
		ds = ds.Where(goqu.Ex{"status": string(*status)})
	}
	ds = ds.Order(goqu.I("created_at").Desc(), goqu.I("id").Asc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build escalation list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer rows.Close()

	escalations := []*escalation.Escalation{}
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		escalations = append(escalations, e)
	}
	return escalations, rows.Err()
}

// UpdateEscalationStatus moves an escalation from one status to another. The
// update only applies while the stored status still equals from.
func (r *EscalationRepository) UpdateEscalationStatus(
	ctx context.Context,
	id string,
	from, to escalation.Status,
	at time.Time,
) error {
	record := goqu.Record{"status": string(to), "updated_at": at}
	if to == escalation.StatusResolved {
		record["resolved_at"] = at
	}

	query, args, err := r.builder.Update(escalationsTable).
		Set(record).
		Where(goqu.Ex{"id": id, "status": string(from)}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build escalation update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update escalation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	if _, err := r.GetEscalation(ctx, id); err != nil {
		return err
	}
	return escalation.ErrStaleStatus
}

func scanEscalation(row rowScanner) (*escalation.Escalation, error) {
	var (
		e                escalation.Escalation
		priority, status string
		resolvedAt       sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.QueryText, &e.UserID, &e.SessionID, &priority, &status,
		&e.CreatedAt, &e.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Priority = escalation.Priority(priority)
	e.Status = escalation.Status(status)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		e.ResolvedAt = &t
	}
	return &e, nil
}
