package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"record-sync/models"
	"record-sync/query"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the document-store capability set the rest of the service is
// written against. Operations fail with the underlying store error;
// callers never retry automatically.
type Store interface {
	Count(ctx context.Context, filter []query.Condition) (int, error)
	Find(ctx context.Context, filter []query.Condition, sort []query.Sort, skip, limit int) ([]*models.Record, error)
	FindByID(ctx context.Context, id string) (*models.Record, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Record, error)
	Create(ctx context.Context, rec *models.Record) (*models.Record, error)
	UpdateByID(ctx context.Context, id string, rec *models.Record) (*models.Record, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// RecordStore is the SQLite-backed Store.
type RecordStore struct {
	db *DB
}

func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

const recordColumns = `id, user_id, external_id, kind, phone_number, direction, status,
	duration, content, attachments, notes, occurred_at, end_time, created_at, updated_at`

var opSQL = map[query.Op]string{
	query.OpEq:  "=",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

// buildWhere renders the condition tree as a parameterized WHERE clause.
// Field names were validated against the registry at parse time.
func buildWhere(filter []query.Condition) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))

	for _, cond := range filter {
		column, ok := query.Column(cond.Field)
		if !ok {
			return "", nil, fmt.Errorf("unknown filter field %q", cond.Field)
		}

		if cond.Op == query.OpIn {
			values, ok := cond.Value.([]any)
			if !ok || len(values) == 0 {
				return "", nil, fmt.Errorf("in filter on %q needs a value list", cond.Field)
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, placeholders))
			args = append(args, values...)
			continue
		}

		op, ok := opSQL[cond.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator %q", cond.Op)
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", column, op))
		args = append(args, cond.Value)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func buildOrder(sort []query.Sort) (string, error) {
	if len(sort) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(sort))
	for _, s := range sort {
		column, ok := query.Column(s.Field)
		if !ok {
			return "", fmt.Errorf("unknown sort field %q", s.Field)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, column+" "+dir)
	}

	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (s *RecordStore) Count(ctx context.Context, filter []query.Condition) (int, error) {
	where, args, err := buildWhere(filter)
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records"+where, args...).Scan(&count)
	return count, err
}

func (s *RecordStore) Find(ctx context.Context, filter []query.Condition, sort []query.Sort, skip, limit int) ([]*models.Record, error) {
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}
	order, err := buildOrder(sort)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + recordColumns + " FROM records" + where + order + " LIMIT ? OFFSET ?"
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*models.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *RecordStore) FindByID(ctx context.Context, id string) (*models.Record, error) {
	return s.findOne(ctx, "id = ?", id)
}

// FindByExternalID matches a record by its client-supplied identifier.
// The lookup is store-wide, not owner-scoped; sync relies on this to
// reconcile records previously created by the same device.
func (s *RecordStore) FindByExternalID(ctx context.Context, externalID string) (*models.Record, error) {
	return s.findOne(ctx, "external_id = ?", externalID)
}

func (s *RecordStore) findOne(ctx context.Context, where string, arg any) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE "+where+" LIMIT 1", arg)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RecordStore) Create(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	attachments, err := encodeAttachments(rec.Attachments)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, user_id, external_id, kind, phone_number, direction, status,
			duration, content, attachments, notes, occurred_at, end_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.UserID, nullString(rec.ExternalID), rec.Kind, rec.PhoneNumber,
		rec.Direction, rec.Status, rec.Duration, nullString(rec.Content), attachments,
		nullString(rec.Notes), rec.OccurredAt.UTC(), nullTime(rec.EndTime),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// UpdateByID replaces the record's mutable fields wholesale. Owner and
// creation time are never touched. Returns nil when no record has the id.
func (s *RecordStore) UpdateByID(ctx context.Context, id string, rec *models.Record) (*models.Record, error) {
	attachments, err := encodeAttachments(rec.Attachments)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET
			external_id = ?,
			kind = ?,
			phone_number = ?,
			direction = ?,
			status = ?,
			duration = ?,
			content = ?,
			attachments = ?,
			notes = ?,
			occurred_at = ?,
			end_time = ?,
			updated_at = ?
		WHERE id = ?
	`,
		nullString(rec.ExternalID), rec.Kind, rec.PhoneNumber, rec.Direction,
		rec.Status, rec.Duration, nullString(rec.Content), attachments,
		nullString(rec.Notes), rec.OccurredAt.UTC(), nullTime(rec.EndTime),
		time.Now().UTC(), id,
	)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	return s.FindByID(ctx, id)
}

func (s *RecordStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var rec models.Record
	var externalID, content, attachments, notes sql.NullString
	var endTime sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.UserID, &externalID, &rec.Kind, &rec.PhoneNumber,
		&rec.Direction, &rec.Status, &rec.Duration, &content, &attachments,
		&notes, &rec.OccurredAt, &endTime, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ExternalID = externalID.String
	rec.Content = content.String
	rec.Notes = notes.String
	if endTime.Valid {
		t := endTime.Time
		rec.EndTime = &t
	}
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &rec.Attachments); err != nil {
			return nil, fmt.Errorf("corrupt attachments for record %s: %w", rec.ID, err)
		}
	}

	return &rec, nil
}

func encodeAttachments(attachments []string) (any, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
