package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/septivank/meter-reading-api/internal/db"
)

var (
	// ErrDuplicateMeasure is returned when a measure already exists for
	// the same datetime and type.
	ErrDuplicateMeasure = errors.New("measure already reported")
	// ErrMeasureNotFound is returned when no measure has the given uuid.
	ErrMeasureNotFound = errors.New("measure not found")
	// ErrAlreadyConfirmed is returned when confirming a confirmed measure.
	ErrAlreadyConfirmed = errors.New("measure already confirmed")
)

// DBTX is the part of pgxpool.Pool the repository uses
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository handles database operations
type Repository struct {
	db DBTX
}

// NewRepository creates a new repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// Exists reports whether a measure is already stored for the datetime and
// type. The datetime is compared as sent by the client.
func (r *Repository) Exists(ctx context.Context, measureDatetime string, measureType db.MeasureType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM measures
			WHERE measure_datetime = $1 AND measure_type = $2
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, measureDatetime, string(measureType)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check measure existence: %w", err)
	}
	return exists, nil
}

// Create stores the file reference and the measure in one transaction.
// A measure colliding with an existing (datetime, type) returns
// ErrDuplicateMeasure and nothing is written.
func (r *Repository) Create(ctx context.Context, file *db.File, measure *db.Measure) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.insertFileTx(ctx, tx, file); err != nil {
		return err
	}

	measure.FileID = &file.ID
	if err := r.insertMeasureTx(ctx, tx, measure); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) insertFileTx(ctx context.Context, tx pgx.Tx, file *db.File) error {
	query := `
		INSERT INTO files (id, file_name, file_uri, mime_type)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	if err := tx.QueryRow(ctx, query, file.ID, file.FileName, file.FileURI, file.MIMEType).Scan(&file.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (r *Repository) insertMeasureTx(ctx context.Context, tx pgx.Tx, measure *db.Measure) error {
	query := `
		INSERT INTO measures (
			measure_uuid, customer_code, measure_datetime, measured_at, measure_type,
			measure_value, image_url, file_id, anomaly_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (measure_datetime, measure_type) DO NOTHING
		RETURNING created_at
	`

	err := tx.QueryRow(ctx, query,
		measure.MeasureUUID,
		measure.CustomerCode,
		measure.MeasureDatetime,
		measure.MeasuredAt,
		string(measure.MeasureType),
		measure.MeasureValue,
		measure.ImageURL,
		measure.FileID,
		measure.AnomalyReason,
	).Scan(&measure.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateMeasure
	}
	if err != nil {
		return fmt.Errorf("failed to insert measure: %w", err)
	}
	return nil
}

// Status returns existence and confirmation state in one lookup.
// Identifiers that are not UUIDs do not exist.
func (r *Repository) Status(ctx context.Context, measureUUID string) (db.MeasureStatus, error) {
	id, err := uuid.Parse(measureUUID)
	if err != nil {
		return db.MeasureStatus{}, nil
	}

	query := `
		SELECT confirmed_at IS NOT NULL AS confirmed
		FROM measures
		WHERE measure_uuid = $1
	`

	var confirmed bool
	err = r.db.QueryRow(ctx, query, id).Scan(&confirmed)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.MeasureStatus{}, nil
	}
	if err != nil {
		return db.MeasureStatus{}, fmt.Errorf("failed to query measure status: %w", err)
	}

	return db.MeasureStatus{Exists: true, Confirmed: confirmed}, nil
}

// Confirm sets the confirmed value of an unconfirmed measure. The update is
// conditional, so of two concurrent confirmations only one succeeds; the
// other gets ErrAlreadyConfirmed.
func (r *Repository) Confirm(ctx context.Context, measureUUID string, value int64) (*db.Measure, error) {
	id, err := uuid.Parse(measureUUID)
	if err != nil {
		return nil, ErrMeasureNotFound
	}

	query := `
		UPDATE measures
		SET measure_value = $1, confirmed_at = NOW()
		WHERE measure_uuid = $2 AND confirmed_at IS NULL
		RETURNING measure_uuid, customer_code, measure_datetime, measured_at, measure_type,
			measure_value, image_url, file_id, anomaly_reason, confirmed_at, created_at
	`

	measure, err := scanMeasure(r.db.QueryRow(ctx, query, value, id))
	if errors.Is(err, pgx.ErrNoRows) {
		status, statusErr := r.Status(ctx, measureUUID)
		if statusErr != nil {
			return nil, statusErr
		}
		if status.Exists {
			return nil, ErrAlreadyConfirmed
		}
		return nil, ErrMeasureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to confirm measure: %w", err)
	}

	return measure, nil
}

// List returns a customer's measures, optionally filtered by type. Readings
// with a parsed instant come first in time order. No match yields an empty
// slice.
func (r *Repository) List(ctx context.Context, customerCode string, measureType *db.MeasureType) ([]db.MeasureSummary, error) {
	query := `
		SELECT measure_uuid, measure_datetime, measure_type, confirmed_at IS NOT NULL AS has_confirmed, image_url
		FROM measures
		WHERE customer_code = $1 AND ($2::text IS NULL OR measure_type = $2)
		ORDER BY measured_at ASC NULLS LAST, measure_datetime ASC, created_at ASC
	`

	var typeFilter *string
	if measureType != nil {
		t := string(*measureType)
		typeFilter = &t
	}

	rows, err := r.db.Query(ctx, query, customerCode, typeFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to query measures: %w", err)
	}
	defer rows.Close()

	measures := []db.MeasureSummary{}
	for rows.Next() {
		var (
			m       db.MeasureSummary
			typeStr string
		)
		if err := rows.Scan(&m.MeasureUUID, &m.MeasureDatetime, &typeStr, &m.HasConfirmed, &m.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan measure: %w", err)
		}
		m.MeasureType = db.MeasureType(typeStr)
		measures = append(measures, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return measures, nil
}

// RecentValues gets the latest readings measured before the given instant,
// newest first, for plausibility checks.
func (r *Repository) RecentValues(ctx context.Context, customerCode string, measureType db.MeasureType, before time.Time, limit int) ([]int64, error) {
	query := `
		SELECT measure_value
		FROM measures
		WHERE customer_code = $1 AND measure_type = $2 AND measured_at < $3
		ORDER BY measured_at DESC
		LIMIT $4
	`

	rows, err := r.db.Query(ctx, query, customerCode, string(measureType), before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	var values []int64
	for rows.Next() {
		var value int64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return values, nil
}

func scanMeasure(row pgx.Row) (*db.Measure, error) {
	var (
		m       db.Measure
		typeStr string
	)
	err := row.Scan(
		&m.MeasureUUID,
		&m.CustomerCode,
		&m.MeasureDatetime,
		&m.MeasuredAt,
		&typeStr,
		&m.MeasureValue,
		&m.ImageURL,
		&m.FileID,
		&m.AnomalyReason,
		&m.ConfirmedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.MeasureType = db.MeasureType(typeStr)
	return &m, nil
}
