// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package history persists committed geocode batches in DuckDB.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gimi9/geocode-web/geocode"
	"github.com/gimi9/geocode-web/spatial"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when no batch matches.
var ErrNotFound = errors.New("batch not found")

// Record is a stored batch.
type Record struct {
	ID        int64          `json:"id"`
	Session   string         `json:"session"`
	Source    string         `json:"source"`
	Name      string         `json:"name"`
	Query     string         `json:"query,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Batch     *geocode.Batch `json:"-"`
}

// CellCount is the number of located results of a batch inside an H3 cell.
type CellCount struct {
	Cell  string `json:"cell"`
	Count int    `json:"count"`
}

// Repository stores batches and their results.
type Repository interface {
	// CreateSchema creates the batches and results tables
	CreateSchema() error

	// SaveBatch stores rec with all its results and returns the new batch ID
	SaveBatch(ctx context.Context, rec *Record) (int64, error)

	// GetBatch loads a batch with its results
	GetBatch(ctx context.Context, id int64) (*Record, error)

	// LatestBatch loads the most recent batch of a session
	LatestBatch(ctx context.Context, session string) (*Record, error)

	// ListBatches returns batches without their results, newest first. An
	// empty session lists every session.
	ListBatches(ctx context.Context, session string, limit int) ([]*Record, error)

	// CellCounts aggregates the located results of a batch per H3 cell
	CellCounts(ctx context.Context, id int64, res int) ([]CellCount, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlRepository struct {
	db *sql.DB
}

// NewRepository creates a DuckDB backed repository.
func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

func (r *sqlRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS batches_seq START 1;

		CREATE TABLE IF NOT EXISTS batches (
			id BIGINT PRIMARY KEY DEFAULT nextval('batches_seq'),
			session VARCHAR NOT NULL,
			source VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			query TEXT,
			total_time DOUBLE NOT NULL,
			total_count INTEGER NOT NULL,
			success_count INTEGER NOT NULL,
			hd_success_count INTEGER NOT NULL,
			fail_count INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS results (
			batch_id BIGINT NOT NULL,
			position INTEGER NOT NULL,
			result_id VARCHAR NOT NULL,
			inputaddr VARCHAR NOT NULL,
			lat DOUBLE,
			lng DOUBLE,
			fields VARCHAR NOT NULL,
			h3_res1 UBIGINT,
			h3_res2 UBIGINT,
			h3_res3 UBIGINT,
			h3_res4 UBIGINT,
			h3_res5 UBIGINT,
			h3_res6 UBIGINT,
			h3_res7 UBIGINT,
			h3_res8 UBIGINT,
			PRIMARY KEY (batch_id, position)
		);
	`)
	if err != nil {
		return eris.Wrap(err, "creating history schema")
	}

	return nil
}

func (r *sqlRepository) SaveBatch(ctx context.Context, rec *Record) (int64, error) {
	if rec.Batch == nil {
		return 0, errors.New("batch can't be null")
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "starting transaction")
	}

	id, err := insertBatch(ctx, tx, rec)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = rErr // Prioritize the rollback error
		}

		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "committing batch")
	}

	rec.ID = id

	return id, nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, rec *Record) (int64, error) {
	b := rec.Batch

	var id int64

	err := tx.QueryRowContext(ctx, `
		INSERT INTO batches(
			session, source, name, query,
			total_time, total_count, success_count, hd_success_count, fail_count,
			created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		rec.Session,
		rec.Source,
		rec.Name,
		nullString(rec.Query),
		b.TotalTime,
		b.TotalCount,
		b.SuccessCount,
		b.HdSuccessCount,
		b.FailCount,
		rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "inserting batch")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results(
			batch_id, position, result_id, inputaddr, lat, lng, fields,
			h3_res1, h3_res2, h3_res3, h3_res4, h3_res5, h3_res6, h3_res7, h3_res8
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, eris.Wrap(err, "preparing result insert")
	}
	defer stmt.Close()

	for pos, res := range b.Results {
		if res.ID == "" {
			res.ID = uuid.NewString()
		}

		fields, err := res.MarshalJSON()
		if err != nil {
			return 0, eris.Wrapf(err, "encoding result %d", pos)
		}

		cells := make([]any, spatial.MaxCellResolution)

		if p, ok := res.Point(); ok {
			hex, err := spatial.Cells(p)
			if err != nil {
				return 0, eris.Wrapf(err, "indexing result %d", pos)
			}

			for i, c := range hex {
				cells[i] = c
			}
		}

		args := []any{id, pos, res.ID, res.InputAddress, res.Lat, res.Lng, string(fields)}
		args = append(args, cells...)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "inserting result %d", pos)
		}
	}

	return id, nil
}

func (r *sqlRepository) GetBatch(ctx context.Context, id int64) (*Record, error) {
	return r.loadBatch(ctx, `WHERE id = ?`, id)
}

func (r *sqlRepository) LatestBatch(ctx context.Context, session string) (*Record, error) {
	return r.loadBatch(ctx, `WHERE session = ? ORDER BY created_at DESC, id DESC LIMIT 1`, session)
}

func (r *sqlRepository) loadBatch(ctx context.Context, where string, args ...any) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, batchColumns+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, eris.Wrap(err, "loading batch")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT result_id, fields
		FROM results
		WHERE batch_id = ?
		ORDER BY position
	`, rec.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "loading results of batch %d", rec.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var resultID, raw string
		if err := rows.Scan(&resultID, &raw); err != nil {
			return nil, eris.Wrap(err, "scanning result")
		}

		var res geocode.Result
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return nil, eris.Wrapf(err, "decoding result %s", resultID)
		}

		res.ID = resultID
		rec.Batch.Results = append(rec.Batch.Results, &res)
	}

	return rec, rows.Err()
}

const batchColumns = `
	SELECT id, session, source, name, query,
	       total_time, total_count, success_count, hd_success_count, fail_count,
	       created_at
	FROM batches
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	rec := &Record{Batch: &geocode.Batch{}}

	var query sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.Session,
		&rec.Source,
		&rec.Name,
		&query,
		&rec.Batch.TotalTime,
		&rec.Batch.TotalCount,
		&rec.Batch.SuccessCount,
		&rec.Batch.HdSuccessCount,
		&rec.Batch.FailCount,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if query.Valid {
		rec.Query = query.String
	}

	return rec, nil
}

func (r *sqlRepository) ListBatches(ctx context.Context, session string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	query := batchColumns
	args := []any{}

	if session != "" {
		query += ` WHERE session = ?`
		args = append(args, session)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "listing batches")
	}
	defer rows.Close()

	var records []*Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scanning batch")
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *sqlRepository) CellCounts(ctx context.Context, id int64, res int) ([]CellCount, error) {
	if res < 1 || res > spatial.MaxCellResolution {
		return nil, fmt.Errorf("invalid h3 resolution %d", res)
	}

	column := fmt.Sprintf("h3_res%d", res)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %[1]s, count(*)
		FROM results
		WHERE batch_id = ? AND %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY count(*) DESC, %[1]s
	`, column), id)
	if err != nil {
		return nil, eris.Wrapf(err, "counting cells of batch %d", id)
	}
	defer rows.Close()

	var counts []CellCount

	for rows.Next() {
		var (
			cell  int64
			count int
		)

		if err := rows.Scan(&cell, &count); err != nil {
			return nil, eris.Wrap(err, "scanning cell count")
		}

		counts = append(counts, CellCount{Cell: spatial.CellString(cell), Count: count})
	}

	return counts, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
