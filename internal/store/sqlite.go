package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, row *Row) error {
	query := `INSERT INTO crash_reports (created_at, is_fatal, payload) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, row.CreatedAt.UnixMilli(), row.IsFatal, row.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert crash report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert id: %w", err)
	}
	row.ID = id
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]Row, error) {
	query := `SELECT id, created_at, is_fatal, payload FROM crash_reports ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select crash reports: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var item Row
		var millis int64
		if err := rows.Scan(&item.ID, &millis, &item.IsFatal, &item.Payload); err != nil {
			return nil, err
		}
		item.CreatedAt = time.UnixMilli(millis).UTC()
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `DELETE FROM crash_reports WHERE id IN (` + placeholders + `)`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete crash reports: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM crash_reports WHERE created_at < ?`
	res, err := r.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired crash reports: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra, nil
}
