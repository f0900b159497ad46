// Package store implements the durable crash-report table: the system of
// record between ingestion and confirmed upload. Rows hold only
// codec-encrypted payloads; plaintext crash text never reaches disk. The
// timestamp and fatal flag are duplicated in clear columns so retention and
// ordering queries work without decryption.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/store/migrations"
	"github.com/pressly/goose/v3"
)

// Row is one durable crash report. Payload is the encrypted serialized
// record.
type Row struct {
	ID        int64
	CreatedAt time.Time
	IsFatal   bool
	Payload   string
}

// Repository describes the operations the workers need from the durable
// store. Insert/delete are atomic per call through the database's own
// transactional guarantees.
type Repository interface {
	// Insert stores a new row and assigns its identifier.
	Insert(ctx context.Context, row *Row) error

	// GetAll returns every row ordered by id ascending.
	GetAll(ctx context.Context) ([]Row, error)

	// DeleteByIDs removes exactly the given rows; ids not present are
	// ignored. A nil/empty slice is a no-op.
	DeleteByIDs(ctx context.Context, ids []int64) error

	// DeleteOlderThan removes rows created before cutoff and reports how
	// many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if necessary) the sqlite database at dsn and brings
// the schema up to date.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}
