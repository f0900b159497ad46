package worker

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
	"github.com/dmitrijs2005/crashkeeper/internal/config"
	"github.com/dmitrijs2005/crashkeeper/internal/cryptox"
	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/dmitrijs2005/crashkeeper/internal/models"
	"github.com/dmitrijs2005/crashkeeper/internal/staging"
	"github.com/dmitrijs2005/crashkeeper/internal/store"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// fakeScheduler records Schedule calls.
type fakeScheduler struct {
	mu    sync.Mutex
	kinds []Kind
}

func (s *fakeScheduler) Schedule(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
}

func (s *fakeScheduler) scheduled() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Kind(nil), s.kinds...)
}

// memHeaderStore is a throwaway HeaderStore for registry construction.
type memHeaderStore struct {
	headers map[string]string
}

func (s *memHeaderStore) Load() (map[string]string, error) {
	if s.headers == nil {
		return map[string]string{}, nil
	}
	return s.headers, nil
}
func (s *memHeaderStore) Save(h map[string]string) error { s.headers = h; return nil }
func (s *memHeaderStore) Clear() error                   { s.headers = nil; return nil }

type pipeline struct {
	queue      *staging.Queue
	fileCodec  *cryptox.Codec
	storeCodec *cryptox.Codec
	repo       *store.SQLiteRepository
	registry   *config.Registry
	sched      *fakeScheduler
	log        logging.Logger
	db         *sql.DB
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.RunMigrations(context.Background(), db))

	fileCodec, err := cryptox.NewCodec(common.GenerateRandByteArray(cryptox.KeySize))
	require.NoError(t, err)
	storeCodec, err := cryptox.NewCodec(common.GenerateRandByteArray(cryptox.KeySize))
	require.NoError(t, err)

	log := logging.NewWithWriter(io.Discard, true)

	return &pipeline{
		queue:      staging.NewQueue(t.TempDir() + "/staging"),
		fileCodec:  fileCodec,
		storeCodec: storeCodec,
		repo:       store.NewSQLiteRepository(db),
		registry:   config.NewRegistry(&memHeaderStore{}, log),
		sched:      &fakeScheduler{},
		log:        log,
		db:         db,
	}
}

func (p *pipeline) ingestWorker() *IngestWorker {
	return NewIngestWorker(p.queue, p.fileCodec, p.storeCodec, p.repo, p.registry, p.sched, p.log)
}

// stageRecord encrypts and writes a record the way crash capture would.
func (p *pipeline) stageRecord(t *testing.T, rec *models.CrashRecord) string {
	t.Helper()
	blob, err := p.fileCodec.EncryptString(rec.Serialize())
	require.NoError(t, err)
	path, err := p.queue.Write(rec.Timestamp, blob)
	require.NoError(t, err)
	return path
}

// storedRecords decrypts and parses every durable row.
func (p *pipeline) storedRecords(t *testing.T) []*models.CrashRecord {
	t.Helper()
	rows, err := p.repo.GetAll(context.Background())
	require.NoError(t, err)

	var out []*models.CrashRecord
	for _, row := range rows {
		plain, err := p.storeCodec.DecryptString(row.Payload)
		require.NoError(t, err)
		rec, err := models.ParseRecord(plain)
		require.NoError(t, err)
		rec.ID = row.ID
		out = append(out, rec)
	}
	return out
}

func testRecord(ts time.Time, fatal bool, stack string) *models.CrashRecord {
	return &models.CrashRecord{
		Timestamp:       ts,
		IsFatal:         fatal,
		PlatformVersion: "14",
		DeviceMake:      "Google",
		DeviceModel:     "Pixel 8",
		StackTrace:      stack,
	}
}
