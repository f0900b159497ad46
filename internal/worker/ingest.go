package worker

import (
	"context"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/config"
	"github.com/dmitrijs2005/crashkeeper/internal/cryptox"
	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/dmitrijs2005/crashkeeper/internal/models"
	"github.com/dmitrijs2005/crashkeeper/internal/staging"
	"github.com/dmitrijs2005/crashkeeper/internal/store"
)

// IngestWorker moves staged crash files into the durable store: read,
// decrypt, parse, insert, delete the file, in that order. Each file is
// processed independently; a bad file is skipped in place and never aborts
// the pass. The worker needs no network and must succeed fully offline.
//
// A crash between insert and file delete leaves the file to be re-ingested
// as a duplicate row on the next pass. That is the intended at-least-once
// behavior: the record is never lost, and duplicates are not deduplicated
// downstream.
type IngestWorker struct {
	queue      *staging.Queue
	fileCodec  *cryptox.Codec
	storeCodec *cryptox.Codec
	repo       store.Repository
	registry   *config.Registry
	sched      Scheduler
	log        logging.Logger
	now        func() time.Time
}

func NewIngestWorker(queue *staging.Queue, fileCodec, storeCodec *cryptox.Codec, repo store.Repository, registry *config.Registry, sched Scheduler, log logging.Logger) *IngestWorker {
	return &IngestWorker{
		queue:      queue,
		fileCodec:  fileCodec,
		storeCodec: storeCodec,
		repo:       repo,
		registry:   registry,
		sched:      sched,
		log:        log.With("worker", "ingest"),
		now:        time.Now,
	}
}

func (w *IngestWorker) Run(ctx context.Context) Result {
	paths, err := w.queue.List()
	if err != nil {
		w.log.Error(ctx, "failed to list staging directory", "error", err)
		return Retry
	}

	inserted := 0
	for _, path := range paths {
		if err := w.ingestFile(ctx, path); err != nil {
			// the file stays on disk for a future cleanup decision
			w.log.Warn(ctx, "skipping staged file", "file", path, "error", err)
			continue
		}
		inserted++
	}

	w.cleanup(ctx)

	if inserted > 0 {
		w.log.Debug(ctx, "ingested staged files", "count", inserted)
		w.sched.Schedule(KindUpload)
	}
	return Done
}

func (w *IngestWorker) ingestFile(ctx context.Context, path string) error {
	blob, err := w.queue.Read(path)
	if err != nil {
		return err
	}
	plain, err := w.fileCodec.DecryptString(blob)
	if err != nil {
		return err
	}
	rec, err := models.ParseRecord(plain)
	if err != nil {
		return err
	}

	payload, err := w.storeCodec.EncryptString(rec.Serialize())
	if err != nil {
		return err
	}
	row := &store.Row{CreatedAt: rec.Timestamp, IsFatal: rec.IsFatal, Payload: payload}
	if err := w.repo.Insert(ctx, row); err != nil {
		return err
	}

	// from here the row is the record's durable copy; a failed delete only
	// risks a duplicate, never a loss
	return w.queue.Remove(path)
}

// cleanup applies age-based retention. Failures are logged and swallowed;
// retention is housekeeping, not a reason to fail the pass.
func (w *IngestWorker) cleanup(ctx context.Context) {
	days := w.registry.Current().RetentionDays
	if days <= 0 {
		return
	}
	cutoff := w.now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := w.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.log.Warn(ctx, "retention cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Debug(ctx, "expired crash reports deleted", "count", n, "retention_days", days)
	}
}
