package worker

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
	"github.com/dmitrijs2005/crashkeeper/internal/config"
	"github.com/dmitrijs2005/crashkeeper/internal/cryptox"
	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/dmitrijs2005/crashkeeper/internal/models"
	"github.com/dmitrijs2005/crashkeeper/internal/netx"
	"github.com/dmitrijs2005/crashkeeper/internal/store"
)

// UploadWorker ships all pending durable rows to the configured endpoint in
// one batched POST and deletes exactly that batch on confirmed success.
// Rows inserted while the request is in flight are untouched and go with
// the next run. It runs under the network constraint.
type UploadWorker struct {
	repo       store.Repository
	storeCodec *cryptox.Codec
	registry   *config.Registry
	uploader   *netx.Uploader
	log        logging.Logger
}

func NewUploadWorker(repo store.Repository, storeCodec *cryptox.Codec, registry *config.Registry, uploader *netx.Uploader, log logging.Logger) *UploadWorker {
	return &UploadWorker{
		repo:       repo,
		storeCodec: storeCodec,
		registry:   registry,
		uploader:   uploader,
		log:        log.With("worker", "upload"),
	}
}

func (w *UploadWorker) Run(ctx context.Context) Result {
	cfg := w.registry.Current()

	endpoint, err := cfg.Endpoint()
	if errors.Is(err, common.ErrNotConfigured) {
		// success-without-action: retrying cannot fix a missing
		// configuration, and the records keep accumulating locally
		w.log.Warn(ctx, "upload endpoint not configured, keeping reports local")
		return Done
	}
	if err != nil {
		w.log.Error(ctx, "failed to resolve endpoint", "error", err)
		return Retry
	}

	rows, err := w.repo.GetAll(ctx)
	if err != nil {
		w.log.Error(ctx, "failed to read pending reports", "error", err)
		return Retry
	}
	if len(rows) == 0 {
		return Done
	}

	batch := make([]models.WirePayload, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		plain, err := w.storeCodec.DecryptString(row.Payload)
		if err != nil {
			// unreadable with the current key; leave it to retention
			w.log.Warn(ctx, "undecryptable report excluded from batch", "id", row.ID, "error", err)
			continue
		}
		rec, err := models.ParseRecord(plain)
		if err != nil {
			w.log.Warn(ctx, "malformed report excluded from batch", "id", row.ID, "error", err)
			continue
		}
		batch = append(batch, rec.Wire())
		ids = append(ids, row.ID)
	}
	if len(batch) == 0 {
		return Done
	}

	if err := w.uploader.Upload(ctx, endpoint, cfg.Headers, cfg.CertificatePins, batch); err != nil {
		w.log.Warn(ctx, "upload failed, reports retained for retry", "count", len(batch), "error", err)
		return Retry
	}

	if err := w.repo.DeleteByIDs(ctx, ids); err != nil {
		// the server has the batch; failing the delete re-sends it next
		// run, which at-least-once delivery permits
		w.log.Error(ctx, "failed to delete uploaded reports", "error", err)
		return Retry
	}

	w.log.Debug(ctx, "uploaded crash reports", "count", len(batch))
	return Done
}
