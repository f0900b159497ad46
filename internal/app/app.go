// Package app wires the crash pipeline together for the standalone agent
// binary: key material, codecs, the staging queue, the durable store, the
// background scheduler and the public Reporter.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/crashkeeper/internal/capture"
	"github.com/dmitrijs2005/crashkeeper/internal/common"
	"github.com/dmitrijs2005/crashkeeper/internal/config"
	"github.com/dmitrijs2005/crashkeeper/internal/cryptox"
	"github.com/dmitrijs2005/crashkeeper/internal/keyvault"
	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/dmitrijs2005/crashkeeper/internal/netx"
	"github.com/dmitrijs2005/crashkeeper/internal/redact"
	"github.com/dmitrijs2005/crashkeeper/internal/staging"
	"github.com/dmitrijs2005/crashkeeper/internal/store"
	"github.com/dmitrijs2005/crashkeeper/internal/worker"

	_ "modernc.org/sqlite"
)

// App is the assembled pipeline. Reporter and Registry are the two surfaces
// a host embedding the library touches; everything else runs in the
// background.
type App struct {
	Reporter *capture.Reporter
	Registry *config.Registry

	log      logging.Logger
	db       *sql.DB
	sched    *worker.TaskScheduler
	watchDir string
}

// New builds the pipeline from cfg. Key material and the database are
// provisioned under cfg.DataDir on first use.
func New(ctx context.Context, cfg *config.AgentConfig) (*App, error) {
	log := logging.New(cfg.Debug)

	secrets, err := keyvault.NewFileSecretStore(filepath.Join(cfg.DataDir, "secrets"))
	if err != nil {
		return nil, fmt.Errorf("open secret store: %w", err)
	}
	vault := keyvault.New(secrets, log)

	fileKey, err := vault.GetOrCreateKey(keyvault.PurposeFileKey)
	if err != nil {
		return nil, err
	}
	fileCodec, err := cryptox.NewCodec(fileKey)
	if err != nil {
		return nil, err
	}
	storeKey, err := vault.StoreKey()
	if err != nil {
		return nil, err
	}
	storeCodec, err := cryptox.NewCodec(storeKey)
	// the codec holds its own key schedule; the derived bytes are not
	// needed again and must not linger in memory
	common.WipeByteArray(storeKey)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, filepath.Join(cfg.DataDir, "crashkeeper.db"))
	if err != nil {
		return nil, err
	}
	repo := store.NewSQLiteRepository(db)

	registry := config.NewRegistry(config.NewEncryptedHeaderStore(secrets, storeCodec), log)

	installID, err := vault.InstallID()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := registry.Apply(config.Configuration{
		EndpointBase:  cfg.EndpointBase,
		EndpointPath:  cfg.EndpointPath,
		Headers:       map[string]string{"X-Install-Id": installID},
		Redaction:     redact.AllCategories(),
		RetentionDays: cfg.RetentionDays,
	}); err != nil {
		db.Close()
		return nil, err
	}

	queue := staging.NewQueue(filepath.Join(cfg.DataDir, "staging"))

	// the scheduler and the ingest worker reference each other, so the
	// factories close over the scheduler variable assigned just below
	var sched *worker.TaskScheduler
	uploader := netx.NewUploader(log)
	reg := worker.Registry{
		worker.KindIngest: func() worker.Task {
			return worker.NewIngestWorker(queue, fileCodec, storeCodec, repo, registry, sched, log)
		},
		worker.KindUpload: func() worker.Task {
			return worker.NewUploadWorker(repo, storeCodec, registry, uploader, log)
		},
	}
	constraints := map[worker.Kind]worker.Constraint{
		worker.KindUpload: worker.ConstraintNetwork,
	}
	sched = worker.NewTaskScheduler(reg, constraints, log, worker.WithBaseDelay(cfg.RetryBaseDelay))

	reporter := capture.NewReporter(registry, queue, fileCodec, sched, log)

	return &App{
		Reporter: reporter,
		Registry: registry,
		log:      log,
		db:       db,
		sched:    sched,
		watchDir: queue.Dir(),
	}, nil
}

// Run starts the staging watcher, drains anything left over from a previous
// process, and blocks until ctx is cancelled. On return all in-flight
// background work has finished and the database is closed.
func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.watchDir, 0o770); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	watcher, err := worker.WatchStaging(a.watchDir, a.sched, a.log)
	if err != nil {
		return fmt.Errorf("watch staging directory: %w", err)
	}

	// pick up files staged by a crashed previous run
	a.sched.Schedule(worker.KindIngest)

	<-ctx.Done()

	if err := watcher.Close(); err != nil {
		a.log.Warn(context.Background(), "failed to close staging watcher", "error", err)
	}
	a.sched.Wait()
	return a.db.Close()
}
