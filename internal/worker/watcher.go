package worker

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/dmitrijs2005/crashkeeper/internal/staging"
	"github.com/fsnotify/fsnotify"
)

// StagingWatcher triggers the ingest task as soon as a new staged file
// appears, instead of waiting for the next scheduled run. It is purely an
// acceleration: scheduled and on-start ingest passes still happen, so a
// failed or absent watcher loses nothing.
type StagingWatcher struct {
	fsw   *fsnotify.Watcher
	sched Scheduler
	log   logging.Logger
	done  chan struct{}
}

// WatchStaging starts watching dir. The directory must already exist.
func WatchStaging(dir string, sched Scheduler, log logging.Logger) (*StagingWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &StagingWatcher{fsw: fsw, sched: sched, log: log, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *StagingWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) && strings.HasSuffix(ev.Name, staging.FileExt) {
				w.sched.Schedule(KindIngest)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn(context.Background(), "staging watcher error", "error", err)
		}
	}
}

// Close stops the watcher and waits for its loop to exit.
func (w *StagingWatcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
