// Package capture implements crash interception: it turns errors and
// panics into sanitized, encrypted staged files and triggers ingestion.
// Nothing in this package may ever panic back into the host application or
// alter how a fatal crash proceeds; the library must be strictly more
// reliable than the code it instruments.
package capture

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/config"
	"github.com/dmitrijs2005/crashkeeper/internal/cryptox"
	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/dmitrijs2005/crashkeeper/internal/models"
	"github.com/dmitrijs2005/crashkeeper/internal/redact"
	"github.com/dmitrijs2005/crashkeeper/internal/staging"
	"github.com/dmitrijs2005/crashkeeper/internal/worker"
)

// FatalObserver receives uncaught errors. Reporter implements it, and
// chains to whatever observer was installed before it: the previous
// observer is always invoked, from a deferred block, regardless of whether
// capture itself succeeded. That chaining is a hard contract, not an
// implementation detail — platform crash behavior must be preserved.
type FatalObserver interface {
	OnFatal(v any, stack []byte)
}

// EnvironmentInfo is the device snapshot attached to every record. On
// mobile targets the host supplies real device values; HostEnvironment
// fills it from the Go runtime.
type EnvironmentInfo struct {
	PlatformVersion string
	DeviceMake      string
	DeviceModel     string
}

// HostEnvironment describes the current process for non-mobile hosts.
func HostEnvironment() EnvironmentInfo {
	return EnvironmentInfo{
		PlatformVersion: runtime.Version(),
		DeviceMake:      runtime.GOOS,
		DeviceModel:     runtime.GOARCH,
	}
}

// Reporter builds, sanitizes, encrypts and stages crash records.
type Reporter struct {
	registry *config.Registry
	queue    *staging.Queue
	codec    *cryptox.Codec
	sched    worker.Scheduler
	env      EnvironmentInfo
	log      logging.Logger
	prev     FatalObserver
	now      func() time.Time
}

// ReporterOption customizes a Reporter.
type ReporterOption func(*Reporter)

// WithEnvironment overrides the captured environment snapshot.
func WithEnvironment(env EnvironmentInfo) ReporterOption {
	return func(r *Reporter) { r.env = env }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) { r.now = now }
}

// WithPreviousObserver chains prev behind this reporter's fatal handling.
func WithPreviousObserver(prev FatalObserver) ReporterOption {
	return func(r *Reporter) { r.prev = prev }
}

func NewReporter(registry *config.Registry, queue *staging.Queue, codec *cryptox.Codec, sched worker.Scheduler, log logging.Logger, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		registry: registry,
		queue:    queue,
		codec:    codec,
		sched:    sched,
		env:      HostEnvironment(),
		log:      log,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ReportNonFatal records a handled error. It never returns an error and
// never panics; every internal failure is logged and swallowed.
func (r *Reporter) ReportNonFatal(err error) {
	defer r.swallowPanic("non-fatal report")

	if err == nil {
		return
	}
	stack := fmt.Sprintf("%v\n%s", err, debug.Stack())
	r.stage(false, stack)
}

// OnFatal records an uncaught error synchronously: the staged file is fully
// written and synced before this method returns, because the calling
// goroutine is about to die and nothing scheduled later is guaranteed to
// run. The previous observer is invoked from the deferred block in every
// case.
func (r *Reporter) OnFatal(v any, stack []byte) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error(context.Background(), "crash capture panicked", "panic", p)
		}
		if r.prev != nil {
			r.prev.OnFatal(v, stack)
		}
	}()

	r.stage(true, fmt.Sprintf("%v\n%s", v, stack))
}

// Recover is meant to be deferred at the top of host goroutines:
//
//	defer reporter.Recover()
//
// It captures a panic as a fatal record, then re-panics so the process
// terminates exactly as it would have without the reporter.
func (r *Reporter) Recover() {
	if v := recover(); v != nil {
		r.OnFatal(v, debug.Stack())
		panic(v)
	}
}

// stage runs the build → sanitize → encrypt → write → schedule sequence
// shared by both paths. The staged write is synchronous; only the ingest
// trigger is asynchronous and best-effort.
func (r *Reporter) stage(isFatal bool, stack string) {
	ctx := context.Background()

	rec := &models.CrashRecord{
		Timestamp:       r.now(),
		IsFatal:         isFatal,
		PlatformVersion: r.env.PlatformVersion,
		DeviceMake:      r.env.DeviceMake,
		DeviceModel:     r.env.DeviceModel,
		StackTrace:      redact.Sanitize(stack, r.registry.Current().Redaction),
	}

	blob, err := r.codec.EncryptString(rec.Serialize())
	if err != nil {
		r.log.Error(ctx, "failed to encrypt crash record", "error", err)
		return
	}
	path, err := r.queue.Write(rec.Timestamp, blob)
	if err != nil {
		r.log.Error(ctx, "failed to stage crash record", "error", err)
		return
	}
	r.log.Debug(ctx, "crash record staged", "file", path, "fatal", isFatal)

	r.sched.Schedule(worker.KindIngest)
}

func (r *Reporter) swallowPanic(op string) {
	if p := recover(); p != nil {
		r.log.Error(context.Background(), "crash reporting panicked", "op", op, "panic", p)
	}
}
