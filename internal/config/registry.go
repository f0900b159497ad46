package config

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/dmitrijs2005/crashkeeper/internal/netx"
)

// Registry is the process-wide holder of the current Configuration.
// Updates replace the snapshot atomically, so concurrent readers observe
// either the old or the new configuration, never a mix. Writers are
// serialized by a mutex: every update is load -> clone -> store, and two
// interleaved writers would silently drop one update otherwise.
type Registry struct {
	current atomic.Pointer[Configuration]
	headers HeaderStore
	log     logging.Logger

	mu sync.Mutex
}

func NewRegistry(headers HeaderStore, log logging.Logger) *Registry {
	r := &Registry{headers: headers, log: log}
	r.current.Store(&Configuration{RetentionDays: DefaultRetentionDays})
	return r
}

// Current returns the active snapshot. Never nil; before the first Apply it
// holds only defaults. Callers must not mutate the returned value.
func (r *Registry) Current() *Configuration {
	return r.current.Load()
}

// Apply validates c, merges the persisted headers into it (values supplied
// now override persisted ones with the same name, and the merged set is
// persisted back), then publishes it as the new snapshot. A plaintext HTTP
// base for a non-local host is rejected; a missing base or path only logs a
// warning so the pipeline keeps capturing for later upload.
func (r *Registry) Apply(c Configuration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apply(c)
}

func (r *Registry) apply(c Configuration) error {
	next := c.clone()
	if err := next.validate(); err != nil {
		return err
	}

	persisted, err := r.headers.Load()
	if err != nil {
		return fmt.Errorf("load persisted headers: %w", err)
	}
	merged := make(map[string]string, len(persisted)+len(next.Headers))
	for k, v := range persisted {
		merged[k] = v
	}
	for k, v := range next.Headers {
		merged[k] = v
	}
	if err := r.headers.Save(merged); err != nil {
		return fmt.Errorf("persist headers: %w", err)
	}
	next.Headers = merged

	if next.EndpointBase == "" || next.EndpointPath == "" {
		r.log.Warn(context.Background(), "upload endpoint not fully configured, reports will be stored locally",
			"base_set", next.EndpointBase != "", "path_set", next.EndpointPath != "")
	}

	r.current.Store(next)
	return nil
}

// AddCertificatePin registers pin for the host of the configured base URL.
// The sha256/ prefix is added when missing. Returns common.ErrNoBaseURL
// when no base URL has been applied yet.
func (r *Registry) AddCertificatePin(pin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	if cur.EndpointBase == "" {
		return common.ErrNoBaseURL
	}
	parsed, err := url.Parse(cur.EndpointBase)
	if err != nil {
		return fmt.Errorf("parse endpoint base: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return common.ErrNoBaseURL
	}

	next := cur.clone()
	if next.CertificatePins == nil {
		next.CertificatePins = make(map[string][]string)
	}
	next.CertificatePins[host] = append(next.CertificatePins[host], netx.NormalizePin(pin))
	r.current.Store(next)
	return nil
}

// ClearPersistedHeaders drops the persisted header set (used on logout) and
// re-applies the current configuration without them, so the
// missing-endpoint warning still surfaces when relevant.
func (r *Registry) ClearPersistedHeaders() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.headers.Clear(); err != nil {
		return fmt.Errorf("clear headers: %w", err)
	}

	next := r.current.Load().clone()
	next.Headers = nil
	return r.apply(*next)
}
