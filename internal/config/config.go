// Package config holds the process-wide crash-pipeline configuration: the
// upload endpoint, request headers, sanitization rules, retention period
// and certificate pins. The active configuration is replaced wholesale on
// every update and read through an atomic reference, never mutated in
// place.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
	"github.com/dmitrijs2005/crashkeeper/internal/netx"
	"github.com/dmitrijs2005/crashkeeper/internal/redact"
)

// DefaultRetentionDays is applied when a configuration does not specify a
// retention period. A value of zero or less disables age-based deletion.
const DefaultRetentionDays = 90

// Configuration is an immutable snapshot. Headers already include the
// persisted set by the time a snapshot is published. RetentionDays of zero
// or less disables age-based deletion; the registry's initial snapshot
// carries DefaultRetentionDays.
type Configuration struct {
	EndpointBase    string
	EndpointPath    string
	Headers         map[string]string
	Redaction       *redact.Rules
	RetentionDays   int
	CertificatePins map[string][]string
}

// Endpoint joins base and path into the full upload URL: trailing slash
// trimmed from the base, leading slash enforced on the path. Returns
// common.ErrNotConfigured while either part is missing.
func (c *Configuration) Endpoint() (string, error) {
	if c == nil || c.EndpointBase == "" || c.EndpointPath == "" {
		return "", common.ErrNotConfigured
	}
	base := strings.TrimRight(c.EndpointBase, "/")
	path := c.EndpointPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path, nil
}

// validate rejects configurations that must never be applied: a plaintext
// HTTP base pointing anywhere but a local development host. A missing
// base or path is not an error here; the system stays usable in
// store-locally-upload-later mode and the registry only logs a warning.
func (c *Configuration) validate() error {
	if c.EndpointBase == "" {
		return nil
	}
	parsed, err := url.Parse(c.EndpointBase)
	if err != nil {
		return fmt.Errorf("parse endpoint base: %w", err)
	}
	if parsed.Scheme == "http" && !netx.IsLocalDevHost(parsed.Hostname()) {
		return fmt.Errorf("%w: %s", common.ErrCleartextNotPermitted, parsed.Hostname())
	}
	return nil
}

// clone returns a deep copy so published snapshots never share mutable
// state with caller-owned maps.
func (c *Configuration) clone() *Configuration {
	out := &Configuration{
		EndpointBase:  c.EndpointBase,
		EndpointPath:  c.EndpointPath,
		Redaction:     c.Redaction,
		RetentionDays: c.RetentionDays,
	}
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	if c.CertificatePins != nil {
		out.CertificatePins = make(map[string][]string, len(c.CertificatePins))
		for host, pins := range c.CertificatePins {
			out.CertificatePins[host] = append([]string(nil), pins...)
		}
	}
	return out
}
