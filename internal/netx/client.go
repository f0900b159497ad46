package netx

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/dmitrijs2005/crashkeeper/internal/models"
)

// uploadTimeout bounds connect, TLS handshake and the overall request.
const uploadTimeout = 30 * time.Second

// Uploader performs the batched crash-report POST.
type Uploader struct {
	log logging.Logger
}

func NewUploader(log logging.Logger) *Uploader {
	return &Uploader{log: log}
}

// Upload POSTs records as a JSON array to endpoint with the given headers.
// pins maps hostname to expected certificate pins; pinning and the
// cleartext restriction are both skipped for local development hosts. A nil
// error means the server confirmed receipt with 200 or 201; any other
// status is common.ErrUploadRejected.
func (u *Uploader) Upload(ctx context.Context, endpoint string, headers map[string]string, pins map[string][]string, records []models.WirePayload) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	host := parsed.Hostname()

	if parsed.Scheme == "http" && !IsLocalDevHost(host) {
		return fmt.Errorf("%w: %s", common.ErrCleartextNotPermitted, host)
	}

	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := u.clientFor(host, pins)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()
	// response body is informational only
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: status %d", common.ErrUploadRejected, resp.StatusCode)
	}
	return nil
}

// clientFor builds an HTTP client enforcing the TLS floor and, when pins are
// configured for a non-local host, certificate pinning. Pinning replaces
// neither hostname verification nor chain validation; it runs in addition
// to them.
func (u *Uploader) clientFor(host string, pins map[string][]string) *http.Client {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if hostPins, ok := pins[host]; ok && len(hostPins) > 0 && !IsLocalDevHost(host) {
		tlsCfg.VerifyPeerCertificate = pinVerifier(hostPins)
	}

	return &http.Client{
		Timeout: uploadTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsCfg,
			DialContext: (&net.Dialer{
				Timeout: uploadTimeout,
			}).DialContext,
			TLSHandshakeTimeout: uploadTimeout,
		},
	}
}
