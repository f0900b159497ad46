package netx

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
)

// PinPrefix is the required pin format marker. Pins supplied without it get
// it prepended.
const PinPrefix = "sha256/"

// NormalizePin ensures the sha256/ prefix on a base64 SPKI digest.
func NormalizePin(pin string) string {
	pin = strings.TrimSpace(pin)
	if strings.HasPrefix(pin, PinPrefix) {
		return pin
	}
	return PinPrefix + pin
}

// spkiPin computes the pin string for a certificate's raw
// SubjectPublicKeyInfo.
func spkiPin(spki []byte) string {
	sum := sha256.Sum256(spki)
	return PinPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

// pinVerifier returns a VerifyPeerCertificate callback that accepts the
// connection only when some presented certificate's SubjectPublicKeyInfo
// hashes to one of the expected pins.
func pinVerifier(pins []string) func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	want := make(map[string]struct{}, len(pins))
	for _, p := range pins {
		want[NormalizePin(p)] = struct{}{}
	}

	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				continue
			}
			if _, ok := want[spkiPin(cert.RawSubjectPublicKeyInfo)]; ok {
				return nil
			}
		}
		return fmt.Errorf("%w: no presented certificate matches %d configured pin(s)", common.ErrPinMismatch, len(pins))
	}
}
