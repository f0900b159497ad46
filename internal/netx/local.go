// Package netx implements the upload transport: a JSON POST client with a
// TLS 1.2 floor, a cleartext allow-list limited to local development hosts,
// and optional SHA-256 certificate pinning.
package netx

import (
	"net"
	"strings"
)

// IsLocalDevHost reports whether host is on the fixed allow-list for which
// plaintext HTTP is tolerated and certificate pinning is skipped: loopback,
// the emulator host alias and private RFC 1918 ranges.
func IsLocalDevHost(host string) bool {
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" || host == "::1" {
		return true
	}
	// 10.0.2.2 is the emulator's host-machine alias and is covered by the
	// 10/8 check below.
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return true
	}
	return ip.IsPrivate()
}
