// Package common defines shared constants and sentinel errors used across
// the crashkeeper pipeline. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound = errors.New("not found")

	// Codec errors.
	ErrDecrypt         = errors.New("decryption failed")
	ErrMalformedRecord = errors.New("malformed crash record")

	// Configuration errors.
	ErrNotConfigured         = errors.New("endpoint not configured")
	ErrNoBaseURL             = errors.New("no base url configured")
	ErrCleartextNotPermitted = errors.New("cleartext http not permitted for non-local host")

	// Transport errors.
	ErrUploadRejected = errors.New("upload rejected by server")
	ErrPinMismatch    = errors.New("certificate pin mismatch")
)
