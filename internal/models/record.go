// Package models defines the crash record entity, its pipe-delimited
// serialization used inside encrypted blobs, and the JSON wire shape sent
// to the collection endpoint.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
)

// recordFieldCount is the number of pipe-delimited fields in a serialized
// record. The last field is the stack trace and is never escaped, so parsing
// must split with this exact limit to keep embedded pipes inside it.
const recordFieldCount = 6

// CrashRecord is the central entity of the pipeline. StackTrace is already
// sanitized by the time a record is constructed; unsanitized text is never
// stored.
type CrashRecord struct {
	// ID is assigned by the durable store on insert. Zero while staged.
	ID              int64
	Timestamp       time.Time
	IsFatal         bool
	PlatformVersion string
	DeviceMake      string
	DeviceModel     string
	StackTrace      string
}

// Serialize renders the record as
//
//	<unixMillis>|<isFatal>|<platformVersion>|<deviceMake>|<deviceModel>|<stackTrace>
//
// The environment fields must not contain pipes; the stack trace may.
func (r *CrashRecord) Serialize() string {
	return strings.Join([]string{
		strconv.FormatInt(r.Timestamp.UnixMilli(), 10),
		strconv.FormatBool(r.IsFatal),
		r.PlatformVersion,
		r.DeviceMake,
		r.DeviceModel,
		r.StackTrace,
	}, "|")
}

// ParseRecord is the inverse of Serialize. Anything that does not yield
// exactly six fields with a numeric timestamp and a boolean fatal flag is
// reported as common.ErrMalformedRecord; callers skip such blobs rather
// than fail the whole pass.
func ParseRecord(s string) (*CrashRecord, error) {
	parts := strings.SplitN(s, "|", recordFieldCount)
	if len(parts) != recordFieldCount {
		return nil, fmt.Errorf("%w: got %d fields, want %d", common.ErrMalformedRecord, len(parts), recordFieldCount)
	}

	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", common.ErrMalformedRecord, err)
	}
	isFatal, err := strconv.ParseBool(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: fatal flag: %v", common.ErrMalformedRecord, err)
	}

	return &CrashRecord{
		Timestamp:       time.UnixMilli(millis).UTC(),
		IsFatal:         isFatal,
		PlatformVersion: parts[2],
		DeviceMake:      parts[3],
		DeviceModel:     parts[4],
		StackTrace:      parts[5],
	}, nil
}

// WirePayload is one element of the JSON array POSTed to the collection
// endpoint. Field names are fixed by the server contract; androidVersion is
// the historical name for the platform version.
type WirePayload struct {
	TimeStamp      string `json:"timeStamp"`
	StackTrace     string `json:"stackTrace"`
	AndroidVersion string `json:"androidVersion"`
	DeviceMake     string `json:"deviceMake"`
	DeviceModel    string `json:"deviceModel"`
	IsFatal        bool   `json:"isFatal"`
}

// wireTimeLayout is RFC 3339 with fixed millisecond precision and a literal
// Z, e.g. "2024-01-15T10:30:45.123Z".
const wireTimeLayout = "2006-01-02T15:04:05.000Z"

// Wire maps the record to its upload shape.
func (r *CrashRecord) Wire() WirePayload {
	return WirePayload{
		TimeStamp:      r.Timestamp.UTC().Format(wireTimeLayout),
		StackTrace:     r.StackTrace,
		AndroidVersion: r.PlatformVersion,
		DeviceMake:     r.DeviceMake,
		DeviceModel:    r.DeviceModel,
		IsFatal:        r.IsFatal,
	}
}
