package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
)

func sampleRecord() *CrashRecord {
	return &CrashRecord{
		Timestamp:       time.UnixMilli(1705314645123).UTC(),
		IsFatal:         true,
		PlatformVersion: "14",
		DeviceMake:      "Google",
		DeviceModel:     "Pixel 8",
		StackTrace:      "java.lang.RuntimeException: boom\n\tat com.example.Main.run(Main.java:42)",
	}
}

func TestRecord_SerializeParseRoundTrip(t *testing.T) {
	r := sampleRecord()

	got, err := ParseRecord(r.Serialize())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Timestamp.Equal(r.Timestamp) {
		t.Fatalf("timestamp mismatch: %v != %v", got.Timestamp, r.Timestamp)
	}
	if got.IsFatal != r.IsFatal ||
		got.PlatformVersion != r.PlatformVersion ||
		got.DeviceMake != r.DeviceMake ||
		got.DeviceModel != r.DeviceModel ||
		got.StackTrace != r.StackTrace {
		t.Fatalf("field mismatch: %+v != %+v", got, r)
	}
}

func TestParseRecord_StackTraceMayContainPipes(t *testing.T) {
	r := sampleRecord()
	r.StackTrace = "state: a|b|c\ncaused by: d|e"

	got, err := ParseRecord(r.Serialize())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StackTrace != r.StackTrace {
		t.Fatalf("pipes not preserved in stack trace: %q", got.StackTrace)
	}
}

func TestParseRecord_TrailingPipeStaysInStack(t *testing.T) {
	got, err := ParseRecord("1700000000000|false|14|Make|Model|trace|")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StackTrace != "trace|" {
		t.Fatalf("expected trailing pipe inside stack field, got %q", got.StackTrace)
	}
}

func TestParseRecord_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"too few fields": "123|true|14|Make|Model",
		"bad timestamp":  "nope|true|14|Make|Model|trace",
		"bad bool":       "123|maybe|14|Make|Model|trace",
	}
	for name, in := range cases {
		if _, err := ParseRecord(in); !errors.Is(err, common.ErrMalformedRecord) {
			t.Fatalf("%s: expected ErrMalformedRecord, got %v", name, err)
		}
	}
}

func TestWire_FormatsTimestampWithMillisZ(t *testing.T) {
	r := sampleRecord()
	w := r.Wire()

	if w.TimeStamp != "2024-01-15T10:30:45.123Z" {
		t.Fatalf("unexpected wire timestamp: %s", w.TimeStamp)
	}
	if w.AndroidVersion != "14" || !w.IsFatal {
		t.Fatalf("unexpected wire payload: %+v", w)
	}
}

func TestWire_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal([]WirePayload{sampleRecord().Wire()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"timeStamp"`, `"stackTrace"`, `"androidVersion"`, `"deviceMake"`, `"deviceModel"`, `"isFatal"`} {
		if !strings.Contains(s, key) {
			t.Fatalf("expected key %s in json: %s", key, s)
		}
	}
}
