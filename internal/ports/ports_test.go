package ports

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseErrorKind(t *testing.T) {
	tests := []struct {
		code     string
		expected ErrorKind
	}{
		{"no-speech", ErrorNoSpeechDetected},
		{"audio-capture", ErrorCaptureDeviceDenied},
		{"not-allowed", ErrorPermissionDenied},
		{"service-not-allowed", ErrorPermissionDenied},
		{"network", ErrorUnknown},
		{"", ErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ParseErrorKind(tt.code); got != tt.expected {
				t.Errorf("ParseErrorKind(%q) = %s, want %s", tt.code, got, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	denied := &CaptureError{Kind: ErrorPermissionDenied, Err: errors.New("blocked")}

	if got := KindOf(nil); got != ErrorNone {
		t.Errorf("expected NONE for nil error, got %s", got)
	}
	if got := KindOf(errors.New("boom")); got != ErrorUnknown {
		t.Errorf("expected UNKNOWN for plain error, got %s", got)
	}
	if got := KindOf(fmt.Errorf("start: %w", denied)); got != ErrorPermissionDenied {
		t.Errorf("expected PERMISSION_DENIED for wrapped capture error, got %s", got)
	}
}

func TestErrorKind_MarshalText(t *testing.T) {
	b, err := ErrorCaptureDeviceDenied.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "CAPTURE_DEVICE_DENIED" {
		t.Errorf("expected CAPTURE_DEVICE_DENIED, got %s", b)
	}
	if got := ErrorKind(99).String(); got != "UNKNOWN(99)" {
		t.Errorf("expected UNKNOWN(99), got %s", got)
	}
}

func TestErrorKind_UnmarshalText(t *testing.T) {
	var k ErrorKind
	if err := k.UnmarshalText([]byte("PERMISSION_DENIED")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != ErrorPermissionDenied {
		t.Errorf("expected PERMISSION_DENIED, got %s", k)
	}
	if err := k.UnmarshalText([]byte("LOUD_NOISE")); err == nil {
		t.Error("expected error for unknown kind, got nil")
	}
}
