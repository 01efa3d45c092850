package util

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestIsE164(t *testing.T) {
	valid := []string{"+15551234567", "+12", "+447911123456", "+123456789012345"}
	for _, s := range valid {
		if !IsE164(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}

	invalid := []string{
		"",
		"5551234567",        // missing +
		"+0551234567",       // leading zero country code
		"+1",                // too short
		"+1234567890123456", // 16 digits
		"+1 555 123 4567",   // separators
		"+1555abc4567",
		" +15551234567",
	}
	for _, s := range invalid {
		if IsE164(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		" +1 (555) 123-4567 ": "+15551234567",
		"0044 7911 123456":    "+447911123456",
		"5551234567":          "5551234567",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewID_IsULIDAndSortable(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewID(t0)
	b := NewID(t0.Add(time.Second))

	if _, err := ulid.Parse(a); err != nil {
		t.Fatalf("expected a valid ULID, got %q: %v", a, err)
	}
	if strings.Compare(a, b) >= 0 {
		t.Fatalf("expected %q < %q", a, b)
	}
	if len(New()) != 26 {
		t.Fatalf("expected 26 char ULID")
	}
}
