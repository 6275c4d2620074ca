package idgen

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerate_Length(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	wantLen := len(DefaultPrefix) + Length
	if len(id) != wantLen {
		t.Errorf("Generate() length = %d, want %d (id=%q)", len(id), wantLen, id)
	}
}

func TestGenerate_DefaultPrefix(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if id[:len(DefaultPrefix)] != DefaultPrefix {
		t.Errorf("Generate() = %q, want prefix %q", id, DefaultPrefix)
	}
}

func TestGenerate_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(DefaultPrefix) + `[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("Generate() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	prefix := "test-"
	id, err := GenerateWithPrefix(prefix)
	if err != nil {
		t.Fatalf("GenerateWithPrefix(%q) error: %v", prefix, err)
	}

	if id[:len(prefix)] != prefix {
		t.Errorf("GenerateWithPrefix(%q) = %q, want prefix %q", prefix, id, prefix)
	}

	wantLen := len(prefix) + Length
	if len(id) != wantLen {
		t.Errorf("GenerateWithPrefix(%q) length = %d, want %d (id=%q)", prefix, len(id), wantLen, id)
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `[a-zA-Z0-9]+$`)
	if !pattern.MatchString(id) {
		t.Errorf("GenerateWithPrefix(%q) = %q, does not match expected charset pattern", prefix, id)
	}
}

func TestTimestamp_Millis(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := Timestamp(now, nil); got != "1700000000123" {
		t.Errorf("Timestamp() = %q, want %q", got, "1700000000123")
	}
}

func TestTimestamp_BumpsWhenTaken(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	taken := map[string]bool{"1700000000123": true, "1700000000124": true}
	got := Timestamp(now, func(id string) bool { return taken[id] })
	if got != "1700000000125" {
		t.Errorf("Timestamp() = %q, want %q", got, "1700000000125")
	}
}

func TestNew_Styles(t *testing.T) {
	now := time.UnixMilli(42)
	for _, tc := range []struct {
		style Style
		check func(string) bool
	}{
		{StyleTimestamp, func(id string) bool { return id == "42" }},
		{"", func(id string) bool { return id == "42" }},
		{StyleNanoid, regexp.MustCompile(`^c-[a-zA-Z0-9]{10}$`).MatchString},
		{StyleUUID, func(id string) bool { _, err := uuid.Parse(id); return err == nil }},
	} {
		t.Run(string(tc.style), func(t *testing.T) {
			id, err := New(tc.style, now, nil)
			if err != nil {
				t.Fatalf("New(%q) error: %v", tc.style, err)
			}
			if !tc.check(id) {
				t.Errorf("New(%q) = %q, unexpected shape", tc.style, id)
			}
		})
	}
}

func TestNew_UnknownStyle(t *testing.T) {
	if _, err := New("snowflake", time.Now(), nil); err == nil {
		t.Error("New() with unknown style should fail")
	}
	if Style("snowflake").Valid() {
		t.Error("Valid() = true for unknown style")
	}
}
