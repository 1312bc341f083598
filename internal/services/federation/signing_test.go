package federation

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestGenerateSignatureDeterministic(t *testing.T) {
	sig := GenerateSignature("secret", "POST", "/api/federation/v2/members", "1756640000", `{"a":1}`)
	again := GenerateSignature("secret", "POST", "/api/federation/v2/members", "1756640000", `{"a":1}`)
	if sig != again {
		t.Fatal("same inputs must produce the same signature")
	}
	if len(sig) != 64 {
		t.Fatalf("expected hex SHA-256 digest, got %d chars", len(sig))
	}
}

func TestGenerateSignatureMethodCase(t *testing.T) {
	lower := GenerateSignature("secret", "get", "/path", "1756640000", "")
	upper := GenerateSignature("secret", "GET", "/path", "1756640000", "")
	if lower != upper {
		t.Fatal("method casing must not change the signature")
	}
}

func TestGenerateSignatureComponentsBind(t *testing.T) {
	base := GenerateSignature("secret", "POST", "/path", "1756640000", "body")
	variants := map[string]string{
		"secret":    GenerateSignature("other", "POST", "/path", "1756640000", "body"),
		"method":    GenerateSignature("secret", "DELETE", "/path", "1756640000", "body"),
		"path":      GenerateSignature("secret", "POST", "/other", "1756640000", "body"),
		"timestamp": GenerateSignature("secret", "POST", "/path", "1756640001", "body"),
		"body":      GenerateSignature("secret", "POST", "/path", "1756640000", "tampered"),
	}
	for component, sig := range variants {
		if sig == base {
			t.Fatalf("changing the %s must change the signature", component)
		}
	}
}

func TestVerifySignature(t *testing.T) {
	sig := GenerateSignature("secret", "POST", "/path", "1756640000", "body")
	if !verifySignature("secret", "POST", "/path", "1756640000", "body", sig) {
		t.Fatal("valid signature rejected")
	}
	if verifySignature("secret", "POST", "/path", "1756640000", "tampered", sig) {
		t.Fatal("tampered body accepted")
	}
	if verifySignature("wrong", "POST", "/path", "1756640000", "body", sig) {
		t.Fatal("wrong secret accepted")
	}
}

func TestValidateTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	epoch := func(offset time.Duration) string {
		return strconv.FormatInt(now.Add(offset).Unix(), 10)
	}

	cases := []struct {
		name  string
		value string
		want  bool
	}{
		{"current epoch", epoch(0), true},
		{"299s old", epoch(-299 * time.Second), true},
		{"exactly at tolerance", epoch(-300 * time.Second), true},
		{"301s old", epoch(-301 * time.Second), false},
		{"ten minutes old", epoch(-10 * time.Minute), false},
		{"ten minutes ahead", epoch(10 * time.Minute), false},
		{"slightly ahead", epoch(30 * time.Second), true},
		{"rfc3339", now.Add(-time.Minute).Format(time.RFC3339), true},
		{"rfc3339 stale", now.Add(-time.Hour).Format(time.RFC3339), false},
		{"datetime no zone", "2026-08-31T11:59:00", true},
		{"malformed", "not-a-timestamp", false},
		{"empty", "", false},
		{"blank", "   ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateTimestamp(tc.value, DefaultTimestampTolerance, now); got != tc.want {
				t.Fatalf("ValidateTimestamp(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestHashAPIKey(t *testing.T) {
	// SHA-256("test")
	const want = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	if got := HashAPIKey("test"); got != want {
		t.Fatalf("HashAPIKey(\"test\") = %s, want %s", got, want)
	}
}

func TestGenerateCredentials(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}
	if !strings.HasPrefix(key, "fed_") || len(key) != 4+64 {
		t.Fatalf("unexpected key shape %q", key)
	}

	secret, err := GenerateSigningSecret()
	if err != nil {
		t.Fatalf("generate signing secret: %v", err)
	}
	if len(secret) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(secret))
	}

	other, _ := GenerateAPIKey()
	if key == other {
		t.Fatal("two generated keys must differ")
	}
}

func TestBearerValue(t *testing.T) {
	if got := bearerValue("Bearer abc123"); got != "abc123" {
		t.Fatalf("got %q", got)
	}
	if got := bearerValue("bearer abc123"); got != "abc123" {
		t.Fatalf("scheme should match case-insensitively, got %q", got)
	}
	if got := bearerValue("Basic abc123"); got != "" {
		t.Fatalf("non-bearer scheme must be ignored, got %q", got)
	}
	if got := bearerValue(""); got != "" {
		t.Fatalf("got %q", got)
	}
}
