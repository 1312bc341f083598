package federation

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultTimestampTolerance bounds clock skew while closing the replay
// window: both stale and implausibly-future timestamps are rejected.
const DefaultTimestampTolerance = 300 * time.Second

// GenerateSigningSecret returns 32 random bytes hex-encoded, the shared
// secret handed to a partner when HMAC signing is enabled for its key.
func GenerateSigningSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GenerateSignature computes the hex HMAC-SHA256 a partner must send for a
// request. The string-to-sign is method, path, timestamp and body joined by
// newlines, with the method upper-cased so "get" and "GET" sign alike.
func GenerateSignature(secret, method, path, timestamp, body string) string {
	stringToSign := strings.Join([]string{
		strings.ToUpper(method),
		path,
		timestamp,
		body,
	}, "\n")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature compares a presented signature against the expected one
// in constant time.
func verifySignature(secret, method, path, timestamp, body, signature string) bool {
	expected := GenerateSignature(secret, method, path, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// timestampLayouts are the date formats accepted for the federation
// timestamp header, tried in order after the Unix-epoch form.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

// ValidateTimestamp parses the timestamp header as a Unix epoch integer or
// a date string and checks it against the replay window. Unparseable
// values are rejected.
func ValidateTimestamp(timestamp string, tolerance time.Duration, now time.Time) bool {
	ts := strings.TrimSpace(timestamp)
	if ts == "" {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultTimestampTolerance
	}

	var requestTime time.Time
	if epoch, err := strconv.ParseInt(ts, 10, 64); err == nil {
		requestTime = time.Unix(epoch, 0)
	} else {
		parsed := false
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, ts); err == nil {
				requestTime = t
				parsed = true
				break
			}
		}
		if !parsed {
			return false
		}
	}

	diff := now.Sub(requestTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// HashAPIKey returns the SHA-256 hex digest under which API keys are
// stored. Plaintext keys never touch the database.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey returns a new partner API key: a recognizable prefix plus
// 32 random bytes hex-encoded.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "fed_" + hex.EncodeToString(buf), nil
}
