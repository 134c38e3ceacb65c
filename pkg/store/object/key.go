package object

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateKey derives a fresh object key for an uploaded file:
//
//	uploads/<YYYY-MM-DD>/<epoch-millis>-<6-char-random>-<sanitized-name>
//
// The date component is UTC. Sanitization replaces every character outside
// [A-Za-z0-9.-] with an underscore so client-supplied filenames cannot
// inject path separators or control characters into the key.
func GenerateKey(originalName string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("uploads/%s/%d-%s-%s",
		now.Format("2006-01-02"),
		now.UnixMilli(),
		randomSuffix(),
		SanitizeName(originalName),
	)
}

// SanitizeName maps a client-supplied filename onto the safe key alphabet.
func SanitizeName(name string) string {
	out := []byte(name)
	for i, c := range out {
		switch {
		case c >= 'A' && c <= 'Z',
			c >= 'a' && c <= 'z',
			c >= '0' && c <= '9',
			c == '.', c == '-':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// randomSuffix returns 6 hex characters of entropy, enough to disambiguate
// keys generated within the same millisecond.
func randomSuffix() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
