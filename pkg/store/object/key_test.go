package object

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`^uploads/(\d{4}-\d{2}-\d{2})/(\d+)-([0-9a-f]{6})-(.+)$`)

func TestGenerateKey_Format(t *testing.T) {
	key := GenerateKey("data.jsonl")

	m := keyPattern.FindStringSubmatch(key)
	require.NotNil(t, m, "key %q does not match expected layout", key)

	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), m[1])

	millis, err := strconv.ParseInt(m[2], 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), millis, 5000)

	assert.Equal(t, "data.jsonl", m[4])
}

func TestGenerateKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := GenerateKey("same.txt")
		assert.False(t, seen[key], "duplicate key %q", key)
		seen[key] = true
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain.txt", "plain.txt"},
		{"with spaces.csv", "with_spaces.csv"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"UPPER-case.JSON", "UPPER-case.JSON"},
		{"weird!@#$%.log", "weird_____.log"},
		{"unicode-héllo.txt", "unicode-h__llo.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestSanitizeName_OnlySafeAlphabet(t *testing.T) {
	got := SanitizeName("a b/c\\d\x00e")
	for _, c := range []byte(got) {
		ok := c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' ||
			c >= '0' && c <= '9' || c == '.' || c == '-' || c == '_'
		assert.True(t, ok, fmt.Sprintf("unsafe byte %q in %q", c, got))
	}
	assert.False(t, strings.ContainsAny(got, "/\\ "))
}
