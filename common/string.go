package common

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

func RandomID() string {
	u, _ := uuid.NewRandom()
	return u.String()
}

// IdempotencyKey derives a stable key from its parts, so repeated gateway
// create calls for the same logical operation collapse into one.
func IdempotencyKey(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(parts, "|"))).String()
}

var safeStringRegex = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func SafeString(s string) string {
	return safeStringRegex.ReplaceAllString(strings.ToLower(s), "_")
}
