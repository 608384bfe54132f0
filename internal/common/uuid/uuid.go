// Package uuid wraps github.com/google/uuid with the identifiers keygate
// hands out: time-ordered UUIDv7 values for request ids and short random
// hex ids for license keys.
package uuid

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

type UUID = uuid.UUID

// NewV7 returns a new UUIDv7 and any error encountered during generation.
func NewV7() (UUID, error) {
	return uuid.NewV7()
}

// ShortID returns n uppercase hex characters taken from a random UUIDv4.
// n is clamped to [1, 32].
func ShortID(n int) string {
	n = min(max(n, 1), 32)
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:])[:n])
}
