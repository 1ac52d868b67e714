package taskcluster

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// SlugID returns a fresh task ID: a v4 UUID encoded as 22 characters of
// URL-safe base64. The top bit of the first byte is cleared so the ID never
// starts with '-', which would be mistaken for a command-line flag.
func SlugID() string {
	u := uuid.New()
	u[0] &= 0x7f
	return base64.RawURLEncoding.EncodeToString(u[:])
}
