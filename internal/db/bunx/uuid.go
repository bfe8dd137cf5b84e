package bunx

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered id for group and principal rows. It panics
// only if the random source fails.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
