package xid

import "github.com/google/uuid"

// New returns a random identifier tagged with the entity prefix, e.g. "sale-1b4e...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
