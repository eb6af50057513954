// Package ids generates prefixed record identifiers.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns an id like "lead-4f1c09a2b37d": the prefix plus the first
// 12 hex characters of a random UUID.
func New(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + hex[:12]
}
