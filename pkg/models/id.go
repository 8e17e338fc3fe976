package models

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed short identifier, e.g. "task-3f9a1c07".
func NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "-" + hex[:8]
}
