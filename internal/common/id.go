package common

import (
	"github.com/google/uuid"
)

// NewVersionID generates a unique version-row ID with the "ver_" prefix.
func NewVersionID() string {
	return "ver_" + uuid.New().String()
}

// NewPageID generates a unique page-row ID with the "page_" prefix.
func NewPageID() string {
	return "page_" + uuid.New().String()
}
