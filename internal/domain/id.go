package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for ledger-owned entities. Time-ordered
// IDs keep insertion order readable in the raw tables.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
