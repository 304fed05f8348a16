package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string for device and job identifiers.
func NewID() string {
	return ulid.Make().String()
}
