package id

import "github.com/google/uuid"

// UUIDGenerator hands out random (v4) identifiers, optionally prefixed.
type UUIDGenerator struct {
	prefix string
}

func NewUUIDGenerator(prefix string) UUIDGenerator {
	return UUIDGenerator{prefix: prefix}
}

func (g UUIDGenerator) NewID() string {
	return g.prefix + uuid.NewString()
}
