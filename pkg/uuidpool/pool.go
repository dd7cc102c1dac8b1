// Package uuidpool issues the UUIDv4 identifiers ApeDB assigns to every
// entry, backed by a prefilled cache so a caller issuing entry ids does not
// pay for random number generation on the common path. List.AddEntry does
// not use it; callers pass the UUID in with each Entry.
package uuidpool

import "github.com/google/uuid"

// New returns a freshly generated UUIDv4.
func New() [16]byte {
	id := uuid.New()
	var out [16]byte
	copy(out[:], id[:])
	return out
}

// Pool is a prefilled cache of UUIDs. Get drains the cache before ever
// falling back to synchronous generation, and Refill tops it back up to
// capacity — mirroring the source engine's cache-then-refill discipline
// so issuing an id on the hot path is, in the common case, a pop.
type Pool struct {
	cache []uuid.UUID
	size  int
}

// NewPool builds a Pool prefilled with size UUIDs.
func NewPool(size int) *Pool {
	p := &Pool{size: size}
	p.Refill()
	return p
}

// Get pops a UUID from the cache, generating one on demand if the cache
// has run dry.
func (p *Pool) Get() [16]byte {
	var id uuid.UUID
	if n := len(p.cache); n > 0 {
		id = p.cache[n-1]
		p.cache = p.cache[:n-1]
	} else {
		id = uuid.New()
	}

	var out [16]byte
	copy(out[:], id[:])
	return out
}

// IsEmpty reports whether the cache has been drained.
func (p *Pool) IsEmpty() bool {
	return len(p.cache) == 0
}

// Refill tops the cache back up to its configured size, generating
// whatever number of new UUIDs are needed to reach it.
func (p *Pool) Refill() {
	for len(p.cache) < p.size {
		p.cache = append(p.cache, uuid.New())
	}
}

// Len returns the number of UUIDs currently cached.
func (p *Pool) Len() int {
	return len(p.cache)
}
