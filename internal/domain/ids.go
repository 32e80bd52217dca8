package domain

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator generates client-side identifiers.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so client IDs sort
// by creation time on every device.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns "<prefix>-1", "<prefix>-2", ... in order.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedGenerator creates a sequential generator with the given prefix.
func NewFixedGenerator(prefix string) *FixedGenerator {
	return &FixedGenerator{prefix: prefix}
}

// Generate returns the next sequential identifier.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// connectionAlphabet omits 0/O and 1/I/L so codes survive being read aloud.
const connectionAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// ConnectionCodeLen is the length of a family's shareable connection code.
const ConnectionCodeLen = 6

// NewConnectionCode returns a random shareable family code.
func NewConnectionCode() string {
	id := uuid.New()
	code := make([]byte, ConnectionCodeLen)
	for i := range code {
		code[i] = connectionAlphabet[int(id[i])%len(connectionAlphabet)]
	}
	return string(code)
}
