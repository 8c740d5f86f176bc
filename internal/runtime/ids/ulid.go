package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// Generator mints identifiers. Splicing takes one so tests can make minted
// ids predictable.
type Generator func() string

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
// Ids are strictly increasing within the process, so no two calls collide.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// Batch returns n ids from gen, or from CreateULID when gen is nil.
func Batch(gen Generator, n int) []string {
	if gen == nil {
		gen = CreateULID
	}
	out := make([]string, n)
	for i := range out {
		out[i] = gen()
	}
	return out
}
