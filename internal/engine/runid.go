package engine

import (
	"sync"

	"github.com/google/uuid"
)

// RunIDGenerator names a generation run. Generator.Run calls it once per
// run; the id keys every stored row of that run.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default RunIDGenerator. Its ids are time-ordered,
// so they sort the same way as runs.seq.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. It panics only if the system
// random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a known sequence of run ids. Replay uses it to
// regenerate a stored run under its recorded id, and tests use it to get
// stable ids in stored rows and golden output.
type FixedGenerator struct {
	mu   sync.Mutex
	next []string
}

// NewFixedGenerator returns a generator yielding ids in order. Each id is
// used for exactly one Generator.Run.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{next: ids}
}

// Generate pops the next id. Running more generations than ids were given
// is a caller bug and panics.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.next) == 0 {
		panic("engine: FixedGenerator has no run ids left")
	}
	id := g.next[0]
	g.next = g.next[1:]
	return id
}
