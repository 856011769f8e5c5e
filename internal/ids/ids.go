package ids

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces message identifiers and creation timestamps.
// Timestamps are strictly increasing for the lifetime of the process, so a
// message's CreatedAt doubles as an exact polling cursor even when two
// appends land within the same clock millisecond.
type Generator struct {
	mu   sync.Mutex
	last int64 // unix milliseconds of the most recent stamp
}

// NewGenerator returns a generator whose first stamp is strictly greater
// than floor. Backends seed floor with their maximum stored timestamp so a
// restart cannot reissue a cursor position.
func NewGenerator(floor int64) *Generator {
	return &Generator{last: floor}
}

// NewMessageID returns a fresh ULID string.
func (g *Generator) NewMessageID() string {
	return ulid.Make().String()
}

// NextTimestamp returns the current time at millisecond precision, bumped
// forward if the wall clock has not advanced past the previous stamp.
func (g *Generator) NextTimestamp() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now <= g.last {
		now = g.last + 1
	}
	g.last = now
	return time.UnixMilli(now)
}

// Observe raises the floor to ts if it is ahead of the generator. Used when
// loading persisted state that may carry stamps from a previous run.
func (g *Generator) Observe(ts int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ts > g.last {
		g.last = ts
	}
}
