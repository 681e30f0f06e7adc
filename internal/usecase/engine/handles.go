// Package engine publishes versioned store handles and swaps them without
// interrupting in-flight requests.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/usecase/retrieval"
)

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handles is one immutable generation of store handles.
// Version, ID and BuiltAt are stamped by the Manager on publish.
type Handles struct {
	Version uint64
	ID      uuid.UUID
	BuiltAt time.Time

	Panels   retrieval.PanelRepository
	Answers  retrieval.AnswerRepository
	Embedder domain.Embedder

	// Relational and Vector ping the underlying connections for health checks.
	Relational Pinger
	Vector     Pinger

	// OnPublish runs once the handles are published. May be nil.
	OnPublish func(ctx context.Context)
	// Close releases the resources of this generation. May be nil.
	Close     func()
}

// Stores returns the retrieval view of the handles.
func (h *Handles) Stores() retrieval.Stores {
	return retrieval.Stores{Panels: h.Panels, Answers: h.Answers, Embedder: h.Embedder}
}

// generation counts the leases on published handles. The publication itself
// holds one reference; resources close when the count drops to zero.
type generation struct {
	handles *Handles
	refs    atomic.Int64
	closed  sync.Once
}

func newGeneration(h *Handles) *generation {
	g := &generation{handles: h}
	g.refs.Store(1)
	return g
}

// acquire takes a reference unless the generation is already closing.
func (g *generation) acquire() bool {
	for {
		n := g.refs.Load()
		if n <= 0 {
			return false
		}
		if g.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (g *generation) release() {
	if g.refs.Add(-1) == 0 {
		g.closed.Do(func() {
			if g.handles.Close != nil {
				g.handles.Close()
			}
		})
	}
}

// Lease pins a generation of handles for the duration of a request.
type Lease struct {
	gen  *generation
	once sync.Once
}

// Handles returns the pinned handles. They stay open until Release.
func (l *Lease) Handles() *Handles { return l.gen.handles }

// Release returns the lease. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(l.gen.release)
}
