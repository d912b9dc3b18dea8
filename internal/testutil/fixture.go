package testutil

import (
	"nexus-go/internal/database"
	"nexus-go/internal/ledger"
	"nexus-go/internal/nexus"
	"nexus-go/internal/objectstore"
	"nexus-go/internal/session"
)

// Fixture bundles a Service with the in-memory backends behind it, so tests
// can reach past the service to inspect or sabotage individual stores.
type Fixture struct {
	Service  *nexus.Service
	Store    *database.MemoryStore
	Objects  *objectstore.MemoryStore
	Ledger   *ledger.MemoryLedger
	Sessions *session.MemoryStore
	Clock    *StubClock
	IDs      *StubIDGenerator
}

// NewFixture wires a Service over in-memory backends with a deterministic
// clock and ID sequence. Retries keep their attempt count but drop the delay
// so tests stay fast.
func NewFixture() *Fixture {
	f := &Fixture{
		Store:    database.NewMemoryStore(),
		Objects:  objectstore.NewMemoryStore(0),
		Ledger:   ledger.NewMemoryLedger(),
		Sessions: session.NewMemoryStore(),
		Clock:    FixedClock(),
		IDs:      NewStubIDGenerator(),
	}
	f.Sessions.SetNowFunc(f.Clock.Now)
	f.Service = nexus.NewService(f.Store, f.Objects, f.Ledger, f.Sessions, nil,
		nexus.NewNopLogger(), f.Clock, f.IDs, nexus.RetryPolicy{Attempts: 3, Delay: 0})
	return f
}
