package system

import (
	"time"

	coresys "github.com/kiwiworld/objectd/internal/core/system"
	"github.com/kiwiworld/objectd/internal/net"
)

// OutputSystem hands buffered packets to the writer goroutines.
// Phase 4 (Output).
type OutputSystem struct {
	store *net.SessionStore
}

func NewOutputSystem(store *net.SessionStore) *OutputSystem {
	return &OutputSystem{store: store}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}
