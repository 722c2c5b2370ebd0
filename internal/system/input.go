package system

import (
	"time"

	"github.com/kiwiworld/objectd/internal/core/async"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	coresys "github.com/kiwiworld/objectd/internal/core/system"
	"github.com/kiwiworld/objectd/internal/net"
	"github.com/kiwiworld/objectd/internal/net/packet"
	"go.uber.org/zap"
)

// InputSystem accepts new control sessions, reaps dead ones and dispatches
// queued packets through the registry. Phase 0 (Input).
type InputSystem struct {
	netServer  *net.Server
	registry   *packet.Registry
	store      *net.SessionStore
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(netServer *net.Server, registry *packet.Registry, store *net.SessionStore, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		netServer:  netServer,
		registry:   registry,
		store:      store,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	for accepting := true; accepting; {
		select {
		case sess := <-s.netServer.NewSessions():
			s.store.Add(sess)
		default:
			accepting = false
		}
	}

	for reaping := true; reaping; {
		select {
		case id := <-s.netServer.DeadSessions():
			s.store.Remove(id)
		default:
			reaping = false
		}
	}

	s.store.ForEach(func(sess *net.Session) {
		s.drain(sess)
		if sess.IsClosed() {
			sess.FlushOutput()
			s.log.Info("control connection closed", zap.Uint64("session", sess.ID))
			s.netServer.NotifyDead(sess.ID)
			s.store.Remove(sess.ID)
		}
	})
}

// drain dispatches up to maxPerTick packets from sess. Packets queued before
// a disconnect are still handled.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
				s.log.Debug("packet dispatch error",
					zap.Uint64("session", sess.ID),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}

// QueueSystem runs continuations posted by background loads. It is the only
// place off-loop work touches the world. Phase 0 (Input), after InputSystem.
type QueueSystem struct {
	queue *async.Queue
	world *ecs.World
	max   int
}

func NewQueueSystem(queue *async.Queue, world *ecs.World, maxPerTick int) *QueueSystem {
	return &QueueSystem{queue: queue, world: world, max: maxPerTick}
}

func (s *QueueSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *QueueSystem) Update(_ time.Duration) {
	s.queue.Drain(s.world, s.max)
}
