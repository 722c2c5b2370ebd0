package system

import (
	"time"

	"github.com/kiwiworld/objectd/internal/core/ecs"
	coresys "github.com/kiwiworld/objectd/internal/core/system"
	"go.uber.org/zap"
)

// CleanupSystem destroys entities marked during the tick, dropping their
// components and any intake requests they still had pending.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	world     *ecs.World
	destroyed uint64
	log       *zap.Logger
}

func NewCleanupSystem(world *ecs.World, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: world, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if n := s.world.FlushDestroyQueue(); n > 0 {
		s.destroyed += uint64(n)
		s.log.Debug("entities destroyed", zap.Int("count", n), zap.Int("live", s.world.Len()))
	}
}

// Destroyed returns the total number of entities destroyed so far.
func (s *CleanupSystem) Destroyed() uint64 { return s.destroyed }
