package system

import (
	"context"
	"time"

	"github.com/kiwiworld/objectd/internal/component"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/kiwiworld/objectd/internal/core/event"
	coresys "github.com/kiwiworld/objectd/internal/core/system"
	"github.com/kiwiworld/objectd/internal/object"
	"github.com/kiwiworld/objectd/internal/persist"
	"go.uber.org/zap"
)

// SpawnStore is the journal backend; *persist.SpawnRepo in production.
type SpawnStore interface {
	SaveBatch(ctx context.Context, records []persist.SpawnRecord) error
	LoadAll(ctx context.Context) ([]persist.SpawnRecord, error)
}

// JournalSystem records every spawn and writes them out in batches.
// Phase 5 (Persist).
type JournalSystem struct {
	store     SpawnStore
	pending   []persist.SpawnRecord
	replaying map[string]int // namespaces being replayed, not re-journaled
	interval  int            // flush every N ticks
	tickCount int
	timeout   time.Duration
	log       *zap.Logger
}

func NewJournalSystem(bus *event.Bus, store SpawnStore, intervalTicks int, log *zap.Logger) *JournalSystem {
	s := &JournalSystem{
		store:     store,
		replaying: make(map[string]int),
		interval:  intervalTicks,
		timeout:   5 * time.Second,
		log:       log.Named("journal"),
	}
	event.Subscribe(bus, s.onSpawned)
	return s
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.Flush(ctx)
}

// Pending returns the number of records not yet written.
func (s *JournalSystem) Pending() int { return len(s.pending) }

// Flush writes pending records. A failed batch stays pending for the next
// flush. Also called on shutdown.
func (s *JournalSystem) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.store.SaveBatch(ctx, s.pending); err != nil {
		s.log.Error("journal flush failed", zap.Int("records", len(s.pending)), zap.Error(err))
		return err
	}
	s.log.Debug("journal flushed", zap.Int("records", len(s.pending)))
	s.pending = s.pending[:0]
	return nil
}

func (s *JournalSystem) onSpawned(ev event.ObjectSpawned) {
	if n := s.replaying[ev.Namespace]; n > 0 {
		s.forget(ev.Namespace)
		return
	}
	s.pending = append(s.pending, persist.SpawnRecord{
		URL:         ev.URL,
		Namespace:   ev.Namespace,
		Digest:      ev.Digest,
		Entities:    len(ev.Entities),
		Translation: ev.Translation,
		Rotation:    ev.Rotation,
		Scale:       ev.Scale,
		SpawnedAt:   time.Now().UTC(),
	})
}

func (s *JournalSystem) forget(ns string) {
	if s.replaying[ns] <= 1 {
		delete(s.replaying, ns)
		return
	}
	s.replaying[ns]--
}

// Replay respawns every journaled object under its original namespace, so
// uids come back unchanged. Call before the loop starts; the spawns land as
// the loop drains the owner queue. Returns the number of spawns scheduled.
func (s *JournalSystem) Replay(ctx context.Context, spawner *object.Spawner) (int, error) {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	scheduled := 0
	for _, rec := range records {
		cfg, err := object.NewSpawnConfig(object.Namespace(rec.Namespace),
			component.Vec3(rec.Translation), component.Quat(rec.Rotation), component.Vec3(rec.Scale))
		if err != nil {
			s.log.Warn("journal record skipped", zap.Int64("id", rec.ID), zap.Error(err))
			continue
		}
		ns, url := rec.Namespace, rec.URL
		s.replaying[ns]++
		err = spawner.FireSpawn(url, cfg, object.Callback(func(_ *ecs.World, _ []ecs.EntityID, err error) {
			if err != nil {
				s.log.Error("journal replay failed", zap.String("url", url), zap.String("namespace", ns), zap.Error(err))
				s.forget(ns)
			}
		}))
		if err != nil {
			s.log.Warn("journal record skipped", zap.Int64("id", rec.ID), zap.Error(err))
			s.forget(ns)
			continue
		}
		scheduled++
	}
	s.log.Info("journal replay scheduled", zap.Int("records", len(records)), zap.Int("spawns", scheduled))
	return scheduled, nil
}
