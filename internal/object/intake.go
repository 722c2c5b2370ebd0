package object

import (
	"context"
	"time"

	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/component"
	"github.com/kiwiworld/objectd/internal/core/async"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/kiwiworld/objectd/internal/core/event"
	coresys "github.com/kiwiworld/objectd/internal/core/system"
	"go.uber.org/zap"
)

// IntakeSystem satisfies object_from_url requests. Each tick it collects the
// entities that newly gained the component, loads every distinct URL once,
// and merges the fragment's base entity onto each requester. The requester
// itself becomes the object; no new entities are created. Phase 2 (Update).
type IntakeSystem struct {
	world  *ecs.World
	loader *Loader
	exec   *async.Executor
	queue  *async.Queue
	bus    *event.Bus
	base   asset.URL
	log    *zap.Logger
}

func NewIntakeSystem(w *ecs.World, loader *Loader, exec *async.Executor, queue *async.Queue, bus *event.Bus, base asset.URL, log *zap.Logger) *IntakeSystem {
	w.Track(component.KindObjectFromURL)
	return &IntakeSystem{
		world:  w,
		loader: loader,
		exec:   exec,
		queue:  queue,
		bus:    bus,
		base:   base,
		log:    log.Named("intake"),
	}
}

func (s *IntakeSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

type intakeGroup struct {
	url        asset.URL
	requesters []ecs.EntityID
}

func (s *IntakeSystem) Update(_ time.Duration) {
	ids := s.world.TakeAdded(component.KindObjectFromURL)
	if len(ids) == 0 {
		return
	}
	for _, g := range s.group(ids) {
		g := g
		s.exec.Go(context.Background(), func(ctx context.Context) {
			frag, err := s.loader.Load(ctx, g.url)
			if !s.queue.Post(func(w *ecs.World) { s.apply(w, g, frag, err) }) {
				s.log.Warn("intake result dropped, world closed", zap.String("url", g.url.String()))
			}
		}, nil)
	}
}

// group buckets requesters by canonical URL, keeping first-seen URL order and
// request order inside each bucket.
func (s *IntakeSystem) group(ids []ecs.EntityID) []*intakeGroup {
	byURL := make(map[string]*intakeGroup, len(ids))
	order := make([]*intakeGroup, 0, len(ids))
	for _, id := range ids {
		raw, _, err := ecs.Get[string](mustData(s.world, id), component.KindObjectFromURL)
		if err != nil {
			s.log.Warn("bad object_from_url value", zap.Stringer("entity", id), zap.Error(err))
			continue
		}
		u, err := s.resolve(raw)
		if err != nil {
			s.log.Warn("bad object url", zap.Stringer("entity", id), zap.String("url", raw), zap.Error(err))
			continue
		}
		g, ok := byURL[u.String()]
		if !ok {
			g = &intakeGroup{url: u}
			byURL[u.String()] = g
			order = append(order, g)
		}
		g.requesters = append(g.requesters, id)
	}
	return order
}

func (s *IntakeSystem) resolve(raw string) (asset.URL, error) {
	manifest := asset.ObjectManifestURL(raw)
	if s.base.IsZero() {
		return asset.ParseURL(manifest)
	}
	return s.base.Resolve(manifest)
}

// apply runs on the world goroutine.
func (s *IntakeSystem) apply(w *ecs.World, g *intakeGroup, frag *Fragment, err error) {
	if err != nil {
		s.log.Error("failed to load object",
			zap.String("url", g.url.String()),
			zap.Int("requesters", len(g.requesters)),
			zap.Error(err),
		)
		if s.bus != nil {
			event.Emit(s.bus, event.ObjectLoadFailed{URL: g.url.String(), Reason: "intake", Err: err})
		}
		return
	}
	if frag.Len() > 1 {
		// Only single-entity objects can be merged onto a requester.
		s.log.Warn("object has several entities, merging only the first",
			zap.String("url", frag.URL),
			zap.Int("entities", frag.Len()),
		)
	}
	base := frag.Base()
	for _, id := range g.requesters {
		if err := w.AddComponents(id, base); err != nil {
			s.log.Debug("requester gone before object arrived", zap.Stringer("entity", id), zap.Error(err))
			continue
		}
		if s.bus != nil {
			event.Emit(s.bus, event.ObjectMerged{URL: frag.URL, Requester: id})
		}
	}
}

func mustData(w *ecs.World, id ecs.EntityID) ecs.EntityData {
	d, _ := w.Get(id)
	return d
}
