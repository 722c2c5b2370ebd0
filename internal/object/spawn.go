package object

import (
	"context"
	"fmt"

	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/component"
	"github.com/kiwiworld/objectd/internal/core/async"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/kiwiworld/objectd/internal/core/event"
	"go.uber.org/zap"
)

// SpawnConfig holds the caller-chosen parameters of one spawn.
type SpawnConfig struct {
	// Entity i of the group gets the uid Namespace.Derive(i).
	Namespace Namespace
	Transform component.Transform
}

// NewSpawnConfig builds a config, rejecting non-finite transforms. An empty
// namespace is replaced by a fresh one.
func NewSpawnConfig(ns Namespace, translation component.Vec3, rotation component.Quat, scale component.Vec3) (SpawnConfig, error) {
	if ns == "" {
		ns = NewNamespace()
	}
	cfg := SpawnConfig{
		Namespace: ns,
		Transform: component.Transform{Translation: translation, Rotation: rotation, Scale: scale},
	}
	if err := cfg.validate(); err != nil {
		return SpawnConfig{}, err
	}
	return cfg, nil
}

func (c SpawnConfig) validate() error {
	if !c.Transform.IsFinite() {
		return fmt.Errorf("%v: %w", c.Transform, ErrNonFinite)
	}
	if c.Namespace == "" {
		return fmt.Errorf("spawn config: empty namespace")
	}
	return nil
}

// Completion decides what happens when a FireSpawn finishes.
type Completion struct {
	fn func(w *ecs.World, ids []ecs.EntityID, err error)
}

// Callback runs fn on the world goroutine with the spawned entities or the
// failure.
func Callback(fn func(w *ecs.World, ids []ecs.EntityID, err error)) Completion {
	return Completion{fn: fn}
}

// Diagnostic reports failures to the log and the event bus only.
func Diagnostic() Completion { return Completion{} }

// Spawner turns fragments into live entities. Loading runs on the executor;
// every world mutation is posted to the owner queue.
type Spawner struct {
	loader *Loader
	exec   *async.Executor
	queue  *async.Queue
	bus    *event.Bus // may be nil
	base   asset.URL
	log    *zap.Logger
}

func NewSpawner(loader *Loader, exec *async.Executor, queue *async.Queue, bus *event.Bus, base asset.URL, log *zap.Logger) *Spawner {
	return &Spawner{
		loader: loader,
		exec:   exec,
		queue:  queue,
		bus:    bus,
		base:   base,
		log:    log.Named("spawner"),
	}
}

// ResolveURL makes raw absolute against the server base URL.
func (s *Spawner) ResolveURL(raw string) (asset.URL, error) {
	if s.base.IsZero() {
		return asset.ParseURL(raw)
	}
	return s.base.Resolve(raw)
}

// SpawnPreloaded spawns from the cache without blocking. It must be called
// on the world goroutine and fails with ErrNotPreloaded when the object has
// not been loaded yet, leaving the world untouched.
func (s *Spawner) SpawnPreloaded(w *ecs.World, rawURL string, cfg SpawnConfig) ([]ecs.EntityID, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	u, err := s.ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}
	frag, ok := s.loader.Peek(u)
	if !ok {
		return nil, fmt.Errorf("%s: %w", u, ErrNotPreloaded)
	}
	return s.splice(w, frag, cfg), nil
}

type spawnResult struct {
	ids []ecs.EntityID
	err error
}

// Spawn loads the object (or joins a load in flight), splices it on the
// world goroutine and returns the new entities. It must not be called from
// the world goroutine, which would deadlock waiting on itself. Cancelling ctx
// abandons the wait; a splice that has not started by then is skipped.
func (s *Spawner) Spawn(ctx context.Context, rawURL string, cfg SpawnConfig) ([]ecs.EntityID, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	u, err := s.ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}

	loaded := make(chan spawnResult, 1)
	var frag *Fragment
	s.exec.Go(ctx, func(ctx context.Context) {
		f, err := s.loader.Load(ctx, u)
		frag = f
		loaded <- spawnResult{err: err}
	}, func(err error) {
		loaded <- spawnResult{err: err}
	})

	select {
	case r := <-loaded:
		if r.err != nil {
			return nil, r.err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	done := make(chan spawnResult, 1)
	posted := s.queue.Post(func(w *ecs.World) {
		if err := ctx.Err(); err != nil {
			done <- spawnResult{err: err}
			return
		}
		done <- spawnResult{ids: s.splice(w, frag, cfg)}
	})
	if !posted {
		return nil, ErrShutdown
	}

	select {
	case r := <-done:
		return r.ids, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FireSpawn schedules a spawn and returns at once. Errors detectable up front
// (bad URL, bad config) are returned directly; later ones go to done.
func (s *Spawner) FireSpawn(rawURL string, cfg SpawnConfig, done Completion) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	u, err := s.ResolveURL(rawURL)
	if err != nil {
		return err
	}
	s.exec.Go(context.Background(), func(ctx context.Context) {
		frag, err := s.loader.Load(ctx, u)
		if err != nil {
			s.fail(u.String(), err, done)
			return
		}
		posted := s.queue.Post(func(w *ecs.World) {
			ids := s.splice(w, frag, cfg)
			if done.fn != nil {
				done.fn(w, ids, nil)
			}
		})
		if !posted {
			s.log.Warn("spawn dropped, world closed", zap.String("url", u.String()))
		}
	}, nil)
	return nil
}

func (s *Spawner) fail(url string, err error, done Completion) {
	posted := s.queue.Post(func(w *ecs.World) {
		if done.fn != nil {
			done.fn(w, nil, err)
			return
		}
		s.log.Error("failed to load object", zap.String("url", url), zap.Error(err))
		if s.bus != nil {
			event.Emit(s.bus, event.ObjectLoadFailed{URL: url, Reason: "spawn", Err: err})
		}
	})
	if !posted {
		s.log.Error("failed to load object", zap.String("url", url), zap.Error(err))
	}
}

// splice inserts frag into w in fragment order. The transform goes on the
// base entity; entity i gets uid Namespace.Derive(i).
func (s *Spawner) splice(w *ecs.World, frag *Fragment, cfg SpawnConfig) []ecs.EntityID {
	list := make([]ecs.EntityData, len(frag.Entities))
	uids := make([]string, len(frag.Entities))
	for i, ent := range frag.Entities {
		uids[i] = cfg.Namespace.Derive(i)
		d := ent.Clone()
		ecs.MustSet(d, component.KindUID, uids[i])
		list[i] = d
	}
	ids := w.InsertEntities(list, cfg.Transform.Data())

	s.log.Debug("object spawned",
		zap.String("url", frag.URL),
		zap.String("namespace", cfg.Namespace.String()),
		zap.Int("entities", len(ids)),
	)
	if s.bus != nil {
		event.Emit(s.bus, event.ObjectSpawned{
			URL:         frag.URL,
			Namespace:   cfg.Namespace.String(),
			Entities:    ids,
			UIDs:        uids,
			Digest:      frag.Digest,
			Translation: cfg.Transform.Translation,
			Rotation:    cfg.Transform.Rotation,
			Scale:       cfg.Transform.Scale,
		})
	}
	return ids
}
