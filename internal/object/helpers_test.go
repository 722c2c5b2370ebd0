package object

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/core/async"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/kiwiworld/objectd/internal/core/event"
	"go.uber.org/zap"
)

// fakeFetcher serves fixed bodies by URL and counts calls. While gate is
// non-nil every fetch blocks until it is closed.
type fakeFetcher struct {
	mu    sync.Mutex
	files map[string]string
	calls map[string]int
	gate  chan struct{}
}

func newFakeFetcher(files map[string]string) *fakeFetcher {
	return &fakeFetcher{files: files, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, u asset.URL) ([]byte, error) {
	f.mu.Lock()
	f.calls[u.String()]++
	body, ok := f.files[u.String()]
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", u, asset.ErrNotFound)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) Calls(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[u]
}

func (f *fakeFetcher) set(u, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[u] = body
}

const (
	mainURL = "http://h/objects/main.json"
	mainDoc = `{"version":1,"entities":[
		{"name":"root","model_def":"tree.glb","collider":{"type":"concave","parts":[{"url":"col/a.json"},{"url":"http://cdn/b.json"}]}},
		{"name":"leaf","decal":"decals/moss.json"}
	]}`
	singleURL = "http://h/obj/objects/main.json"
	singleDoc = `{"entities":[{"name":"lamp","model_def":"../models/lamp.glb"}]}`
)

type harness struct {
	fetch  *fakeFetcher
	loader *Loader
	exec   *async.Executor
	queue  *async.Queue
	bus    *event.Bus
	world  *ecs.World
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()
	f := newFakeFetcher(map[string]string{
		mainURL:   mainDoc,
		singleURL: singleDoc,
	})
	h := &harness{
		fetch:  f,
		loader: NewLoader(f, DefaultResolvers(), nil, log),
		exec:   async.NewExecutor(4, log),
		queue:  async.NewQueue(log),
		bus:    event.NewBus(),
		world:  ecs.NewWorld(),
	}
	t.Cleanup(h.exec.Wait)
	return h
}

func (h *harness) spawner() *Spawner {
	return NewSpawner(h.loader, h.exec, h.queue, h.bus, asset.MustParseURL("http://h/"), zap.NewNop())
}

// pump plays the world goroutine: it drains the owner queue until done
// reports true.
func (h *harness) pump(t *testing.T, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			t.Fatal("timed out pumping owner queue")
		}
		h.queue.Drain(h.world, 0)
		time.Sleep(time.Millisecond)
	}
}

// settle waits for background work then drains whatever it posted.
func (h *harness) settle() {
	h.exec.Wait()
	h.queue.Drain(h.world, 0)
}
