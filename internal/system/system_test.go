package system

import (
	"context"
	"errors"
	"fmt"
	gonet "net"
	"testing"
	"time"

	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/component"
	"github.com/kiwiworld/objectd/internal/core/async"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/kiwiworld/objectd/internal/core/event"
	coresys "github.com/kiwiworld/objectd/internal/core/system"
	"github.com/kiwiworld/objectd/internal/net"
	"github.com/kiwiworld/objectd/internal/net/packet"
	"github.com/kiwiworld/objectd/internal/object"
	"github.com/kiwiworld/objectd/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	saved   []persist.SpawnRecord
	records []persist.SpawnRecord
	fail    error
}

func (m *memStore) SaveBatch(_ context.Context, recs []persist.SpawnRecord) error {
	if m.fail != nil {
		return m.fail
	}
	m.saved = append(m.saved, recs...)
	return nil
}

func (m *memStore) LoadAll(context.Context) ([]persist.SpawnRecord, error) {
	return m.records, nil
}

type loop struct {
	world   *ecs.World
	bus     *event.Bus
	queue   *async.Queue
	exec    *async.Executor
	spawner *object.Spawner
	runner  *coresys.Runner
	cleanup *CleanupSystem
}

func newLoop(t *testing.T) *loop {
	t.Helper()
	log := zap.NewNop()
	fetch := asset.FetchFunc(func(_ context.Context, u asset.URL) ([]byte, error) {
		if u.String() == "http://h/crate/objects/main.json" {
			return []byte(`{"entities":[{"name":"crate"}]}`), nil
		}
		return nil, fmt.Errorf("%s: %w", u, asset.ErrNotFound)
	})
	l := &loop{
		world:  ecs.NewWorld(),
		bus:    event.NewBus(),
		queue:  async.NewQueue(log),
		exec:   async.NewExecutor(2, log),
		runner: coresys.NewRunner(),
	}
	t.Cleanup(l.exec.Wait)
	loader := object.NewLoader(fetch, object.DefaultResolvers(), nil, log)
	l.spawner = object.NewSpawner(loader, l.exec, l.queue, l.bus, asset.MustParseURL("http://h/"), log)
	l.runner.Register(NewQueueSystem(l.queue, l.world, 0))
	l.runner.Register(NewEventSystem(l.bus))
	l.cleanup = NewCleanupSystem(l.world, log)
	l.runner.Register(l.cleanup)
	return l
}

// tick waits for background loads, then runs one full tick.
func (l *loop) tick() {
	l.exec.Wait()
	l.runner.Tick(time.Millisecond)
}

func spawnConfig(t *testing.T, ns string) object.SpawnConfig {
	t.Helper()
	cfg, err := object.NewSpawnConfig(object.Namespace(ns),
		component.Vec3{1, 2, 3}, component.QuatIdentity, component.Vec3One)
	require.NoError(t, err)
	return cfg
}

func TestJournalRecordsAndFlushes(t *testing.T) {
	l := newLoop(t)
	store := &memStore{}
	journal := NewJournalSystem(l.bus, store, 2, zap.NewNop())
	l.runner.Register(journal)

	require.NoError(t, l.spawner.FireSpawn("crate/objects/main.json", spawnConfig(t, "ns1"), object.Diagnostic()))
	l.tick() // splice, event emitted
	l.tick() // event delivered, second tick flushes
	require.Len(t, store.saved, 1)
	rec := store.saved[0]
	assert.Equal(t, "http://h/crate/objects/main.json", rec.URL)
	assert.Equal(t, "ns1", rec.Namespace)
	assert.Equal(t, 1, rec.Entities)
	assert.Equal(t, [3]float32{1, 2, 3}, rec.Translation)
	assert.Zero(t, journal.Pending())
}

func TestJournalKeepsBatchOnFailure(t *testing.T) {
	l := newLoop(t)
	store := &memStore{fail: errors.New("db down")}
	journal := NewJournalSystem(l.bus, store, 1, zap.NewNop())

	event.Emit(l.bus, event.ObjectSpawned{URL: "u", Namespace: "ns"})
	l.bus.SwapBuffers()
	l.bus.DispatchAll()

	assert.Error(t, journal.Flush(context.Background()))
	assert.Equal(t, 1, journal.Pending())

	store.fail = nil
	require.NoError(t, journal.Flush(context.Background()))
	assert.Len(t, store.saved, 1)
	assert.Zero(t, journal.Pending())
}

func TestJournalReplayReproducesUIDs(t *testing.T) {
	l := newLoop(t)
	store := &memStore{records: []persist.SpawnRecord{
		{ID: 1, URL: "http://h/crate/objects/main.json", Namespace: "old-ns",
			Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}},
		{ID: 2, URL: "http://h/gone/objects/main.json", Namespace: "lost",
			Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}},
	}}
	journal := NewJournalSystem(l.bus, store, 1, zap.NewNop())
	l.runner.Register(journal)

	n, err := journal.Replay(context.Background(), l.spawner)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	l.tick()
	l.tick()

	ids := l.world.Query(component.KindUID)
	require.Len(t, ids, 1)
	v, ok := l.world.Component(ids[0], component.KindUID)
	require.True(t, ok)
	assert.JSONEq(t, `"old-ns_0"`, string(v))

	// replayed spawns are not journaled again
	assert.Empty(t, store.saved)
	assert.Empty(t, journal.replaying)
}

func TestCleanupDestroysMarkedEntities(t *testing.T) {
	l := newLoop(t)
	require.NoError(t, l.spawner.FireSpawn("crate/objects/main.json", spawnConfig(t, "c"), object.Diagnostic()))
	l.tick()
	ids := l.world.Query(component.KindUID)
	require.Len(t, ids, 1)

	l.world.MarkForDestruction(ids[0])
	l.tick()
	assert.Zero(t, l.world.Len())
	assert.Equal(t, uint64(1), l.cleanup.Destroyed())
}

func TestInputAndOutputSystems(t *testing.T) {
	log := zap.NewNop()
	srv, err := net.NewServer("127.0.0.1:0", net.SessionOptions{InSize: 4, OutSize: 4}, log)
	require.NoError(t, err)
	go srv.AcceptLoop()
	defer srv.Shutdown()

	reg := packet.NewRegistry(log)
	reg.Register(packet.C_OPCODE_PING, []packet.SessionState{packet.StateHandshake},
		func(sess any, _ *packet.Reader) {
			sess.(*net.Session).Send([]byte{packet.S_OPCODE_PONG})
		})
	store := net.NewSessionStore()
	runner := coresys.NewRunner()
	runner.Register(NewInputSystem(srv, reg, store, 8, log))
	runner.Register(NewOutputSystem(store))

	conn, err := gonet.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, net.WriteFrame(conn, []byte{packet.C_OPCODE_PING}))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	got := make(chan []byte, 1)
	go func() {
		data, err := net.ReadFrame(conn)
		if err == nil {
			got <- data
		}
	}()

	deadline := time.Now().Add(3 * time.Second)
	for {
		runner.Tick(time.Millisecond)
		select {
		case data := <-got:
			assert.Equal(t, []byte{packet.S_OPCODE_PONG}, data)
			assert.Equal(t, 1, store.Count())
			return
		default:
		}
		require.True(t, time.Now().Before(deadline), "no pong")
		time.Sleep(5 * time.Millisecond)
	}
}
