package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kindName  Kind = "name"
	kindScore Kind = "score"
)

func TestEntityPoolReusesIndexWithNewGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	require.False(t, a.IsZero())
	require.True(t, p.Alive(a))

	p.Destroy(a)
	assert.False(t, p.Alive(a))

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index())
	assert.NotEqual(t, a.Generation(), b.Generation())
	assert.False(t, p.Alive(a), "stale handle must stay dead")
	assert.Equal(t, 1, p.Len())
}

func TestInsertEntitiesKeepsOrderAndAppliesOverridesToFirst(t *testing.T) {
	w := NewWorld()
	list := []EntityData{
		MustSet(EntityData{}, kindName, "base"),
		MustSet(EntityData{}, kindName, "child"),
	}
	overrides := MustSet(EntityData{}, kindScore, 7)

	ids := w.InsertEntities(list, overrides)
	require.Len(t, ids, 2)

	first, _ := w.Get(ids[0])
	name, ok, err := Get[string](first, kindName)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "base", name)
	score, ok, err := Get[int](first, kindScore)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, score)

	second, _ := w.Get(ids[1])
	assert.False(t, second.Has(kindScore))

	// the source list is not aliased by the world
	list[0][kindName] = Value(`"mutated"`)
	name, _, _ = Get[string](first, kindName)
	assert.Equal(t, "base", name)
}

func TestTakeAddedReportsNewlyMarkedEntitiesOnce(t *testing.T) {
	w := NewWorld()
	w.Track(kindName)

	a := w.Spawn(MustSet(EntityData{}, kindName, "a"))
	b := w.CreateEntity()
	require.NoError(t, w.SetComponent(b, kindName, Value(`"b"`)))
	w.Spawn(MustSet(EntityData{}, kindScore, 1))

	assert.Equal(t, []EntityID{a, b}, w.TakeAdded(kindName))
	assert.Empty(t, w.TakeAdded(kindName))

	// re-setting an existing kind is not a new marking
	require.NoError(t, w.SetComponent(a, kindName, Value(`"a2"`)))
	assert.Empty(t, w.TakeAdded(kindName))
}

func TestTakeAddedSkipsDestroyedEntities(t *testing.T) {
	w := NewWorld()
	w.Track(kindName)
	a := w.Spawn(MustSet(EntityData{}, kindName, "a"))
	w.MarkForDestruction(a)
	assert.Equal(t, 1, w.FlushDestroyQueue())
	assert.Empty(t, w.TakeAdded(kindName))
}

func TestDestroyClearsPendingAdditions(t *testing.T) {
	w := NewWorld()
	assert.Equal(t, 2, w.Registry().Len())
	w.Track(kindName)
	a := w.Spawn(MustSet(EntityData{}, kindName, "a"))
	b := w.Spawn(MustSet(EntityData{}, kindName, "b"))
	w.MarkForDestruction(a)
	w.FlushDestroyQueue()

	assert.Equal(t, []EntityID{b}, w.tracked[kindName])
	assert.Equal(t, []EntityID{b}, w.TakeAdded(kindName))
}

func TestAddComponentsOnDeadEntity(t *testing.T) {
	w := NewWorld()
	id := w.CreateEntity()
	w.MarkForDestruction(id)
	w.FlushDestroyQueue()

	err := w.AddComponents(id, MustSet(EntityData{}, kindName, "x"))
	assert.ErrorIs(t, err, ErrNoEntity)
}

func TestQueryReturnsEntitiesWithAllKinds(t *testing.T) {
	w := NewWorld()
	both := EntityData{}
	MustSet(both, kindName, "n")
	MustSet(both, kindScore, 1)
	a := w.Spawn(both)
	w.Spawn(MustSet(EntityData{}, kindName, "only"))

	assert.Equal(t, []EntityID{a}, w.Query(kindName, kindScore))
	assert.Len(t, w.Query(kindName), 2)
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	c.Register(KindInfo{Kind: "b", Attrs: AttrNetworked | AttrStore})
	c.Register(KindInfo{Kind: "a"})

	info, ok := c.Lookup("b")
	require.True(t, ok)
	assert.True(t, info.Has(AttrStore))
	assert.False(t, info.Has(AttrDebuggable))
	assert.False(t, c.Known("missing"))

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, Kind("a"), all[0].Kind)
}
