package object

import (
	"testing"

	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPrefetchWarmsCacheForPreloadedSpawn(t *testing.T) {
	h := newHarness(t)
	p := NewPrefetcher(h.loader, h.exec, zap.NewNop())

	p.Prefetch(asset.MustParseURL("http://h/"), "objects/main.json")
	h.exec.Wait()

	_, ok := h.loader.Peek(asset.MustParseURL(mainURL))
	assert.True(t, ok)

	ids, err := h.spawner().SpawnPreloaded(h.world, mainURL, testConfig(t, "pre"))
	assert.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, 1, h.fetch.Calls(mainURL))
}

func TestPrefetchSwallowsErrors(t *testing.T) {
	h := newHarness(t)
	p := NewPrefetcher(h.loader, h.exec, zap.NewNop())

	p.Prefetch(asset.URL{}, "not a url")
	p.Prefetch(asset.MustParseURL("http://h/"), "missing.json")
	h.exec.Wait()

	assert.Equal(t, 0, h.loader.Cached())
	assert.Equal(t, 1, h.fetch.Calls("http://h/missing.json"))
}
