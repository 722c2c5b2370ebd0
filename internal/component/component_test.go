package component

import (
	"math"
	"testing"

	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformFinite(t *testing.T) {
	assert.True(t, IdentityTransform().IsFinite())

	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	assert.False(t, Transform{Translation: Vec3{nan, 0, 0}, Rotation: QuatIdentity, Scale: Vec3One}.IsFinite())
	assert.False(t, Transform{Translation: Vec3Zero, Rotation: Quat{0, inf, 0, 1}, Scale: Vec3One}.IsFinite())
	assert.False(t, Transform{Translation: Vec3Zero, Rotation: QuatIdentity, Scale: Vec3{1, 1, -inf}}.IsFinite())
}

func TestTransformData(t *testing.T) {
	tr := Transform{Translation: Vec3{1, 2, 3}, Rotation: QuatIdentity, Scale: Vec3{2, 2, 2}}
	d := tr.Data()
	got, ok, err := ecs.Get[Vec3](d, KindTranslation)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Vec3{1, 2, 3}, got)
	assert.JSONEq(t, `[0,0,0,1]`, string(d[KindRotation]))
}

func TestRegisterBuiltins(t *testing.T) {
	c := ecs.NewCatalog()
	Register(c)
	info, ok := c.Lookup(KindObjectFromURL)
	require.True(t, ok)
	assert.Equal(t, "Object from url", info.Name)
	assert.True(t, c.Known(KindCollider))
}
