package component

import (
	"math"

	"github.com/kiwiworld/objectd/internal/core/ecs"
)

const (
	KindTranslation ecs.Kind = "translation"
	KindRotation    ecs.Kind = "rotation"
	KindScale       ecs.Kind = "scale"
)

// Vec3 is encoded as a three element array.
type Vec3 [3]float32

// Quat is encoded as [x, y, z, w].
type Quat [4]float32

var (
	Vec3Zero     = Vec3{0, 0, 0}
	Vec3One      = Vec3{1, 1, 1}
	QuatIdentity = Quat{0, 0, 0, 1}
)

func finite(vs ...float32) bool {
	for _, v := range vs {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func (v Vec3) IsFinite() bool { return finite(v[:]...) }
func (q Quat) IsFinite() bool { return finite(q[:]...) }

// Transform is the rigid transform of an entity.
type Transform struct {
	Translation Vec3
	Rotation    Quat
	Scale       Vec3
}

// IdentityTransform sits at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{Translation: Vec3Zero, Rotation: QuatIdentity, Scale: Vec3One}
}

func (t Transform) IsFinite() bool {
	return t.Translation.IsFinite() && t.Rotation.IsFinite() && t.Scale.IsFinite()
}

// Data returns the transform as components.
func (t Transform) Data() ecs.EntityData {
	d := ecs.EntityData{}
	ecs.MustSet(d, KindTranslation, t.Translation)
	ecs.MustSet(d, KindRotation, t.Rotation)
	ecs.MustSet(d, KindScale, t.Scale)
	return d
}
