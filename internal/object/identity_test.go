package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveIsDeterministicAndDistinct(t *testing.T) {
	ns := Namespace("grp")
	assert.Equal(t, ns.Derive(3), ns.Derive(3))
	assert.Equal(t, "grp_0", ns.Derive(0))
	assert.Equal(t, "grp_12", ns.Derive(12))

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := ns.Derive(i)
		assert.False(t, seen[id], id)
		seen[id] = true
	}
}

func TestNewNamespaceIsUnique(t *testing.T) {
	seen := map[Namespace]bool{}
	for i := 0; i < 1000; i++ {
		ns := NewNamespace()
		assert.NotEmpty(t, ns)
		assert.False(t, seen[ns])
		seen[ns] = true
	}
}
