package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ N int }
type pong struct{ S string }

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(p ping) { got = append(got, p.N) })

	Emit(b, ping{1})
	Emit(b, ping{2})
	assert.Equal(t, 0, b.DispatchAll(), "nothing readable before swap")

	b.SwapBuffers()
	assert.Equal(t, 2, b.DispatchAll())
	assert.Equal(t, []int{1, 2}, got)

	b.SwapBuffers()
	assert.Equal(t, 0, b.DispatchAll())
}

func TestBusRoutesByType(t *testing.T) {
	b := NewBus()
	var pings, pongs int
	Subscribe(b, func(ping) { pings++ })
	Subscribe(b, func(pong) { pongs++ })

	Emit(b, pong{"x"})
	Emit(b, ping{1})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 1, pings)
	assert.Equal(t, 1, pongs)
}
