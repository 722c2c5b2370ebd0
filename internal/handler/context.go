package handler

import (
	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/config"
	"github.com/kiwiworld/objectd/internal/net"
	"github.com/kiwiworld/objectd/internal/net/packet"
	"github.com/kiwiworld/objectd/internal/object"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config     *config.Config
	Log        *zap.Logger
	Base       asset.URL // server base url, used when a client sends none
	Spawner    *object.Spawner
	Prefetcher *object.Prefetcher
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.C_OPCODE_HELLO,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleHello(sess.(*net.Session), r, deps)
		},
	)

	ready := []packet.SessionState{packet.StateReady}

	reg.Register(packet.C_OPCODE_LOAD_OBJECT, ready,
		func(sess any, r *packet.Reader) {
			HandleLoadObject(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_SPAWN_OBJECT, ready,
		func(sess any, r *packet.Reader) {
			HandleSpawnObject(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_PING,
		[]packet.SessionState{packet.StateHandshake, packet.StateReady},
		func(sess any, r *packet.Reader) {
			HandlePing(sess.(*net.Session), r, deps)
		},
	)
}

// baseFor returns the base url relative references from sess resolve against.
func baseFor(sess *net.Session, deps *Deps) asset.URL {
	if sess.BaseURL != "" {
		if u, err := asset.ParseURL(sess.BaseURL); err == nil {
			return u
		}
	}
	return deps.Base
}

func sendError(sess *net.Session, msg string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_ERROR)
	w.WriteS(msg)
	sess.Send(w.Bytes())
}
