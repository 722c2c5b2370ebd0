package handler

import (
	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/net"
	"github.com/kiwiworld/objectd/internal/net/packet"
	"go.uber.org/zap"
)

// HandleHello processes C_HELLO: [S client name][S base url].
// An empty base url means the server's. Replies S_WELCOME and moves the
// session to Ready; a bad base url gets S_ERROR and the session stays put.
func HandleHello(sess *net.Session, r *packet.Reader, deps *Deps) {
	name := r.ReadS()
	rawBase := r.ReadS()

	base := deps.Base
	if rawBase != "" {
		u, err := asset.ParseURL(rawBase)
		if err != nil {
			deps.Log.Warn("hello rejected",
				zap.Uint64("session", sess.ID),
				zap.String("base_url", rawBase),
				zap.Error(err),
			)
			sendError(sess, err.Error())
			return
		}
		base = u
	}

	sess.ClientName = name
	sess.BaseURL = base.String()
	sess.SetState(packet.StateReady)

	w := packet.NewWriterWithOpcode(packet.S_OPCODE_WELCOME)
	w.WriteH(packet.ProtocolVersion)
	w.WriteS(deps.Config.Server.Name)
	w.WriteS(sess.BaseURL)
	sess.Send(w.Bytes())

	deps.Log.Info("client ready",
		zap.Uint64("session", sess.ID),
		zap.String("client", name),
		zap.String("base_url", sess.BaseURL),
	)
}

// HandlePing processes C_PING and replies S_PONG.
func HandlePing(sess *net.Session, _ *packet.Reader, _ *Deps) {
	sess.Send([]byte{packet.S_OPCODE_PONG})
}
