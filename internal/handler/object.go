package handler

import (
	"github.com/kiwiworld/objectd/internal/component"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/kiwiworld/objectd/internal/net"
	"github.com/kiwiworld/objectd/internal/net/packet"
	"github.com/kiwiworld/objectd/internal/object"
	"go.uber.org/zap"
)

// HandleLoadObject processes C_LOAD_OBJECT: [S url]. The object is
// prefetched into the cache; nothing is sent back.
func HandleLoadObject(sess *net.Session, r *packet.Reader, deps *Deps) {
	raw := r.ReadS()
	deps.Log.Debug("load object", zap.Uint64("session", sess.ID), zap.String("url", raw))
	deps.Prefetcher.Prefetch(baseFor(sess, deps), raw)
}

// HandleSpawnObject processes C_SPAWN_OBJECT:
//
//	[S url][S namespace, empty = fresh one from NewSpawnConfig]
//	[F tx][F ty][F tz] [F rx][F ry][F rz][F rw] [F sx][F sy][F sz]
//
// The spawn runs in the background; S_SPAWN_RESULT follows once it lands.
func HandleSpawnObject(sess *net.Session, r *packet.Reader, deps *Deps) {
	raw := r.ReadS()
	ns := object.Namespace(r.ReadS())
	var (
		t  component.Vec3
		q  component.Quat
		sc component.Vec3
	)
	for i := range t {
		t[i] = r.ReadF()
	}
	for i := range q {
		q[i] = r.ReadF()
	}
	for i := range sc {
		sc[i] = r.ReadF()
	}

	u, err := baseFor(sess, deps).Resolve(raw)
	if err != nil {
		sendSpawnResult(sess, raw, err, nil)
		return
	}
	cfg, err := object.NewSpawnConfig(ns, t, q, sc)
	if err != nil {
		sendSpawnResult(sess, u.String(), err, nil)
		return
	}

	url := u.String()
	err = deps.Spawner.FireSpawn(url, cfg, object.Callback(func(w *ecs.World, ids []ecs.EntityID, err error) {
		if err != nil {
			deps.Log.Warn("remote spawn failed",
				zap.Uint64("session", sess.ID),
				zap.String("url", url),
				zap.Error(err),
			)
			sendSpawnResult(sess, url, err, nil)
			return
		}
		sendSpawnResult(sess, url, nil, uidsOf(w, ids))
	}))
	if err != nil {
		sendSpawnResult(sess, url, err, nil)
	}
}

func uidsOf(w *ecs.World, ids []ecs.EntityID) []string {
	uids := make([]string, 0, len(ids))
	for _, id := range ids {
		d, ok := w.Get(id)
		if !ok {
			continue
		}
		if uid, ok, _ := ecs.Get[string](d, component.KindUID); ok {
			uids = append(uids, uid)
		}
	}
	return uids
}

// sendSpawnResult writes S_SPAWN_RESULT:
// [C ok][S url][S message][H count][S uid]...
func sendSpawnResult(sess *net.Session, url string, err error, uids []string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_SPAWN_RESULT)
	w.WriteBool(err == nil)
	w.WriteS(url)
	if err != nil {
		w.WriteS(err.Error())
	} else {
		w.WriteS("")
	}
	w.WriteH(uint16(len(uids)))
	for _, uid := range uids {
		w.WriteS(uid)
	}
	sess.Send(w.Bytes())
}
