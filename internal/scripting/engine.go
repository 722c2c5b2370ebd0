package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/kiwiworld/objectd/internal/object"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM. Scripts extend the set of resolvable
// component kinds without a rebuild:
//
//	register_resolver("sound", function(ref, base)
//	    return resolve_url("audio/" .. ref, base)
//	end)
//
// Resolvers run on background goroutines, so every VM call holds mu.
type Engine struct {
	mu        sync.Mutex
	vm        *lua.LState
	resolvers map[ecs.Kind]*lua.LFunction
	log       *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory and its resolvers/ subdirectory. A missing directory is not an
// error.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "resolvers")} {
		if err := e.loadDir(dir); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	e := &Engine{
		vm:        vm,
		resolvers: make(map[ecs.Kind]*lua.LFunction),
		log:       log.Named("lua"),
	}
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("register_resolver", vm.NewFunction(e.luaRegisterResolver))
	vm.SetGlobal("resolve_url", vm.NewFunction(luaResolveURL))
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))
	return e
}

// loadDir loads all .lua files in a directory, in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		e.mu.Lock()
		err := e.vm.DoFile(path)
		e.mu.Unlock()
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a script from memory.
func (e *Engine) LoadString(name, src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}

// Kinds returns the component kinds scripts registered resolvers for.
func (e *Engine) Kinds() []ecs.Kind {
	e.mu.Lock()
	kinds := make([]ecs.Kind, 0, len(e.resolvers))
	for k := range e.resolvers {
		kinds = append(kinds, k)
	}
	e.mu.Unlock()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Install registers every scripted resolver with r. Scripted kinds replace
// built-in ones of the same name.
func (e *Engine) Install(r *object.Resolvers) int {
	kinds := e.Kinds()
	for _, k := range kinds {
		k := k
		r.Register(k, func(v ecs.Value, base asset.URL) (ecs.Value, error) {
			return e.resolve(k, v, base)
		})
	}
	return len(kinds)
}

var errNoResult = errors.New("resolver returned nothing")

// resolve calls the script resolver of kind. Script resolvers take and
// return plain URL strings.
func (e *Engine) resolve(kind ecs.Kind, value ecs.Value, base asset.URL) (ecs.Value, error) {
	var ref string
	if err := json.Unmarshal(value, &ref); err != nil {
		return nil, fmt.Errorf("expected url string: %w", err)
	}

	e.mu.Lock()
	fn, ok := e.resolvers[kind]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("no lua resolver for %s", kind)
	}
	err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, lua.LString(ref), lua.LString(base.String()))
	var out, msg lua.LValue = lua.LNil, lua.LNil
	if err == nil {
		out = e.vm.Get(-2)
		msg = e.vm.Get(-1)
		e.vm.Pop(2)
	}
	e.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("lua resolver %s: %w", kind, err)
	}
	s, ok := out.(lua.LString)
	if !ok {
		if msg != lua.LNil {
			return nil, fmt.Errorf("lua resolver %s: %s", kind, msg.String())
		}
		return nil, fmt.Errorf("lua resolver %s: %w", kind, errNoResult)
	}
	if _, err := asset.ParseURL(string(s)); err != nil {
		return nil, fmt.Errorf("lua resolver %s: %w", kind, err)
	}
	return json.Marshal(string(s))
}

// register_resolver(kind, fn)
func (e *Engine) luaRegisterResolver(L *lua.LState) int {
	kind := L.CheckString(1)
	fn := L.CheckFunction(2)
	if kind == "" {
		L.ArgError(1, "empty component kind")
		return 0
	}
	e.resolvers[ecs.Kind(kind)] = fn
	e.log.Debug("lua resolver registered", zap.String("kind", kind))
	return 0
}

// resolve_url(ref, base) -> url | nil, err
func luaResolveURL(L *lua.LState) int {
	ref := L.CheckString(1)
	base, err := asset.ParseURL(L.CheckString(2))
	if err == nil {
		var abs string
		abs, err = base.ResolveRef(ref)
		if err == nil {
			L.Push(lua.LString(abs))
			return 1
		}
	}
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

// log(msg)
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info(L.CheckString(1))
	return 0
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vm != nil {
		e.vm.Close()
		e.vm = nil
	}
}
