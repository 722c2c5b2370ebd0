package object

import (
	"errors"
	"fmt"

	"github.com/kiwiworld/objectd/internal/core/ecs"
)

var (
	// ErrFetch, ErrDecode and ErrUnresolved classify a *LoadError for errors.Is.
	ErrFetch      = errors.New("fetch failed")
	ErrDecode     = errors.New("decode failed")
	ErrUnresolved = errors.New("unresolved reference")

	// ErrEmptyFragment is a decode failure: a fragment must hold an entity.
	ErrEmptyFragment = errors.New("fragment has no entities")
	// ErrNotPreloaded is returned by SpawnPreloaded on a cold cache.
	ErrNotPreloaded = errors.New("object not preloaded")
	// ErrNonFinite rejects spawn transforms containing NaN or Inf.
	ErrNonFinite = errors.New("spawn transform is not finite")
	// ErrShutdown is returned when the world no longer accepts work.
	ErrShutdown = errors.New("world is shutting down")
)

// LoadStage says which loading step failed.
type LoadStage int

const (
	StageFetch LoadStage = iota
	StageDecode
	StageResolve
)

func (s LoadStage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageDecode:
		return "decode"
	case StageResolve:
		return "resolve"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// LoadError is the single error type produced by Loader.Load.
type LoadError struct {
	Stage LoadStage
	URL   string
	// Component is set for StageResolve.
	Component ecs.Kind
	Entity    int
	Err       error
}

func (e *LoadError) Error() string {
	switch e.Stage {
	case StageResolve:
		return fmt.Sprintf("load object %s: resolve %s on entity %d: %v", e.URL, e.Component, e.Entity, e.Err)
	default:
		return fmt.Sprintf("load object %s: %s: %v", e.URL, e.Stage, e.Err)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrFetch:
		return e.Stage == StageFetch
	case ErrDecode:
		return e.Stage == StageDecode
	case ErrUnresolved:
		return e.Stage == StageResolve
	}
	return false
}
