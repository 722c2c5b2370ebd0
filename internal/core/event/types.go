package event

import "github.com/kiwiworld/objectd/internal/core/ecs"

// ObjectSpawned is emitted after a fragment was spliced into the world as new
// entities.
type ObjectSpawned struct {
	URL       string
	Namespace string
	Entities  []ecs.EntityID
	UIDs      []string
	Digest    string
	// Transform of the base entity, kept so the spawn can be replayed.
	Translation [3]float32
	Rotation    [4]float32
	Scale       [3]float32
}

// ObjectMerged is emitted after an object_from_url request was satisfied by
// merging the fragment's base entity onto the requester.
type ObjectMerged struct {
	URL       string
	Requester ecs.EntityID
}

// ObjectLoadFailed reports a load that reached no caller able to handle it.
type ObjectLoadFailed struct {
	URL    string
	Reason string
	Err    error
}
