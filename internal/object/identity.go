package object

import (
	"strconv"

	"github.com/google/uuid"
)

// Namespace prefixes the identities of one spawn group. Entity i of the
// group is always Derive(i), so a replayed spawn reproduces the same uids.
type Namespace string

// NewNamespace returns a fresh namespace from a version 7 UUID (unix time
// plus random bits).
func NewNamespace() Namespace {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Namespace(id.String())
}

// Derive returns the identity of entity i in the group.
func (ns Namespace) Derive(i int) string {
	return string(ns) + "_" + strconv.Itoa(i)
}

func (ns Namespace) String() string { return string(ns) }
