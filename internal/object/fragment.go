package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// FormatVersion is the newest fragment layout this decoder understands.
const FormatVersion = 1

// Fragment is a decoded object: an ordered list of entities whose
// sub-resource references are absolute. It is shared by every caller of the
// same URL and must be treated as read-only.
type Fragment struct {
	URL      string
	Entities []ecs.EntityData
	Warnings []string
	// Digest is the hex blake2b-256 of the source bytes.
	Digest string
}

// Len returns the number of entities.
func (f *Fragment) Len() int { return len(f.Entities) }

// Base returns the entity spawn transforms and intake merges apply to.
func (f *Fragment) Base() ecs.EntityData { return f.Entities[0] }

type fragmentDoc struct {
	Version  int              `json:"version" yaml:"version"`
	Entities []ecs.EntityData `json:"entities"`
}

type fragmentYAML struct {
	Version  int                      `yaml:"version"`
	Entities []map[string]interface{} `yaml:"entities"`
}

// KindFilter decides whether a component kind is kept. Dropped kinds produce
// a warning.
type KindFilter func(ecs.Kind) bool

// Decode parses fragment bytes. ext selects YAML for ".yaml"/".yml" and JSON
// otherwise. Problems that only affect single components are returned as
// warnings; anything else fails the decode.
func Decode(data []byte, ext string, keep KindFilter) (*Fragment, error) {
	var (
		doc fragmentDoc
		err error
	)
	switch ext {
	case ".yaml", ".yml":
		doc, err = decodeYAML(data)
	default:
		doc, err = decodeJSON(data)
	}
	if err != nil {
		return nil, err
	}

	frag := &Fragment{Digest: digest(data)}
	if doc.Version > FormatVersion {
		frag.Warnings = append(frag.Warnings,
			fmt.Sprintf("fragment version %d is newer than %d, decoding best effort", doc.Version, FormatVersion))
	}
	for i, ent := range doc.Entities {
		clean := make(ecs.EntityData, len(ent))
		for _, k := range sortedKinds(ent) {
			v := ent[k]
			switch {
			case k == "":
				frag.Warnings = append(frag.Warnings, fmt.Sprintf("entity %d: empty component kind dropped", i))
			case len(v) == 0 || bytes.Equal(v, []byte("null")):
				frag.Warnings = append(frag.Warnings, fmt.Sprintf("entity %d: component %s is null, dropped", i, k))
			case keep != nil && !keep(k):
				frag.Warnings = append(frag.Warnings, fmt.Sprintf("entity %d: unknown component %s dropped", i, k))
			default:
				clean[k] = v
			}
		}
		frag.Entities = append(frag.Entities, clean)
	}
	if len(frag.Entities) == 0 {
		return nil, ErrEmptyFragment
	}
	return frag, nil
}

func decodeJSON(data []byte) (fragmentDoc, error) {
	var doc fragmentDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func decodeYAML(data []byte) (fragmentDoc, error) {
	var raw fragmentYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fragmentDoc{}, err
	}
	doc := fragmentDoc{Version: raw.Version, Entities: make([]ecs.EntityData, 0, len(raw.Entities))}
	for i, ent := range raw.Entities {
		d := make(ecs.EntityData, len(ent))
		for k, v := range ent {
			bz, err := json.Marshal(v)
			if err != nil {
				return fragmentDoc{}, fmt.Errorf("entity %d component %s: %w", i, k, err)
			}
			d[ecs.Kind(k)] = bz
		}
		doc.Entities = append(doc.Entities, d)
	}
	return doc, nil
}

// Encode writes a fragment back to its JSON form.
func Encode(entities []ecs.EntityData) ([]byte, error) {
	return json.Marshal(fragmentDoc{Version: FormatVersion, Entities: entities})
}

func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortedKinds(d ecs.EntityData) []ecs.Kind {
	kinds := d.Kinds()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
