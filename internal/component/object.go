package component

import "github.com/kiwiworld/objectd/internal/core/ecs"

const (
	// KindObjectFromURL asks the intake system to load an object and merge
	// it onto the carrying entity. Value: URL string, absolute or relative to
	// the server base URL.
	KindObjectFromURL ecs.Kind = "object_from_url"
	// KindUID is the stable identity of a spawned entity.
	KindUID ecs.Kind = "uid"
	// KindName is a human readable label.
	KindName ecs.Kind = "name"

	// Sub-resource references. Stored relative to the fragment in baked
	// assets, absolute after loading.
	KindModelDef ecs.Kind = "model_def"
	KindCollider ecs.Kind = "collider"
	KindDecal    ecs.Kind = "decal"
)

// Register adds the built-in kinds to c.
func Register(c *ecs.Catalog) {
	for _, info := range builtins {
		c.Register(info)
	}
}

var builtins = []ecs.KindInfo{
	{Kind: KindObjectFromURL, Name: "Object from url", Description: "Load and attach an object from a url or relative path",
		Attrs: ecs.AttrDebuggable | ecs.AttrNetworked | ecs.AttrStore},
	{Kind: KindUID, Name: "Entity uid", Description: "Stable identity derived from the spawn namespace",
		Attrs: ecs.AttrDebuggable | ecs.AttrNetworked | ecs.AttrStore},
	{Kind: KindName, Name: "Name", Attrs: ecs.AttrDebuggable | ecs.AttrNetworked | ecs.AttrStore},
	{Kind: KindTranslation, Name: "Translation", Attrs: ecs.AttrDebuggable | ecs.AttrNetworked | ecs.AttrStore},
	{Kind: KindRotation, Name: "Rotation", Attrs: ecs.AttrDebuggable | ecs.AttrNetworked | ecs.AttrStore},
	{Kind: KindScale, Name: "Scale", Attrs: ecs.AttrDebuggable | ecs.AttrNetworked | ecs.AttrStore},
	{Kind: KindModelDef, Name: "Model definition", Description: "URL of the model to render",
		Attrs: ecs.AttrDebuggable | ecs.AttrNetworked | ecs.AttrStore},
	{Kind: KindCollider, Name: "Collider", Description: "Collision shape, optionally built from model URLs",
		Attrs: ecs.AttrDebuggable | ecs.AttrNetworked | ecs.AttrStore},
	{Kind: KindDecal, Name: "Decal", Description: "URL of the decal definition",
		Attrs: ecs.AttrDebuggable | ecs.AttrNetworked | ecs.AttrStore},
}
