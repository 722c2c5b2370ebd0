package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLCanonicalizes(t *testing.T) {
	u, err := ParseURL("  HTTP://Example.COM/objects/main.json#frag ")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/objects/main.json", u.String())
	assert.Equal(t, ".json", u.Ext())
}

func TestParseURLRejects(t *testing.T) {
	for _, s := range []string{"", "objects/main.json", "ftp://h/x", "http:///nohost"} {
		_, err := ParseURL(s)
		assert.Error(t, err, s)
	}
}

func TestParseURLNormalizesUnicode(t *testing.T) {
	decomposed := MustParseURL("http://h/cafe\u0301.json")
	precomposed := MustParseURL("http://h/caf\u00e9.json")
	assert.Equal(t, precomposed.String(), decomposed.String())
}

func TestResolve(t *testing.T) {
	base := MustParseURL("http://h/objects/main.json")
	cases := map[string]string{
		"model.glb":            "http://h/objects/model.glb",
		"../models/tree.json":  "http://h/models/tree.json",
		"/abs/path.json":       "http://h/abs/path.json",
		"https://cdn/x.json":   "https://cdn/x.json",
		"sub/dir/decal.json#a": "http://h/objects/sub/dir/decal.json",
	}
	for ref, want := range cases {
		got, err := base.Resolve(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, got.String(), ref)
	}
}

func TestResolveAbsoluteIsIdentity(t *testing.T) {
	base := MustParseURL("http://h/objects/main.json")
	abs := "http://other/models/a.glb"
	got, err := base.Resolve(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got.String())
}

func TestResolveRefKeepsRefAsWritten(t *testing.T) {
	base := MustParseURL("http://h/objects/main.json")
	for ref, want := range map[string]string{
		"http://CDN/d.json":       "http://CDN/d.json",
		"http://cdn/m.glb#LOD0":   "http://cdn/m.glb#LOD0",
		"m.glb#LOD0":              "http://h/objects/m.glb#LOD0",
		"../models/tree.glb":      "http://h/models/tree.glb",
		"//cdn/shared/rock.glb#a": "http://cdn/shared/rock.glb#a",
	} {
		got, err := base.ResolveRef(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, got, ref)
	}

	_, err := base.ResolveRef("")
	assert.ErrorIs(t, err, ErrEmptyURL)
	_, err = base.ResolveRef("ftp://h/x")
	assert.ErrorIs(t, err, ErrBadScheme)
	_, err = URL{}.ResolveRef("x")
	assert.Error(t, err)
}

func TestResolveErrors(t *testing.T) {
	base := MustParseURL("http://h/objects/main.json")
	_, err := base.Resolve("")
	assert.ErrorIs(t, err, ErrEmptyURL)
	_, err = base.Resolve("mailto:someone@h")
	assert.ErrorIs(t, err, ErrBadScheme)
	_, err = URL{}.Resolve("x")
	assert.Error(t, err)
}

func TestObjectManifestURL(t *testing.T) {
	assert.Equal(t, "http://h/obj/objects/main.json", ObjectManifestURL("http://h/obj"))
	assert.Equal(t, "http://h/obj/objects/main.json", ObjectManifestURL("http://h/obj/"))
	assert.Equal(t, "http://h/obj/objects/main.json", ObjectManifestURL("http://h/obj/objects/main.json"))
}
