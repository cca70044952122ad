package declarative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
)

func env() *pkgid.Environment {
	vl := pkgid.NewVersionList([]string{"1.18.2", "1.19", "1.19.1", "1.19.3", "1.20"}, nil)
	return &pkgid.Environment{
		MCVersion:         "1.19.3",
		Side:              pkgid.SideClient,
		Modloader:         "fabric",
		RequestedFeatures: map[string]struct{}{},
		Permissions:       pkgid.PermissionStandard,
		Versions:          vl,
	}
}

const basicDecl = `{
  "meta": {"name": "Sodium"},
  "addons": {
    "sodium": {
      "kind": "mod",
      "versions": [
        {"conditions": {"modloaders": ["fabric"]}, "url": "https://example.com/sodium-fabric.jar"},
        {"conditions": {"modloaders": ["forge"]}, "url": "https://example.com/sodium-forge.jar"}
      ]
    }
  }
}`

func TestCompileSelectsMatchingVersion(t *testing.T) {
	f, perr := Parse([]byte(basicDecl))
	require.Nil(t, perr)

	ep, cerr := Compile("sodium", f, env())
	require.Nil(t, cerr)
	require.Len(t, ep.SelectedAddons, 1)
	assert.Equal(t, "https://example.com/sodium-fabric.jar", ep.SelectedAddons[0].Version.URL)
}

func TestCompileUnsupportedEnvironmentWhenNoVersionMatches(t *testing.T) {
	decl := `{"addons": {"x": {"kind": "mod", "versions": [{"conditions": {"modloaders": ["forge"]}, "url": "https://x"}]}}}`
	f, perr := Parse([]byte(decl))
	require.Nil(t, perr)

	_, cerr := Compile("x", f, env())
	require.NotNil(t, cerr)
	assert.ErrorIs(t, cerr, pkgid.ErrUnsupportedEnvironment)
}

func TestCompileOptionalAddonSkippedWithoutMatch(t *testing.T) {
	decl := `{"addons": {"x": {"kind": "mod", "optional": true, "versions": [{"conditions": {"modloaders": ["forge"]}, "url": "https://x"}]}}}`
	f, perr := Parse([]byte(decl))
	require.Nil(t, perr)

	ep, cerr := Compile("x", f, env())
	require.Nil(t, cerr)
	assert.Empty(t, ep.SelectedAddons)
	assert.Contains(t, ep.UnresolvedOptionalAddons, "x")
}

func TestCompilePathRequiresElevatedPermission(t *testing.T) {
	decl := `{"addons": {"x": {"kind": "mod", "versions": [{"path": "/local/x.jar"}]}}}`
	f, perr := Parse([]byte(decl))
	require.Nil(t, perr)

	e := env()
	_, cerr := Compile("x", f, e)
	require.NotNil(t, cerr)
	assert.ErrorIs(t, cerr, pkgid.ErrPermissionDenied)

	e.Permissions = pkgid.PermissionElevated
	ep, cerr2 := Compile("x", f, e)
	require.Nil(t, cerr2)
	require.Len(t, ep.SelectedAddons, 1)
}

func TestConditionalRulesAppendRelationsOnly(t *testing.T) {
	decl := `{
	  "conditional_rules": [
	    {"conditions": [{"modloaders": ["fabric"]}], "relations": {"dependencies": ["fabric-api"]}, "notices": ["needs fabric api"]}
	  ]
	}`
	f, perr := Parse([]byte(decl))
	require.Nil(t, perr)

	ep, cerr := Compile("x", f, env())
	require.Nil(t, cerr)
	assert.Contains(t, ep.Relations.Dependencies, "fabric-api")
	assert.Contains(t, ep.Notices, "needs fabric api")
}

func TestVersionTieBreakPrefersSpecificLoaderOverUnion(t *testing.T) {
	decl := `{"addons": {"x": {"kind": "mod", "versions": [
	  {"conditions": {"modloaders": ["fabriclike"]}, "url": "https://union"},
	  {"conditions": {"modloaders": ["fabric"]}, "url": "https://specific"}
	]}}}`
	f, perr := Parse([]byte(decl))
	require.Nil(t, perr)

	ep, cerr := Compile("x", f, env())
	require.Nil(t, cerr)
	require.Len(t, ep.SelectedAddons, 1)
	assert.Equal(t, "https://specific", ep.SelectedAddons[0].Version.URL)
}
