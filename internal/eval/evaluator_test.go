package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
	"github.com/mcvm-launcher/mcvm-sub000/internal/script"
)

const sodiumScript = `
@install {
	if not side client {
		finish;
	}
	if not modloader fabriclike {
		fail "unsupported_modloader";
	}
	addon "sodium" mod (url="https://example.com/sodium-${MINECRAFT_VERSION}.jar");
}
`

func newEnv(side pkgid.Side, modloader, mcVersion string) *pkgid.Environment {
	vl := pkgid.NewVersionList([]string{"1.18.2", "1.19", "1.19.1", "1.19.3", "1.20"}, nil)
	return &pkgid.Environment{
		MCVersion:          mcVersion,
		Side:               side,
		Modloader:          modloader,
		RequestedFeatures:  map[string]struct{}{},
		Permissions:        pkgid.PermissionStandard,
		Versions:           vl,
		UseDefaultFeatures: true,
	}
}

func TestScenarioS1SodiumOnFabricClient(t *testing.T) {
	f, err := script.Parse(sodiumScript)
	require.Nil(t, err)

	env := newEnv(pkgid.SideClient, "fabric", "1.19.3")
	ep, eerr := Evaluate("sodium", f, env)
	require.Nil(t, eerr)
	require.Len(t, ep.SelectedAddons, 1)
	assert.Equal(t, pkgid.AddonKindMod, ep.SelectedAddons[0].Addon.Kind)
	assert.Equal(t, "https://example.com/sodium-1.19.3.jar", ep.SelectedAddons[0].Version.URL)
	assert.Empty(t, ep.Notices)
}

func TestScenarioS2SodiumOnServerFinishesEmpty(t *testing.T) {
	f, err := script.Parse(sodiumScript)
	require.Nil(t, err)

	env := newEnv(pkgid.SideServer, "fabric", "1.19.3")
	ep, eerr := Evaluate("sodium", f, env)
	require.Nil(t, eerr)
	assert.Empty(t, ep.SelectedAddons)
}

func TestScenarioS3SodiumOnForgeFails(t *testing.T) {
	f, err := script.Parse(sodiumScript)
	require.Nil(t, err)

	env := newEnv(pkgid.SideClient, "forge", "1.19.3")
	_, eerr := Evaluate("sodium", f, env)
	require.NotNil(t, eerr)
	assert.ErrorIs(t, eerr, pkgid.ErrEvaluationFailed)
	assert.Contains(t, eerr.Message, "unsupported_modloader")
}

func TestUndefinedVariableDirectUseFails(t *testing.T) {
	src := `@install { notice $UNDEFINED_VAR; }`
	f, err := script.Parse(src)
	require.Nil(t, err)
	env := newEnv(pkgid.SideClient, "fabric", "1.19")
	_, eerr := Evaluate("x", f, env)
	require.NotNil(t, eerr)
	assert.ErrorIs(t, eerr, pkgid.ErrUndefinedVariable)
}

func TestPathAddonRequiresElevatedPermission(t *testing.T) {
	src := `@install { addon "local" mod (path="/tmp/x.jar"); }`
	f, err := script.Parse(src)
	require.Nil(t, err)

	env := newEnv(pkgid.SideClient, "fabric", "1.19")
	env.Permissions = pkgid.PermissionStandard
	_, eerr := Evaluate("x", f, env)
	require.NotNil(t, eerr)
	assert.ErrorIs(t, eerr, pkgid.ErrPermissionDenied)

	env.Permissions = pkgid.PermissionElevated
	ep, eerr2 := Evaluate("x", f, env)
	require.Nil(t, eerr2)
	require.Len(t, ep.SelectedAddons, 1)
}

func TestCmdInstructionGatedByPermission(t *testing.T) {
	src := `@install { cmd "echo" "hi"; }`
	f, err := script.Parse(src)
	require.Nil(t, err)
	env := newEnv(pkgid.SideClient, "fabric", "1.19")
	_, eerr := Evaluate("x", f, env)
	require.NotNil(t, eerr)
	assert.ErrorIs(t, eerr, pkgid.ErrPermissionDenied)
}

func TestNoticeCapEnforced(t *testing.T) {
	src := `
@install {
	notice "n1"; notice "n2"; notice "n3"; notice "n4"; notice "n5"; notice "n6";
}
`
	f, err := script.Parse(src)
	require.Nil(t, err)
	env := newEnv(pkgid.SideClient, "fabric", "1.19")
	ep, eerr := Evaluate("x", f, env)
	require.Nil(t, eerr)
	assert.Len(t, ep.Notices, pkgid.MaxNotices)
}

func TestPropertiesRunBeforeInstall(t *testing.T) {
	src := `
@properties {
	feature_default "shaders" (default=true);
}
@install {
	if feature shaders {
		addon "shaderpack" shader (url="https://example.com/shader.zip");
	}
}
`
	f, err := script.Parse(src)
	require.Nil(t, err)
	env := newEnv(pkgid.SideClient, "fabric", "1.19")
	ep, eerr := Evaluate("x", f, env)
	require.Nil(t, eerr)
	require.Len(t, ep.SelectedAddons, 1)
}

func TestFeatureDefaultSkippedWhenUseDefaultFeaturesFalse(t *testing.T) {
	src := `
@properties {
	feature_default "shaders" (default=true);
}
@install {
	if feature shaders {
		addon "shaderpack" shader (url="https://example.com/shader.zip");
	}
}
`
	f, err := script.Parse(src)
	require.Nil(t, err)
	env := newEnv(pkgid.SideClient, "fabric", "1.19")
	env.UseDefaultFeatures = false
	ep, eerr := Evaluate("x", f, env)
	require.Nil(t, eerr)
	assert.Empty(t, ep.SelectedAddons)
}
