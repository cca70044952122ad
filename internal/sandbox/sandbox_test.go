package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
)

func TestPermissionTable(t *testing.T) {
	t.Run("restricted cannot use path addons or cmd", func(t *testing.T) {
		assert.False(t, Check(pkgid.PermissionRestricted, CapabilityAddonPath))
		assert.False(t, Check(pkgid.PermissionRestricted, CapabilityCmd))
		assert.True(t, Check(pkgid.PermissionRestricted, CapabilityAddonURL))
	})

	t.Run("elevated can do everything", func(t *testing.T) {
		assert.True(t, Check(pkgid.PermissionElevated, CapabilityAddonPath))
		assert.True(t, Check(pkgid.PermissionElevated, CapabilityCmd))
	})

	t.Run("require returns PermissionDenied on violation", func(t *testing.T) {
		err := Require(pkgid.PermissionStandard, CapabilityCmd)
		assert.ErrorIs(t, err, pkgid.ErrPermissionDenied)
	})
}
