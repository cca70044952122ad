// Package sandbox implements the permission-gating policy (C8) applied
// uniformly across the evaluator (C4) and the declarative compiler (C5).
package sandbox

import "github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"

// Capability names the gated operations from the table in §4.8.
type Capability string

const (
	CapabilityDeclarativeEval Capability = "declarative_evaluation"
	CapabilityScriptedEval    Capability = "scripted_evaluation"
	CapabilityAddonURL        Capability = "addon_url"
	CapabilityAddonPath       Capability = "addon_path"
	CapabilityCmd             Capability = "cmd_instruction"
	CapabilityNotice          Capability = "notice"
)

// allowed is the permission table from §4.8: capability -> minimum
// permission level required.
var allowed = map[Capability]pkgid.Permission{
	CapabilityDeclarativeEval: pkgid.PermissionRestricted,
	CapabilityScriptedEval:    pkgid.PermissionRestricted,
	CapabilityAddonURL:        pkgid.PermissionRestricted,
	CapabilityAddonPath:       pkgid.PermissionElevated,
	CapabilityCmd:             pkgid.PermissionElevated,
	CapabilityNotice:          pkgid.PermissionRestricted,
}

// Check reports whether perm permits cap, per the fixed table in §4.8.
// Violations are fatal; there is no silent downgrade path.
func Check(perm pkgid.Permission, cap Capability) bool {
	min, ok := allowed[cap]
	if !ok {
		return false
	}
	return perm >= min
}

// Require returns a PermissionDenied error if perm does not permit cap,
// else nil. The evaluator (C4) calls it directly; the declarative compiler
// (C5) applies the same path-requires-elevated rule with its own check.
func Require(perm pkgid.Permission, cap Capability) error {
	if Check(perm, cap) {
		return nil
	}
	return pkgid.NewPermissionDenied(string(cap))
}
