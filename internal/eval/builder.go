// Package eval implements the evaluator (C4): a tree-walk interpreter over
// a parsed script.File that emits a pkgid.EvaluatedPackage.
package eval

import "github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"

// builder accumulates everything a script emits into an EvaluatedPackage.
// It is the scripted counterpart of the declarative compiler's in-progress
// record (§4.5 consumes exactly this shape via toEvaluatedPackage).
type builder struct {
	id         string
	meta       pkgid.Meta
	properties pkgid.Properties
	relations  pkgid.Relations
	addons     map[string]*pkgid.Addon
	addonOrder []string
	notices    []string
}

func newBuilder(id string) *builder {
	return &builder{
		id:         id,
		meta:       pkgid.Meta{},
		properties: pkgid.Properties{Features: map[string]bool{}},
		addons:     map[string]*pkgid.Addon{},
	}
}

func (b *builder) addonOf(id string, kind pkgid.AddonKind, optional bool) *pkgid.Addon {
	if a, ok := b.addons[id]; ok {
		return a
	}
	a := &pkgid.Addon{ID: id, Kind: kind, Optional: optional}
	b.addons[id] = a
	b.addonOrder = append(b.addonOrder, id)
	return a
}

func (b *builder) appendNotice(msg string) {
	if len(msg) > pkgid.MaxNoticeChar {
		msg = msg[:pkgid.MaxNoticeChar]
	}
	if len(b.notices) >= pkgid.MaxNotices {
		return
	}
	b.notices = append(b.notices, msg)
}

// toEvaluatedPackage finalizes the builder. Version selection among each
// addon's accumulated versions happens the same way C5 does it (§4.5
// steps 2-4), since both the scripted and declarative paths must produce
// the same kind of output (spec.md §1 point 2).
func (b *builder) toEvaluatedPackage(env *pkgid.Environment) (*pkgid.EvaluatedPackage, *pkgid.Error) {
	ep := &pkgid.EvaluatedPackage{
		ID:         b.id,
		Meta:       b.meta,
		Properties: b.properties,
		Relations:  b.relations,
		Notices:    b.notices,
	}
	for _, id := range b.addonOrder {
		addon := b.addons[id]
		chosen, ok := pkgid.SelectAddonVersion(addon, env)
		if !ok {
			if addon.Optional {
				ep.UnresolvedOptionalAddons = append(ep.UnresolvedOptionalAddons, id)
				continue
			}
			return nil, pkgid.NewUnsupportedEnvironment(id)
		}
		ep.SelectedAddons = append(ep.SelectedAddons, pkgid.SelectedAddon{Addon: *addon, Version: *chosen})
		ep.Relations.Merge(chosen.ExtraRelations)
		for _, n := range chosen.Notices {
			ep.AppendNotice(n)
		}
	}
	return ep, nil
}

