// Package declarative implements the declarative package format and
// compiler (C5): parsing a declarative package file (tolerant JSON5, like
// the fabric.mod.json files in the wider ecosystem) and compiling it,
// together with any Evaluated-Package-builder state C4 produced, into a
// canonical pkgid.EvaluatedPackage.
package declarative

import (
	"github.com/titanous/json5"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
)

// File is the wire shape of a declarative package file (§6): "<id>.json"
// with meta/properties/relations/addons/conditional_rules, every section
// optional.
type File struct {
	Meta             map[string]string     `json:"meta"`
	Properties       propertiesWire        `json:"properties"`
	Relations        relationsWire         `json:"relations"`
	Addons           map[string]addonWire  `json:"addons"`
	ConditionalRules []conditionalRuleWire `json:"conditional_rules"`
}

type propertiesWire struct {
	Features map[string]bool `json:"features"`
}

type relationsWire struct {
	Dependencies         []string       `json:"dependencies"`
	ExplicitDependencies []string       `json:"explicit_dependencies"`
	Conflicts            []string       `json:"conflicts"`
	Extensions           []string       `json:"extensions"`
	Bundled              []string       `json:"bundled"`
	Compats              [][2]string    `json:"compats"`
	Recommendations      []recommendWire `json:"recommendations"`
}

type recommendWire struct {
	ID     string `json:"id"`
	Invert bool   `json:"invert"`
}

type addonWire struct {
	Kind     string           `json:"kind"`
	Optional bool             `json:"optional"`
	Versions []addonVersionWire `json:"versions"`
}

type addonVersionWire struct {
	Conditions     conditionSetWire  `json:"conditions"`
	URL            string            `json:"url"`
	Path           string            `json:"path"`
	ContentVersion string            `json:"content_version"`
	Filename       string            `json:"filename"`
	SHA256         string            `json:"sha256"`
	SHA512         string            `json:"sha512"`
	Relations      *relationsWire    `json:"relations"`
	Notices        []string          `json:"notices"`
}

type conditionSetWire struct {
	MinecraftVersions []string `json:"minecraft_versions"`
	Side              string   `json:"side"`
	Modloaders        []string `json:"modloaders"`
	PluginLoaders     []string `json:"plugin_loaders"`
	Stability         string   `json:"stability"`
	Features          []string `json:"features"`
	ContentVersions   []string `json:"content_versions"`
	OperatingSystems  []string `json:"operating_systems"`
	Architectures     []string `json:"architectures"`
	Languages         []string `json:"languages"`
}

type conditionalRuleWire struct {
	Conditions []conditionSetWire `json:"conditions"`
	Relations  *relationsWire     `json:"relations"`
	Notices    []string           `json:"notices"`
}

// Parse reads a declarative package file. json5 tolerance (trailing
// commas, comments) matches how these files are hand-authored in practice,
// the same rationale the fabric-mod-bisect-tool example applies to
// fabric.mod.json.
func Parse(raw []byte) (*File, *pkgid.Error) {
	var f File
	if err := json5.Unmarshal(raw, &f); err != nil {
		return nil, pkgid.NewParseError(0, 0, "declarative file: "+err.Error())
	}
	return &f, nil
}

func (cs conditionSetWire) toConditionSet() pkgid.ConditionSet {
	out := pkgid.ConditionSet{
		Modloaders:       cs.Modloaders,
		PluginLoaders:    cs.PluginLoaders,
		Features:         cs.Features,
		ContentVersions:  cs.ContentVersions,
		OperatingSystems: cs.OperatingSystems,
		Architectures:    cs.Architectures,
		Languages:        cs.Languages,
	}
	for _, v := range cs.MinecraftVersions {
		out.MinecraftVersions = append(out.MinecraftVersions, pkgid.ParseVersionPattern(v))
	}
	if cs.Side != "" {
		s := pkgid.Side(cs.Side)
		out.Side = &s
	}
	if cs.Stability != "" {
		if st, ok := pkgid.ParseStability(cs.Stability); ok {
			out.Stability = &st
		}
	}
	return out
}

func (r relationsWire) toRelations() pkgid.Relations {
	out := pkgid.Relations{
		Dependencies:         r.Dependencies,
		ExplicitDependencies: r.ExplicitDependencies,
		Conflicts:            r.Conflicts,
		Extensions:           r.Extensions,
		Bundled:              r.Bundled,
	}
	for _, c := range r.Compats {
		out.Compats = append(out.Compats, pkgid.CompatPair{If: c[0], Then: c[1]})
	}
	for _, rec := range r.Recommendations {
		out.Recommendations = append(out.Recommendations, pkgid.Recommendation{ID: rec.ID, Invert: rec.Invert})
	}
	return out
}

// conjSatisfies implements "each rule's Condition Set is conjunctive; all
// listed sets must be satisfied for the rule to fire" (§4.5 step 1).
func conjSatisfies(sets []conditionSetWire, env *pkgid.Environment) bool {
	for _, cs := range sets {
		converted := cs.toConditionSet()
		if !converted.Satisfies(env) {
			return false
		}
	}
	return true
}

// Compile produces the canonical Evaluated Package from a declarative File
// under env, following the six steps of §4.5.
func Compile(id string, f *File, env *pkgid.Environment) (*pkgid.EvaluatedPackage, *pkgid.Error) {
	ep := &pkgid.EvaluatedPackage{
		ID:         id,
		Meta:       pkgid.Meta(f.Meta),
		Properties: pkgid.Properties{Features: f.Properties.Features},
		Relations:  f.Relations.toRelations(),
	}
	if ep.Meta == nil {
		ep.Meta = pkgid.Meta{}
	}
	if ep.Properties.Features == nil {
		ep.Properties.Features = map[string]bool{}
	}

	// Step 1: apply conditional_rules in file order. Decision (DESIGN.md):
	// rules never mutate addons, only append relations/notices.
	for _, rule := range f.ConditionalRules {
		if !conjSatisfies(rule.Conditions, env) {
			continue
		}
		if rule.Relations != nil {
			ep.Relations.Merge(rule.Relations.toRelations())
		}
		for _, n := range rule.Notices {
			ep.AppendNotice(n)
		}
	}

	// Steps 2-6: per addon, filter candidate versions and select one.
	ids := sortedAddonIDs(f.Addons)
	for _, addonID := range ids {
		wire := f.Addons[addonID]
		addon := pkgid.Addon{ID: addonID, Kind: pkgid.AddonKind(wire.Kind), Optional: wire.Optional}
		for _, vw := range wire.Versions {
			v := pkgid.AddonVersion{
				Conditions:     vw.Conditions.toConditionSet(),
				URL:            vw.URL,
				Path:           vw.Path,
				ContentVersion: vw.ContentVersion,
				Filename:       vw.Filename,
				SHA256:         vw.SHA256,
				SHA512:         vw.SHA512,
				Notices:        vw.Notices,
			}
			if vw.Relations != nil {
				v.ExtraRelations = vw.Relations.toRelations()
			}
			addon.Versions = append(addon.Versions, v)
		}

		chosen, ok := pkgid.SelectAddonVersion(&addon, env)
		if !ok {
			if addon.Optional {
				ep.UnresolvedOptionalAddons = append(ep.UnresolvedOptionalAddons, addonID)
				continue
			}
			return nil, pkgid.NewUnsupportedEnvironment(addonID)
		}
		// Step 6: exactly one of url/path; path requires elevated.
		if verr := chosen.Validate(); verr != nil {
			return nil, verr
		}
		if chosen.Path != "" && env.Permissions < pkgid.PermissionElevated {
			return nil, pkgid.NewPermissionDenied("addon_path")
		}
		ep.SelectedAddons = append(ep.SelectedAddons, pkgid.SelectedAddon{Addon: addon, Version: *chosen})
		ep.Relations.Merge(chosen.ExtraRelations)
		for _, n := range chosen.Notices {
			ep.AppendNotice(n)
		}
	}

	return ep, nil
}

func sortedAddonIDs(m map[string]addonWire) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
