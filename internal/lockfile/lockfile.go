// Package lockfile implements the Install Plan's durable wire format (C9):
// a deterministic JSON document an instance stores alongside its content
// directory so a later resolve can diff against what is already installed.
package lockfile

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
)

// Source identifies where one addon artifact came from, mirroring the
// exactly-one-of url/path constraint on AddonVersion.
type Source struct {
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// LockedAddon is one installed addon file within a locked package entry.
type LockedAddon struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	ArtifactHash string `json:"artifact_hash,omitempty"`
	Filename     string `json:"filename"`
	Source       Source `json:"source"`
}

// LockedPackage is one resolved package's durable record (§6 lockfile
// schema).
type LockedPackage struct {
	PackageID      string        `json:"package_id"`
	SourceHash     string        `json:"source_hash"`
	EvaluatedDigest string       `json:"evaluated_digest"`
	Addons         []LockedAddon `json:"addons"`
}

// Lockfile is the full durable record of one resolve run's Install Plan.
type Lockfile struct {
	RunID           string          `json:"run_id"`
	Packages        []LockedPackage `json:"packages"`
	Notices         []string        `json:"notices,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
}

// FromPlan converts a resolved Install Plan into its durable form. newRunID
// supplies the lockfile's run id (mcvm-resolve and the server pass the id of
// the current resolve run; tests pass a fixed one); a nil newRunID falls
// back to uuid.NewString.
func FromPlan(packages []*pkgid.EvaluatedPackage, notices []string, recommendations []pkgid.Recommendation, newRunID func() string) *Lockfile {
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	lf := &Lockfile{RunID: newRunID(), Notices: notices}
	for _, ep := range packages {
		lp := LockedPackage{
			PackageID:       ep.ID,
			SourceHash:      ep.SourceHash,
			EvaluatedDigest: EvaluatedDigest(ep),
		}
		for _, sa := range ep.SelectedAddons {
			la := LockedAddon{
				ID:       sa.Addon.ID,
				Kind:     string(sa.Addon.Kind),
				Filename: sa.Version.Filename,
				Source:   Source{URL: sa.Version.URL, Path: sa.Version.Path},
			}
			switch {
			case sa.Version.SHA256 != "":
				la.ArtifactHash = "sha256:" + sa.Version.SHA256
			case sa.Version.SHA512 != "":
				la.ArtifactHash = "sha512:" + sa.Version.SHA512
			}
			lp.Addons = append(lp.Addons, la)
		}
		lf.Packages = append(lf.Packages, lp)
	}
	for _, r := range recommendations {
		id := r.ID
		if r.Invert {
			id = "!" + id
		}
		lf.Recommendations = append(lf.Recommendations, id)
	}
	return lf
}

// EvaluatedDigest derives a stable per-package digest from the fields that
// determine install behavior, so a later resolve can detect "nothing
// meaningful changed" without re-hashing the whole plan.
func EvaluatedDigest(ep *pkgid.EvaluatedPackage) string {
	addonIDs := make([]string, 0, len(ep.SelectedAddons))
	for _, sa := range ep.SelectedAddons {
		addonIDs = append(addonIDs, sa.Addon.ID+"@"+sa.Version.ContentVersion)
	}
	sort.Strings(addonIDs)
	raw, _ := json.Marshal(struct {
		ID     string
		Addons []string
		Deps   []string
	}{ep.ID, addonIDs, append([]string{}, ep.Relations.Dependencies...)})
	return pkgid.HashBytes(raw)
}

// Marshal renders the lockfile deterministically: Go's encoding/json
// already emits struct fields in declaration order, and Packages/Addons
// preserve the resolver's topological order, so repeated runs over
// unchanged input produce byte-identical output apart from run_id, which
// differs per run unless the caller supplies the same id (P2).
func (lf *Lockfile) Marshal() ([]byte, error) {
	return json.MarshalIndent(lf, "", "  ")
}

// Parse reads a previously written lockfile.
func Parse(raw []byte) (*Lockfile, error) {
	var lf Lockfile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return nil, err
	}
	return &lf, nil
}

// Diff reports which package ids are newly added, removed, or changed
// (by evaluated digest) relative to a previous lockfile — the basis for an
// instance's apply step deciding what to download/link/remove.
func Diff(prev, next *Lockfile) (added, removed, changed []string) {
	prevByID := map[string]LockedPackage{}
	if prev != nil {
		for _, p := range prev.Packages {
			prevByID[p.PackageID] = p
		}
	}
	nextByID := map[string]LockedPackage{}
	for _, p := range next.Packages {
		nextByID[p.PackageID] = p
		old, existed := prevByID[p.PackageID]
		if !existed {
			added = append(added, p.PackageID)
		} else if old.EvaluatedDigest != p.EvaluatedDigest {
			changed = append(changed, p.PackageID)
		}
	}
	for id := range prevByID {
		if _, stillPresent := nextByID[id]; !stillPresent {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}
