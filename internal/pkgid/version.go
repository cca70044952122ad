package pkgid

// VersionList is the host-supplied ordered domain of game versions. Index 0
// is the oldest. Snapshot entries are flagged so "latest" can skip them
// unless stability is explicitly "latest".
type VersionList struct {
	versions []string
	index    map[string]int
	snapshot map[string]bool
}

// NewVersionList builds a VersionList from an ordered slice of version
// strings (oldest first) and the subset considered snapshots.
func NewVersionList(ordered []string, snapshots map[string]bool) *VersionList {
	idx := make(map[string]int, len(ordered))
	for i, v := range ordered {
		idx[v] = i
	}
	if snapshots == nil {
		snapshots = map[string]bool{}
	}
	return &VersionList{versions: ordered, index: idx, snapshot: snapshots}
}

// IndexOf returns the position of v in the ordered domain. Unknown versions
// return (-1, false); per §4.1 such a version compares as equal only to
// itself, which callers implement by falling back to string equality when
// either side is unknown.
func (vl *VersionList) IndexOf(v string) (int, bool) {
	i, ok := vl.index[v]
	if !ok {
		return -1, false
	}
	return i, true
}

// Latest returns the highest-indexed version, skipping snapshots unless
// stability is StabilityLatest.
func (vl *VersionList) Latest(stability Stability) (string, bool) {
	for i := len(vl.versions) - 1; i >= 0; i-- {
		v := vl.versions[i]
		if stability != StabilityLatest && vl.snapshot[v] {
			continue
		}
		return v, true
	}
	return "", false
}

// VersionKind tags the variant of a VersionPattern.
type VersionKind int

const (
	VersionSingle VersionKind = iota
	VersionBefore
	VersionAfter
	VersionRange
	VersionLatestPattern
	VersionAny
)

// VersionPattern is the tagged-variant matcher over the version domain
// described in §3.
type VersionPattern struct {
	Kind   VersionKind
	V      string // Single, Before, After
	Lo, Hi string // Range
}

// ParseVersionPattern parses the wire-format string representation of a
// VersionPattern used by both the script condition `version <arg>` and the
// declarative minecraft_versions list: "*" (Any), "latest" (Latest),
// ">v" (After), "<v" (Before), "lo..hi" (Range), or a bare version
// (Single).
func ParseVersionPattern(s string) VersionPattern {
	switch {
	case s == "*" || s == "":
		return Any()
	case s == "latest":
		return LatestPattern()
	case len(s) > 0 && s[0] == '>':
		return After(s[1:])
	case len(s) > 0 && s[0] == '<':
		return Before(s[1:])
	default:
		for i := 0; i+1 < len(s); i++ {
			if s[i] == '.' && s[i+1] == '.' {
				return Range(s[:i], s[i+2:])
			}
		}
		return Single(s)
	}
}

func Single(v string) VersionPattern      { return VersionPattern{Kind: VersionSingle, V: v} }
func Before(v string) VersionPattern      { return VersionPattern{Kind: VersionBefore, V: v} }
func After(v string) VersionPattern       { return VersionPattern{Kind: VersionAfter, V: v} }
func Range(lo, hi string) VersionPattern  { return VersionPattern{Kind: VersionRange, Lo: lo, Hi: hi} }
func LatestPattern() VersionPattern       { return VersionPattern{Kind: VersionLatestPattern} }
func Any() VersionPattern                 { return VersionPattern{Kind: VersionAny} }

// Matches reports whether version v (a concrete host version string)
// satisfies the pattern under the given version domain and stability
// preference (used only by the Latest pattern).
func (p VersionPattern) Matches(v string, vl *VersionList, stability Stability) bool {
	switch p.Kind {
	case VersionAny:
		return true
	case VersionSingle:
		return versionEqual(v, p.V, vl)
	case VersionBefore:
		return versionCompare(v, p.V, vl) == -1
	case VersionAfter:
		return versionCompare(v, p.V, vl) > 0
	case VersionRange:
		return versionCompare(v, p.Lo, vl) >= 0 && versionCompare(v, p.Hi, vl) <= 0
	case VersionLatestPattern:
		latest, ok := vl.Latest(stability)
		if !ok {
			return false
		}
		return versionEqual(v, latest, vl)
	default:
		return false
	}
}

func versionEqual(a, b string, vl *VersionList) bool {
	ai, aok := vl.IndexOf(a)
	bi, bok := vl.IndexOf(b)
	if aok && bok {
		return ai == bi
	}
	return a == b
}

// versionCompare orders a relative to b using the domain index. Unknown
// versions compare equal only to themselves (§4.1) and otherwise as
// incomparable, which we conservatively treat as "not matching" (-2/2
// sentinel collapsed to a non-zero, non-matching direction by the callers
// above never matching an unknown boundary against itself).
func versionCompare(a, b string, vl *VersionList) int {
	ai, aok := vl.IndexOf(a)
	bi, bok := vl.IndexOf(b)
	if aok && bok {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	if a == b {
		return 0
	}
	// Incomparable: push toward "excluded" for Before/After/Range bounds.
	return -2
}
