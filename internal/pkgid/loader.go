package pkgid

// Loader unions group concrete loaders so a package can target a family
// without enumerating every member (§3 "Loader match vocabulary").
var loaderUnions = map[string][]string{
	"fabriclike": {"fabric", "quilt"},
	"forgelike":  {"forge", "neoforged", "spongeforge"},
	"bukkit":     {"craftbukkit", "paper", "spigot", "glowstone", "pufferfish", "purpur"},
}

// IsLoaderUnion reports whether name is a recognized union rather than a
// concrete loader.
func IsLoaderUnion(name string) bool {
	_, ok := loaderUnions[name]
	return ok
}

// LoaderMatches reports whether the environment's concrete loader satisfies
// a match expression that may be a concrete loader name or a union name.
func LoaderMatches(match, concrete string) bool {
	if match == concrete {
		return true
	}
	members, ok := loaderUnions[match]
	if !ok {
		return false
	}
	for _, m := range members {
		if m == concrete {
			return true
		}
	}
	return false
}

// LoaderSpecificity ranks a loader match expression for the declarative
// compiler's version tie-break (§4.5b): identity matches outrank union
// matches. Concrete loaders all share the same (highest) specificity since
// the tie-break only distinguishes "this exact loader" from "a family
// containing this loader".
func LoaderSpecificity(match string) int {
	if IsLoaderUnion(match) {
		return 0
	}
	return 1
}
