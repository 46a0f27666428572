package core

import "github.com/git-pkgs/pkgindex/internal/version"

// ConstraintsFromDependency returns the constraint to match with and
// whether pre-releases are allowed. A range bounded by a pre-release
// allows them regardless of the dependency's own flag.
func ConstraintsFromDependency(dep Dependency) (version.Constraint, bool) {
	c := dep.Constraint
	if c == nil {
		c = version.Any()
	}
	allow := dep.AllowPrereleases
	if version.HasPrereleaseBound(c) {
		allow = true
	}
	return c, allow
}

// Match splits items into those satisfying c and the pre-releases that
// were skipped. Skipped pre-releases are only remembered when c is any.
// standard reports whether an item comes from a standard source; only
// those are subject to the pre-release rule. A pre-release also matches
// when c allows its next patch.
func Match[T any](items []T, c version.Constraint, allowPrereleases bool, versionOf func(T) version.Version, standard func(T) bool) (matched, ignored []T) {
	for _, item := range items {
		v := versionOf(item)
		if v.IsPrerelease() && !allowPrereleases && standard(item) {
			if c.IsAny() {
				ignored = append(ignored, item)
			}
			continue
		}
		if c.Allows(v) || (v.IsPrerelease() && c.Allows(v.NextPatch())) {
			matched = append(matched, item)
		}
	}
	return matched, ignored
}

// Select applies the fallback: the matched set when it is non-empty or the
// constraint is not any, otherwise the ignored pre-releases.
func Select[T any](matched, ignored []T, c version.Constraint) []T {
	if len(matched) > 0 || !c.IsAny() {
		return matched
	}
	return ignored
}

// Always is a standard predicate that treats every item as standard.
func Always[T any](T) bool { return true }
