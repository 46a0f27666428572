package links

import (
	"regexp"

	"golang.org/x/text/cases"

	"github.com/git-pkgs/pkgindex/internal/version"
)

var (
	wheelFile = regexp.MustCompile(
		`^(?P<namever>(?P<name>.+?)-(?P<ver>\d.*?))(-(?P<build>\d.*?))?-(?P<pyver>.+?)-(?P<abi>.+?)-(?P<plat>.+?)\.whl$`)
	archiveStem = regexp.MustCompile(`(?i)^([a-z0-9_\-.]+?)-(\d[a-z0-9_.!+-]*)`)
	separators  = regexp.MustCompile(`[-_.]+`)
)

// Candidate is a (name, version) pair inferred from a link.
type Candidate struct {
	Name    string
	Version version.Version
	Link    Link
}

// Infer derives a canonical package name and a version from a link's
// filename. Wheels yield both; other archives, and wheels whose name does
// not follow the wheel grammar, only ever yield a version.
// An empty name or nil version means that part could not be determined.
func Infer(l Link) (string, *version.Version) {
	if l.IsWheel() {
		if m := wheelFile.FindStringSubmatch(l.Filename); m != nil {
			name := CanonicalizeName(m[wheelFile.SubexpIndex("name")])
			v, err := version.Parse(m[wheelFile.SubexpIndex("ver")])
			if err != nil {
				return name, nil
			}
			return name, &v
		}
	}

	stem, _ := l.SplitExt()
	m := archiveStem.FindStringSubmatch(stem)
	if m == nil {
		return "", nil
	}
	v, err := version.Parse(m[2])
	if err != nil {
		return "", nil
	}
	return "", &v
}

// InferVersion is Infer without the name.
func InferVersion(l Link) *version.Version {
	_, v := Infer(l)
	return v
}

// CanonicalizeName normalizes a distribution name: runs of '-', '_' and
// '.' collapse to a single '-' and the result is case folded.
func CanonicalizeName(name string) string {
	return cases.Fold().String(separators.ReplaceAllString(name, "-"))
}
