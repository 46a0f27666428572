// Package core provides the shared package model, the source contract with
// its matching policy, and the source registry.
package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/git-pkgs/pkgindex/internal/links"
	"github.com/git-pkgs/pkgindex/internal/version"
)

// Source types. The empty type marks a standard package.
const (
	SourceStandard = ""
	SourceLegacy   = "legacy"
)

// Dependency is a requirement on a package.
type Dependency struct {
	Name             string // canonical
	PrettyName       string
	Constraint       version.Constraint
	PrettyConstraint string
	AllowPrereleases bool
	Optional         bool
	Markers          string
	Extras           []string
	SourceName       string // restricts lookups to one source when set
}

// NewDependency parses constraint and canonicalizes name.
func NewDependency(name, constraint string) (Dependency, error) {
	c, err := version.ParseConstraint(constraint)
	if err != nil {
		return Dependency{}, fmt.Errorf("dependency %s: %w", name, err)
	}
	pretty := strings.TrimSpace(constraint)
	if pretty == "" {
		pretty = "*"
	}
	return Dependency{
		Name:             links.CanonicalizeName(name),
		PrettyName:       name,
		Constraint:       c,
		PrettyConstraint: pretty,
	}, nil
}

// MustDependency is like NewDependency but panics on a bad constraint.
func MustDependency(name, constraint string) Dependency {
	d, err := NewDependency(name, constraint)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Dependency) String() string {
	if d.PrettyConstraint == "" || d.PrettyConstraint == "*" {
		return d.PrettyName
	}
	return d.PrettyName + " (" + d.PrettyConstraint + ")"
}

// FileHash is the hash of one release artifact.
type FileHash struct {
	File string `json:"file"`
	Hash string `json:"hash"`
}

// Package is one version of a package as offered by a source.
type Package struct {
	Name            string // canonical
	PrettyName      string
	Version         version.Version
	SourceType      string
	SourceReference string
	SourceURL       string
	Extras          []string
	Description     string
	RequiresPython  string
	Requires        []Dependency
	Files           []FileHash
	License         string
}

// NewPackage returns a standard package.
func NewPackage(name string, v version.Version) *Package {
	return &Package{
		Name:       links.CanonicalizeName(name),
		PrettyName: name,
		Version:    v,
	}
}

// CompleteName is the name followed by the sorted extras, if any.
func (p *Package) CompleteName() string {
	if len(p.Extras) == 0 {
		return p.Name
	}
	extras := slices.Clone(p.Extras)
	slices.Sort(extras)
	return p.Name + "[" + strings.Join(extras, ",") + "]"
}

// UniqueName identifies the package within a source.
func (p *Package) UniqueName() string {
	id := p.CompleteName() + "-" + p.Version.String()
	if p.SourceReference != "" {
		id += "@" + p.SourceReference
	}
	return id
}

// IsPrerelease reports whether the version is unstable.
func (p *Package) IsPrerelease() bool {
	return p.Version.IsPrerelease()
}

// Clone returns a deep copy.
func (p *Package) Clone() *Package {
	c := *p
	c.Extras = slices.Clone(p.Extras)
	c.Files = slices.Clone(p.Files)
	if p.Requires != nil {
		c.Requires = make([]Dependency, len(p.Requires))
		for i, d := range p.Requires {
			d.Extras = slices.Clone(d.Extras)
			c.Requires[i] = d
		}
	}
	return &c
}

func (p *Package) String() string {
	return p.PrettyName + " (" + p.Version.String() + ")"
}
