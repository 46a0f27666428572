package core

import (
	"fmt"

	packageurl "github.com/package-url/packageurl-go"
)

const repositoryURLQualifier = "repository_url"

// PURL wraps packageurl.PackageURL with index-specific helpers.
type PURL struct {
	packageurl.PackageURL
}

// FullName returns the package name with its namespace, if any.
func (p PURL) FullName() string {
	if p.Namespace == "" {
		return p.Name
	}
	return p.Namespace + "/" + p.Name
}

// RepositoryURL returns the repository_url qualifier.
func (p PURL) RepositoryURL() string {
	return p.Qualifiers.Map()[repositoryURLQualifier]
}

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:pypi/requests) and version PURLs (pkg:pypi/requests@2.31.0).
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, err
	}
	return &PURL{p}, nil
}

// DependencyFromPURL turns a pypi purl into a dependency. A version pins
// the dependency exactly; without one any version matches.
func DependencyFromPURL(purl string) (Dependency, error) {
	p, err := ParsePURL(purl)
	if err != nil {
		return Dependency{}, err
	}
	if p.Type != packageurl.TypePyPi {
		return Dependency{}, fmt.Errorf("unsupported purl type %q: %s", p.Type, purl)
	}
	constraint := "*"
	if p.Version != "" {
		constraint = "==" + p.Version
	}
	return NewDependency(p.FullName(), constraint)
}

// PURL returns the package URL of p. Packages from a non-standard source
// carry its URL as the repository_url qualifier.
func (p *Package) PURL() string {
	var qualifiers packageurl.Qualifiers
	if p.SourceURL != "" {
		qualifiers = packageurl.QualifiersFromMap(map[string]string{repositoryURLQualifier: p.SourceURL})
	}
	return packageurl.NewPackageURL(packageurl.TypePyPi, "", p.Name, p.Version.String(), qualifiers, "").ToString()
}
