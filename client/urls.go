package client

import "strings"

// URLBuilder constructs the URLs a repository exposes for a package.
type URLBuilder interface {
	Index(name string) string
	Release(name, version string) string
	PURL(name, version string) string
}

// IndexURLs builds URLs for a simple package index rooted at Base.
type IndexURLs struct {
	Base   string
	PURLFn func(name, version string) string
}

// Index returns the package's index page. Dots in the name become dashes
// and the URL always ends in a slash.
func (u *IndexURLs) Index(name string) string {
	return strings.TrimRight(u.Base, "/") + "/" + strings.ReplaceAll(name, ".", "-") + "/"
}

// Release points at the index page; releases have no page of their own.
func (u *IndexURLs) Release(name, version string) string {
	return u.Index(name)
}

func (u *IndexURLs) PURL(name, version string) string {
	if u.PURLFn != nil {
		return u.PURLFn(name, version)
	}
	return ""
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "index", "release" and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Index(name); v != "" {
		result["index"] = v
	}
	if v := urls.Release(name, version); v != "" {
		result["release"] = v
	}
	if v := urls.PURL(name, version); v != "" {
		result["purl"] = v
	}
	return result
}
