// Package links extracts artifact links from package index pages and infers
// package names and versions from their filenames.
package links

import (
	"net/url"
	"path"
	"slices"
	"strings"
)

// SupportedFormats lists the artifact extensions kept by Page.Links.
var SupportedFormats = []string{
	".tar.gz",
	".whl",
	".zip",
	".tar.bz2",
	".tar.xz",
	".tar.Z",
	".tar",
	".tgz",
	".tbz",
	".egg",
}

// multiExtensions are checked before falling back to the last suffix.
var multiExtensions = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar.Z", ".tar.lz"}

// Link points at a single downloadable artifact.
type Link struct {
	URL            string
	Filename       string
	RequiresPython string
	ComesFrom      string // URL of the page the link was found on
	HashName       string
	Hash           string
}

// NewLink builds a Link from an absolute URL.
func NewLink(rawURL, comesFrom, requiresPython string) Link {
	l := Link{
		URL:            rawURL,
		RequiresPython: requiresPython,
		ComesFrom:      comesFrom,
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		l.Filename = path.Base(strings.SplitN(rawURL, "#", 2)[0])
		return l
	}

	name := path.Base(u.EscapedPath())
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "." || name == "/" {
		name = ""
	}
	l.Filename = name

	if frag := u.Fragment; frag != "" {
		if hashName, hash, ok := strings.Cut(frag, "="); ok {
			switch hashName {
			case "sha1", "sha224", "sha384", "sha256", "sha512", "md5":
				l.HashName, l.Hash = hashName, hash
			}
		}
	}
	return l
}

// Ext returns the artifact extension, preferring multi-part extensions such
// as ".tar.gz" over ".gz".
func (l Link) Ext() string {
	_, ext := l.SplitExt()
	return ext
}

// SplitExt splits the filename into its stem and extension.
func (l Link) SplitExt() (string, string) {
	return splitExt(l.Filename)
}

func splitExt(filename string) (string, string) {
	lower := strings.ToLower(filename)
	for _, ext := range multiExtensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			n := len(filename) - len(ext)
			return filename[:n], filename[n:]
		}
	}
	ext := path.Ext(filename)
	return strings.TrimSuffix(filename, ext), ext
}

// IsWheel reports whether the link is a built wheel.
func (l Link) IsWheel() bool {
	return l.Ext() == ".whl"
}

// IsSdist reports whether the link is a source archive.
func (l Link) IsSdist() bool {
	switch l.Ext() {
	case ".tar.gz", ".zip", ".tar.bz2", ".tar.xz", ".tar.Z", ".tar", ".tgz", ".tbz":
		return true
	}
	return false
}

// ShowURL is the URL without fragment, suitable for downloading.
func (l Link) ShowURL() string {
	if i := strings.IndexByte(l.URL, '#'); i >= 0 {
		return l.URL[:i]
	}
	return l.URL
}

func isSupported(ext string) bool {
	return slices.Contains(SupportedFormats, ext)
}
