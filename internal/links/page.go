package links

import (
	"fmt"
	"io"
	"iter"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/git-pkgs/pkgindex/internal/version"
)

var unsafeChars = regexp.MustCompile(`(?i)[^a-z0-9$&+,/:;=?@.#%_\\|-]`)

// Page is a parsed package index page.
type Page struct {
	url  string
	base *url.URL
	root *html.Node
}

// NewPage wraps an already parsed HTML tree. pageURL is the address the
// page was served from and becomes the base for relative links.
func NewPage(pageURL string, root *html.Node) (*Page, error) {
	if !strings.HasSuffix(pageURL, "/") {
		pageURL += "/"
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url: %w", err)
	}
	return &Page{url: pageURL, base: base, root: root}, nil
}

// ParsePage parses HTML markup and wraps it in a Page.
func ParsePage(pageURL string, r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing index page: %w", err)
	}
	return NewPage(pageURL, root)
}

// URL returns the page URL, always with a trailing slash.
func (p *Page) URL() string {
	return p.url
}

// Links yields every supported artifact link on the page once. The
// sequence can be ranged over any number of times.
func (p *Page) Links() iter.Seq[Link] {
	return func(yield func(Link) bool) {
		seen := make(map[string]bool)
		walkAnchors(p.root, func(n *html.Node) bool {
			href := getAttr(n, "href")
			if href == "" {
				return true
			}
			ref, err := url.Parse(CleanLink(href))
			if err != nil {
				return true
			}
			abs := CleanLink(p.base.ResolveReference(ref).String())
			if seen[abs] {
				return true
			}

			requiresPython := getAttr(n, "data-requires-python")
			if requiresPython != "" {
				requiresPython = html.UnescapeString(requiresPython)
			}

			link := NewLink(abs, p.url, requiresPython)
			if !isSupported(link.Ext()) {
				return true
			}
			seen[abs] = true
			return yield(link)
		})
	}
}

// Versions yields each distinct version inferred from the page's links.
func (p *Page) Versions() iter.Seq[version.Version] {
	return func(yield func(version.Version) bool) {
		seen := make(map[string]bool)
		for link := range p.Links() {
			_, v := Infer(link)
			if v == nil || seen[v.Key()] {
				continue
			}
			seen[v.Key()] = true
			if !yield(*v) {
				return
			}
		}
	}
}

// Packages yields each distinct (name, version) pair that could be fully
// inferred, carrying the first link it was seen on.
func (p *Page) Packages() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		seen := make(map[string]bool)
		for link := range p.Links() {
			name, v := Infer(link)
			if name == "" || v == nil {
				continue
			}
			key := name + "@" + v.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			if !yield(Candidate{Name: name, Version: *v, Link: link}) {
				return
			}
		}
	}
}

// LinksForPackage yields the links whose inferred name and version both
// match.
func (p *Page) LinksForPackage(name string, v version.Version) iter.Seq[Link] {
	name = CanonicalizeName(name)
	return func(yield func(Link) bool) {
		for link := range p.Links() {
			n, lv := Infer(link)
			if n != name || lv == nil || !lv.Equal(v) {
				continue
			}
			if !yield(link) {
				return
			}
		}
	}
}

// LinksForVersion yields the links whose inferred version matches v.
func (p *Page) LinksForVersion(v version.Version) iter.Seq[Link] {
	return func(yield func(Link) bool) {
		for link := range p.Links() {
			if lv := InferVersion(link); lv != nil && lv.Equal(v) {
				if !yield(link) {
					return
				}
			}
		}
	}
}

// CleanLink percent-encodes characters outside the safe set. Existing
// escapes are kept since '%' is itself safe.
func CleanLink(raw string) string {
	return unsafeChars.ReplaceAllStringFunc(raw, func(s string) string {
		var b strings.Builder
		for i := 0; i < len(s); i++ {
			fmt.Fprintf(&b, "%%%02X", s[i])
		}
		return b.String()
	})
}

// walkAnchors calls fn for every <a> element in document order until fn
// returns false.
func walkAnchors(n *html.Node, fn func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if n.Type == html.ElementNode && n.Data == "a" {
		if !fn(n) {
			return false
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walkAnchors(c, fn) {
			return false
		}
	}
	return true
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
