package core

import (
	"fmt"
	"testing"

	"github.com/git-pkgs/pkgindex/internal/version"
)

func BenchmarkMatch(b *testing.B) {
	packages := make([]*Package, 0, 400)
	for major := range 20 {
		for minor := range 20 {
			v := fmt.Sprintf("%d.%d", major, minor)
			if minor%5 == 0 {
				v += "b1"
			}
			packages = append(packages, NewPackage("foo", version.MustParse(v)))
		}
	}
	dep := MustDependency("foo", ">=3.0,<15.0")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = matchPackages(packages, dep)
	}
}

func BenchmarkUniqueName(b *testing.B) {
	p := NewPackage("foo", version.MustParse("1.2.3"))
	p.Extras = []string{"tests", "docs"}
	p.SourceReference = "private"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.UniqueName()
	}
}
