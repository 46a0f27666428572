package core

import (
	"slices"
	"testing"

	"github.com/git-pkgs/pkgindex/internal/version"
)

func pkg(name, v string) *Package {
	return NewPackage(name, version.MustParse(v))
}

func versionsOf(packages []*Package) []string {
	out := make([]string, 0, len(packages))
	for _, p := range packages {
		out = append(out, p.Version.String())
	}
	return out
}

func matchPackages(packages []*Package, dep Dependency) []*Package {
	c, allow := ConstraintsFromDependency(dep)
	matched, ignored := Match(packages, c, allow,
		func(p *Package) version.Version { return p.Version },
		func(p *Package) bool { return p.SourceType == SourceStandard })
	return Select(matched, ignored, c)
}

func TestConstraintsFromDependency(t *testing.T) {
	tests := []struct {
		constraint string
		allowFlag  bool
		wantAllow  bool
		wantAny    bool
	}{
		{"*", false, false, true},
		{"", true, true, true},
		{">=1.0,<2.0", false, false, false},
		{">=1.0b1", false, true, false},
		{"<2.0a1", false, true, false},
		{">=1.0rc1,<2.0", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			dep := MustDependency("foo", tt.constraint)
			dep.AllowPrereleases = tt.allowFlag
			c, allow := ConstraintsFromDependency(dep)
			if allow != tt.wantAllow {
				t.Errorf("allow = %v, want %v", allow, tt.wantAllow)
			}
			if c.IsAny() != tt.wantAny {
				t.Errorf("IsAny = %v, want %v", c.IsAny(), tt.wantAny)
			}
		})
	}

	t.Run("nil constraint", func(t *testing.T) {
		c, _ := ConstraintsFromDependency(Dependency{Name: "foo"})
		if !c.IsAny() {
			t.Errorf("nil constraint should be any, got %s", c)
		}
	})
}

func TestMatchPolicy(t *testing.T) {
	tests := []struct {
		name       string
		packages   []*Package
		constraint string
		allowPre   bool
		want       []string
	}{
		{
			name:       "stable only",
			packages:   []*Package{pkg("foo", "1.0"), pkg("foo", "1.1b1"), pkg("foo", "2.0")},
			constraint: "*",
			want:       []string{"1.0", "2.0"},
		},
		{
			name:       "all prereleases fall back under any",
			packages:   []*Package{pkg("foo", "1.0a1"), pkg("foo", "1.0b2")},
			constraint: "*",
			want:       []string{"1.0a1", "1.0b2"},
		},
		{
			name:       "no fallback under a real constraint",
			packages:   []*Package{pkg("foo", "1.0a1"), pkg("foo", "1.0b2")},
			constraint: ">=0.5",
			want:       nil,
		},
		{
			name:       "allowed prereleases",
			packages:   []*Package{pkg("foo", "1.0"), pkg("foo", "1.1b1")},
			constraint: ">=1.0",
			allowPre:   true,
			want:       []string{"1.0", "1.1b1"},
		},
		{
			name:       "range",
			packages:   []*Package{pkg("foo", "0.9"), pkg("foo", "1.2.3"), pkg("foo", "2.0")},
			constraint: ">=1.0,<2.0",
			want:       []string{"1.2.3"},
		},
		{
			name:       "next patch projection",
			packages:   []*Package{pkg("foo", "1.2.3rc1")},
			constraint: "==1.2.3",
			allowPre:   true,
			want:       []string{"1.2.3rc1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep := MustDependency("foo", tt.constraint)
			dep.AllowPrereleases = tt.allowPre
			got := versionsOf(matchPackages(tt.packages, dep))
			if !slices.Equal(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Errorf("matched %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchNonStandardPrereleases(t *testing.T) {
	p := pkg("foo", "1.0b1")
	p.SourceType = SourceLegacy
	got := matchPackages([]*Package{p, pkg("foo", "0.9")}, MustDependency("foo", "*"))
	if want := []string{"1.0b1", "0.9"}; !slices.Equal(versionsOf(got), want) {
		t.Errorf("matched %v, want %v", versionsOf(got), want)
	}
}

func TestSelect(t *testing.T) {
	matched := []int{1}
	ignored := []int{2, 3}

	if got := Select(matched, ignored, version.Any()); !slices.Equal(got, matched) {
		t.Errorf("Select with matches = %v", got)
	}
	if got := Select(nil, ignored, version.Any()); !slices.Equal(got, ignored) {
		t.Errorf("Select fallback = %v", got)
	}
	if got := Select(nil, ignored, version.MustParseConstraint(">=1")); len(got) != 0 {
		t.Errorf("Select under constraint = %v, want empty", got)
	}
}
