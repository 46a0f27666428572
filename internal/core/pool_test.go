package core

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestPoolFindPackages(t *testing.T) {
	primary := newListSource("primary", pkg("foo", "1.0"), pkg("foo", "1.1"))
	secondary := newListSource("secondary", pkg("foo", "1.2"), pkg("bar", "1.0"))
	pool := NewPool(nil, primary, secondary)

	got, err := pool.FindPackages(context.Background(), MustDependency("foo", ">=1.0"))
	if err != nil {
		t.Fatalf("FindPackages failed: %v", err)
	}
	if want := []string{"1.0", "1.1", "1.2"}; !slices.Equal(versionsOf(got), want) {
		t.Errorf("FindPackages = %v, want %v", versionsOf(got), want)
	}

	dep := MustDependency("foo", ">=1.0")
	dep.SourceName = "secondary"
	got, err = pool.FindPackages(context.Background(), dep)
	if err != nil {
		t.Fatalf("FindPackages failed: %v", err)
	}
	if want := []string{"1.2"}; !slices.Equal(versionsOf(got), want) {
		t.Errorf("FindPackages(source=secondary) = %v, want %v", versionsOf(got), want)
	}

	dep.SourceName = "missing"
	if _, err := pool.FindPackages(context.Background(), dep); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown source err = %v, want ErrNotFound", err)
	}
}

func TestPoolFindPackagesError(t *testing.T) {
	broken := newListSource("broken")
	broken.err = errors.New("boom")
	pool := NewPool(nil, newListSource("ok", pkg("foo", "1.0")), broken)

	if _, err := pool.FindPackages(context.Background(), MustDependency("foo", "*")); err == nil {
		t.Error("expected error from broken source")
	}
}

func TestPoolPackage(t *testing.T) {
	pool := NewPool(nil, newListSource("a", pkg("foo", "1.0")), newListSource("b", pkg("foo", "2.0")))

	p, err := pool.Package(context.Background(), "foo", "2.0", nil)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if p.Version.String() != "2.0" {
		t.Errorf("Package version = %s", p.Version)
	}

	_, err = pool.Package(context.Background(), "foo", "3.0", nil)
	var nf *PackageNotFoundError
	if !errors.As(err, &nf) || nf.Version != "3.0" {
		t.Errorf("err = %v, want PackageNotFoundError for 3.0", err)
	}
}

func TestPoolAddSource(t *testing.T) {
	pool := NewPool(nil)
	if err := pool.AddSource(newListSource("a")); err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	if err := pool.AddSource(newListSource("a")); err == nil {
		t.Error("AddSource accepted a duplicate name")
	}
	if len(pool.Sources()) != 1 {
		t.Errorf("Sources() = %d, want 1", len(pool.Sources()))
	}
}
