package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/git-pkgs/pkgindex/internal/links"
)

func TestResolve(t *testing.T) {
	wheel := buildWheel(t, map[string]string{"foo-1.2.3.dist-info/METADATA": fooMetadata})
	wheelSum := sha256.Sum256(wheel)

	var mu sync.Mutex
	requested := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/files/foo-1.2.3-py3-none-any.whl":
			_, _ = w.Write(wheel)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	page := server.URL + "/simple/foo/"
	artifacts := []links.Link{
		links.NewLink(server.URL+"/files/foo-1.2.3.tar.gz#sha256=abc123", page, ""),
		links.NewLink(server.URL+"/files/foo-1.2.3-py3-none-any.whl", page, ""),
		links.NewLink(server.URL+"/files/foo-1.2.3.zip", page, ""),
	}

	release, err := Resolve(context.Background(), newTestFetcher(t, nil), artifacts)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if release.Metadata == nil || release.Metadata.Name != "foo" {
		t.Fatalf("Metadata = %+v, want name foo", release.Metadata)
	}

	// the zip 404s and is skipped
	if len(release.Files) != 2 {
		t.Fatalf("Files = %+v, want 2 entries", release.Files)
	}
	if got := release.Files[0]; got.Filename != "foo-1.2.3-py3-none-any.whl" || got.Hash != "sha256:"+hex.EncodeToString(wheelSum[:]) {
		t.Errorf("wheel file = %+v", got)
	}
	if got := release.Files[1]; got.Hash != "sha256:abc123" {
		t.Errorf("sdist hash = %q, want link fragment", got.Hash)
	}

	mu.Lock()
	defer mu.Unlock()
	if n := requested["/files/foo-1.2.3.tar.gz"]; n != 0 {
		t.Errorf("hashed sdist downloaded %d times after metadata was found", n)
	}
}

func TestResolveUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	artifacts := []links.Link{links.NewLink(server.URL+"/files/foo-1.0.tar.gz", server.URL, "")}
	_, err := Resolve(context.Background(), newTestFetcher(t, nil), artifacts)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("403 reported as not found: %v", err)
	}
}
