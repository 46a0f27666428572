package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/git-pkgs/pkgindex/internal/links"
)

// File is one artifact of a release.
type File struct {
	Filename string
	URL      string
	Hash     string // "sha256:<hex>" or the link's own hash name
}

// Release is what could be learned about one version from its artifacts.
type Release struct {
	Files    []File
	Metadata *Metadata
}

// Download reads an artifact fully and returns it with its sha256.
func Download(ctx context.Context, f FetcherInterface, url string) ([]byte, string, error) {
	artifact, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = artifact.Body.Close() }()

	h := sha256.New()
	data, err := io.ReadAll(io.TeeReader(artifact.Body, h))
	if err != nil {
		return nil, "", fmt.Errorf("reading artifact: %w", err)
	}
	return data, hex.EncodeToString(h.Sum(nil)), nil
}

// Resolve collects file hashes and metadata for the artifacts of one
// release. Links carrying a hash fragment are only downloaded while no
// metadata has been found yet; wheels are inspected before source
// archives. Missing artifacts are skipped unless their hash is known.
func Resolve(ctx context.Context, f FetcherInterface, artifacts []links.Link) (*Release, error) {
	release := &Release{}

	ordered := make([]links.Link, 0, len(artifacts))
	for _, l := range artifacts {
		if l.IsWheel() {
			ordered = append(ordered, l)
		}
	}
	for _, l := range artifacts {
		if !l.IsWheel() {
			ordered = append(ordered, l)
		}
	}

	for _, l := range ordered {
		file := File{Filename: l.Filename, URL: l.ShowURL()}
		if l.Hash != "" {
			file.Hash = l.HashName + ":" + l.Hash
		}

		needsMetadata := release.Metadata == nil && (l.IsWheel() || l.IsSdist())
		if file.Hash == "" || needsMetadata {
			data, sum, err := Download(ctx, f, l.ShowURL())
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					if file.Hash != "" {
						release.Files = append(release.Files, file)
					}
					continue
				}
				return nil, fmt.Errorf("downloading %s: %w", l.Filename, err)
			}
			if file.Hash == "" {
				file.Hash = "sha256:" + sum
			}
			if needsMetadata {
				if md, err := ReadMetadata(l.Filename, data); err == nil {
					release.Metadata = md
				}
			}
		}

		release.Files = append(release.Files, file)
	}
	return release, nil
}
