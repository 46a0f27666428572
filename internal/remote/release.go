package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/git-pkgs/pkgindex/fetch"
	"github.com/git-pkgs/pkgindex/internal/core"
	"github.com/git-pkgs/pkgindex/internal/links"
	"github.com/git-pkgs/pkgindex/internal/version"
)

// releaseInfo is the cached outcome of inspecting a release's artifacts.
type releaseInfo struct {
	Name           string          `json:"name"`
	Version        string          `json:"version"`
	Summary        string          `json:"summary"`
	RequiresDist   []string        `json:"requires_dist"`
	RequiresPython string          `json:"requires_python"`
	License        string          `json:"license"`
	Files          []core.FileHash `json:"files"`
}

// Package returns the release details of name at version. Packages added
// to the repository are returned as they are. Otherwise every artifact of
// the release is inspected for hashes and metadata, which is slow; the
// result is cached without expiry.
func (r *Repository) Package(ctx context.Context, name, v string, extras []string) (*core.Package, error) {
	if p, ok := r.Lookup(name, v); ok {
		return p, nil
	}

	parsed, err := version.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", name, err)
	}

	info, err := r.releaseInfo(ctx, links.CanonicalizeName(name), parsed)
	if err != nil {
		return nil, err
	}

	p := r.newPackage(name, parsed)
	p.Extras = slices.Clone(extras)
	p.Description = info.Summary
	p.RequiresPython = info.RequiresPython
	p.License = info.License
	p.Files = info.Files
	for _, req := range info.RequiresDist {
		dep, err := core.ParseRequirement(req)
		if err != nil {
			r.logger.Debug("skipping requirement", "package", name, "requirement", req, "error", err)
			continue
		}
		p.Requires = append(p.Requires, dep)
	}
	return p, nil
}

func (r *Repository) releaseInfo(ctx context.Context, name string, v version.Version) (*releaseInfo, error) {
	key := name + "@" + v.Key()
	if data, ok, err := r.releases.Get(ctx, key); err == nil && ok {
		var info releaseInfo
		if err := json.Unmarshal(data, &info); err == nil {
			return &info, nil
		}
		_ = r.releases.Delete(ctx, key)
	}

	res, err := r.shared(ctx, "release:"+key, func(ctx context.Context) (any, error) {
		info, err := r.inspectRelease(ctx, name, v)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(info); err == nil {
			if err := r.releases.Put(ctx, key, data, 0); err != nil {
				r.logger.Warn("writing release cache", "source", r.name, "key", key, "error", err)
			}
		}
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*releaseInfo), nil
}

func (r *Repository) inspectRelease(ctx context.Context, name string, v version.Version) (*releaseInfo, error) {
	page, err := r.Page(ctx, name)
	if err != nil {
		return nil, err
	}

	artifacts := slices.Collect(page.LinksForVersion(v))
	if len(artifacts) == 0 {
		return nil, &core.PackageNotFoundError{Source: r.name, Name: name, Version: v.String()}
	}

	release, err := fetch.Resolve(ctx, r.fetcher, artifacts)
	if err != nil {
		return nil, fmt.Errorf("resolving %s %s: %w", name, v, err)
	}

	info := &releaseInfo{Name: name, Version: v.String()}
	for _, f := range release.Files {
		info.Files = append(info.Files, core.FileHash{File: f.Filename, Hash: f.Hash})
	}
	if md := release.Metadata; md != nil {
		info.Summary = md.Summary
		info.RequiresDist = md.RequiresDist
		info.RequiresPython = md.RequiresPython
		info.License = md.License
	}
	if info.RequiresPython == "" {
		for _, l := range artifacts {
			if l.RequiresPython != "" {
				info.RequiresPython = l.RequiresPython
				break
			}
		}
	}
	return info, nil
}
