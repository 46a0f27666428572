package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a package or version is not found.
var ErrNotFound = errors.New("not found")

// ErrReservedName is returned when a source is given a name kept for the
// public index.
var ErrReservedName = errors.New("reserved repository name")

// PackageNotFoundError wraps ErrNotFound with the package that was asked for.
type PackageNotFoundError struct {
	Source  string
	Name    string
	Version string
}

func (e *PackageNotFoundError) Error() string {
	prefix := ""
	if e.Source != "" {
		prefix = e.Source + ": "
	}
	if e.Version != "" {
		return fmt.Sprintf("%spackage %s version %s not found", prefix, e.Name, e.Version)
	}
	return fmt.Sprintf("%sno package named %q", prefix, e.Name)
}

func (e *PackageNotFoundError) Unwrap() error {
	return ErrNotFound
}
