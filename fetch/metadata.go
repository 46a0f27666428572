package fetch

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"strings"

	"github.com/ulikunitz/xz"
)

// ErrNoMetadata is returned when an archive holds no metadata file.
var ErrNoMetadata = errors.New("no metadata in archive")

// ErrUnsupportedArchive is returned for formats ReadMetadata cannot open.
var ErrUnsupportedArchive = errors.New("unsupported archive format")

const maxMetadataSize = 4 << 20

// Metadata is the core metadata of a distribution.
type Metadata struct {
	Name           string
	Version        string
	Summary        string
	License        string
	RequiresPython string
	RequiresDist   []string
}

// ReadMetadata extracts core metadata from an artifact held in memory.
// Wheels carry it in {name}.dist-info/METADATA, source archives in a
// top-level PKG-INFO.
func ReadMetadata(filename string, data []byte) (*Metadata, error) {
	lower := strings.ToLower(filename)
	var (
		raw []byte
		err error
	)
	switch {
	case strings.HasSuffix(lower, ".whl"):
		raw, err = fromZip(data, isWheelMetadata)
	case strings.HasSuffix(lower, ".zip"):
		raw, err = fromZip(data, isPkgInfo)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		raw, err = fromCompressedTar(data, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz"):
		raw, err = fromCompressedTar(data, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	case strings.HasSuffix(lower, ".tar.xz"):
		raw, err = fromCompressedTar(data, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case strings.HasSuffix(lower, ".tar"):
		raw, err = fromTar(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchive, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return ParseMetadata(raw)
}

// ParseMetadata parses an RFC 822 style METADATA or PKG-INFO document.
func ParseMetadata(raw []byte) (*Metadata, error) {
	// the header block ends at the first blank line; the long description
	// may follow and is ignored
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	h, err := r.ReadMIMEHeader()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}

	m := &Metadata{
		Name:           h.Get("Name"),
		Version:        h.Get("Version"),
		Summary:        h.Get("Summary"),
		License:        h.Get("License"),
		RequiresPython: h.Get("Requires-Python"),
		RequiresDist:   h.Values("Requires-Dist"),
	}
	if m.License == "" {
		m.License = h.Get("License-Expression")
	}
	return m, nil
}

func isWheelMetadata(name string) bool {
	dir, file := path.Split(name)
	return file == "METADATA" && strings.Count(dir, "/") == 1 && strings.HasSuffix(dir, ".dist-info/")
}

func isPkgInfo(name string) bool {
	dir, file := path.Split(name)
	return file == "PKG-INFO" && strings.Count(dir, "/") <= 1
}

func fromZip(data []byte, match func(string) bool) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxMetadataSize))
	}
	return nil, ErrNoMetadata
}

func fromCompressedTar(data []byte, decompress func(io.Reader) (io.Reader, error)) ([]byte, error) {
	r, err := decompress(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	return fromTar(r)
}

func fromTar(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoMetadata
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg || !isPkgInfo(strings.TrimPrefix(hdr.Name, "./")) {
			continue
		}
		return io.ReadAll(io.LimitReader(tr, maxMetadataSize))
	}
}
