package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/ulikunitz/xz"
)

const fooMetadata = `Metadata-Version: 2.1
Name: foo
Version: 1.2.3
Summary: The foo package
License-Expression: MIT
Requires-Python: >=3.8
Requires-Dist: bar>=1.0
Requires-Dist: baz; extra == "test"

Long description that is not a header.
Key: value
`

func buildWheel(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeTar(t *testing.T, w io.Writer, files map[string]string) {
	t.Helper()
	tw := tar.NewWriter(w)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
}

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	writeTar(t, gw, files)
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildTarXz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	writeTar(t, xw, files)
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writeTar(t, &buf, files)
	return buf.Bytes()
}

func TestParseMetadata(t *testing.T) {
	md, err := ParseMetadata([]byte(fooMetadata))
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}
	if md.Name != "foo" || md.Version != "1.2.3" {
		t.Errorf("name/version = %q/%q", md.Name, md.Version)
	}
	if md.Summary != "The foo package" {
		t.Errorf("Summary = %q", md.Summary)
	}
	if md.License != "MIT" {
		t.Errorf("License = %q, want MIT from License-Expression", md.License)
	}
	if md.RequiresPython != ">=3.8" {
		t.Errorf("RequiresPython = %q", md.RequiresPython)
	}
	want := []string{"bar>=1.0", `baz; extra == "test"`}
	if !slices.Equal(md.RequiresDist, want) {
		t.Errorf("RequiresDist = %v, want %v", md.RequiresDist, want)
	}
}

func TestReadMetadata(t *testing.T) {
	sdist := map[string]string{
		"foo-1.2.3/PKG-INFO":                fooMetadata,
		"foo-1.2.3/setup.py":                "",
		"foo-1.2.3/tests/vendored/PKG-INFO": "Name: vendored\n",
	}

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"wheel", "foo-1.2.3-py3-none-any.whl", buildWheel(t, map[string]string{
			"foo/__init__.py":              "",
			"foo-1.2.3.dist-info/METADATA": fooMetadata,
		})},
		{"zip sdist", "foo-1.2.3.zip", buildWheel(t, sdist)},
		{"tar.gz", "foo-1.2.3.tar.gz", buildTarGz(t, sdist)},
		{"tgz", "foo-1.2.3.tgz", buildTarGz(t, sdist)},
		{"tar.xz", "foo-1.2.3.tar.xz", buildTarXz(t, sdist)},
		{"tar", "foo-1.2.3.tar", buildTar(t, sdist)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := ReadMetadata(tt.filename, tt.data)
			if err != nil {
				t.Fatalf("ReadMetadata failed: %v", err)
			}
			if md.Name != "foo" || md.Version != "1.2.3" {
				t.Errorf("name/version = %q/%q, want foo/1.2.3", md.Name, md.Version)
			}
		})
	}
}

func TestReadMetadataErrors(t *testing.T) {
	t.Run("unsupported", func(t *testing.T) {
		_, err := ReadMetadata("foo-1.0.exe", []byte("MZ"))
		if !errors.Is(err, ErrUnsupportedArchive) {
			t.Errorf("err = %v, want ErrUnsupportedArchive", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		data := buildTarGz(t, map[string]string{"foo-1.0/setup.py": ""})
		_, err := ReadMetadata("foo-1.0.tar.gz", data)
		if !errors.Is(err, ErrNoMetadata) {
			t.Errorf("err = %v, want ErrNoMetadata", err)
		}
	})

	t.Run("nested wheel metadata ignored", func(t *testing.T) {
		data := buildWheel(t, map[string]string{"vendor/bar-1.0.dist-info/METADATA": fooMetadata})
		_, err := ReadMetadata("foo-1.0-py3-none-any.whl", data)
		if !errors.Is(err, ErrNoMetadata) {
			t.Errorf("err = %v, want ErrNoMetadata", err)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		if _, err := ReadMetadata("foo-1.0.tar.gz", []byte("not gzip")); err == nil {
			t.Error("expected error for corrupt archive")
		}
	})
}
