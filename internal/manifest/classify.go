// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package manifest

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind identifies how a driver input line resolves to an extension
// root.
type Kind int

const (
	// KindUnknown means Classify could not determine the input's
	// shape.
	KindUnknown Kind = iota

	// KindDirectory is an unpacked extension directory containing a
	// manifest.json.
	KindDirectory

	// KindArchive is a packed .crx or .xpi file.
	KindArchive

	// KindIdentifier is a bare AMO numeric id or an extension GUID,
	// which must be resolved against a local extension cache
	// directory before it can be read.
	KindIdentifier
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindArchive:
		return "archive"
	case KindIdentifier:
		return "identifier"
	default:
		return "unknown"
	}
}

var guidPattern = regexp.MustCompile(`^\{[0-9a-fA-F-]{8,}\}$|^[0-9a-zA-Z_-]+@[0-9a-zA-Z.-]+$`)

var numericIDPattern = regexp.MustCompile(`^[0-9]+$`)

// Classify determines whether path refers to an unpacked extension
// directory, a packed .crx/.xpi archive, or a bare identifier (AMO
// numeric id or extension GUID) that names neither.
func Classify(path string) (Kind, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if numericIDPattern.MatchString(path) || guidPattern.MatchString(path) {
				return KindIdentifier, nil
			}
			return KindUnknown, fmt.Errorf("classify %q: %w", path, err)
		}
		return KindUnknown, fmt.Errorf("classify %q: %w", path, err)
	}

	if info.IsDir() {
		return KindDirectory, nil
	}

	switch filepath.Ext(path) {
	case ".crx", ".xpi":
		return KindArchive, nil
	}
	return KindUnknown, fmt.Errorf("classify %q: not a directory, .crx/.xpi archive, or known identifier shape", path)
}

// ExtractArchive unpacks a .crx/.xpi archive into destDir, which the
// caller then uses as the new extension root. .crx files carry a binary header
// before the inner zip payload; ResolveRoot strips it before calling
// this, so ExtractArchive always sees a plain zip reader.
func ExtractArchive(r *zip.Reader, destDir string) error {
	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !isWithinDir(destDir, target) {
			return fmt.Errorf("extract %s: escapes destination directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("extract %s: %w", f.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}

		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s in archive: %w", f.Name, err)
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			src.Close()
			return fmt.Errorf("create %s: %w", target, err)
		}

		_, copyErr := io.Copy(dst, src)
		src.Close()
		dst.Close()
		if copyErr != nil {
			return fmt.Errorf("write %s: %w", target, copyErr)
		}
	}
	return nil
}

// isWithinDir reports whether target lies inside dir, guarding
// ExtractArchive against a zip entry name containing ".." path
// components that would otherwise write outside destDir.
func isWithinDir(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
