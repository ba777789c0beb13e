// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package driver implements the filter driver's line-oriented
// plumbing: turning a stdin line into an extension root, bounding how
// many directory/file reads run at once, and re-serializing
// out-of-order async completions back into FIFO stdout order.
package driver

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/weapifinder/internal/manifest"
)

// ExtensionCacheDir is where a bare AMO numeric id or extension GUID
// is looked up: <cache>/<id>/ must already contain an unpacked
// extension, or <cache>/<id>.xpi a packed archive. ResolveRoot never
// fetches anything over the network; it only resolves what's already
// local.
type ExtensionCacheDir string

// ResolveRoot turns one driver input line into a filesystem directory
// containing manifest.json: an unpacked directory is used as-is, a
// .crx/.xpi archive is extracted into workDir, and a bare identifier is
// looked up under cacheDir as <id>/, then <id>.xpi, then <id>.crx.
func ResolveRoot(line string, cacheDir ExtensionCacheDir, workDir string) (string, error) {
	kind, err := manifest.Classify(line)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", line, err)
	}

	switch kind {
	case manifest.KindDirectory:
		return line, nil

	case manifest.KindArchive:
		return extract(line, workDir)

	case manifest.KindIdentifier:
		return resolveIdentifier(line, cacheDir, workDir)

	default:
		return "", fmt.Errorf("resolve %q: unclassifiable input", line)
	}
}

func resolveIdentifier(id string, cacheDir ExtensionCacheDir, workDir string) (string, error) {
	dirCandidate := filepath.Join(string(cacheDir), id)
	if info, err := os.Stat(dirCandidate); err == nil && info.IsDir() {
		return dirCandidate, nil
	}

	archiveCandidate := filepath.Join(string(cacheDir), id+".xpi")
	if _, err := os.Stat(archiveCandidate); err == nil {
		return extract(archiveCandidate, workDir)
	}

	archiveCandidate = filepath.Join(string(cacheDir), id+".crx")
	if _, err := os.Stat(archiveCandidate); err == nil {
		return extract(archiveCandidate, workDir)
	}

	return "", fmt.Errorf("resolve %q: not found under extension cache %s", id, cacheDir)
}

// crxMinHeaderSize is the length of the fixed CRX2 header fields that
// precede the inner zip payload: magic (4 bytes), version (4), public
// key length (4), signature length (4), followed by the key and
// signature themselves. Shorter input is never treated as a .crx header.
const crxMinHeaderSize = 16

func extract(archivePath, workDir string) (string, error) {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return "", fmt.Errorf("read archive %s: %w", archivePath, err)
	}

	payload := data
	if filepath.Ext(archivePath) == ".crx" {
		payload, err = stripCRXHeader(data)
		if err != nil {
			return "", fmt.Errorf("strip crx header %s: %w", archivePath, err)
		}
	}

	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("open zip %s: %w", archivePath, err)
	}

	destDir, err := os.MkdirTemp(workDir, "ext-")
	if err != nil {
		return "", fmt.Errorf("create extraction dir for %s: %w", archivePath, err)
	}

	if err := manifest.ExtractArchive(zr, destDir); err != nil {
		return "", fmt.Errorf("extract %s: %w", archivePath, err)
	}

	return destDir, nil
}

// stripCRXHeader removes the .crx binary header, returning the inner
// zip payload. The header layout varies between CRX2 and CRX3; both
// carry "Cr24" magic followed by a little-endian version, so the
// public-key/signature lengths are read from fixed offsets rather than
// hardcoded.
func stripCRXHeader(data []byte) ([]byte, error) {
	if len(data) < crxMinHeaderSize || string(data[:4]) != "Cr24" {
		return data, nil
	}

	version := le32(data[4:8])
	if version == 2 {
		pubKeyLen := le32(data[8:12])
		sigLen := le32(data[12:16])
		offset := crxMinHeaderSize + int(pubKeyLen) + int(sigLen)
		if offset > len(data) {
			return nil, fmt.Errorf("crx2 header declares a payload larger than the file")
		}
		return data[offset:], nil
	}

	// CRX3: header length is a single 4-byte field at offset 8.
	headerLen := le32(data[8:12])
	offset := 12 + int(headerLen)
	if offset > len(data) {
		return nil, fmt.Errorf("crx3 header declares a payload larger than the file")
	}
	return data[offset:], nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
