// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package driver

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	kraktesting "github.com/kraklabs/weapifinder/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRoot_Directory(t *testing.T) {
	root := kraktesting.SetupTestExtension(t, kraktesting.ManifestFields{ManifestVersion: 3}, map[string]string{
		"background.js": `chrome.tabs.create({})`,
	})

	resolved, err := ResolveRoot(root, "", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, root, resolved)
}

func TestResolveRoot_UnpackedArchive(t *testing.T) {
	archivePath := writeTestZip(t, map[string]string{
		"manifest.json":  `{"manifest_version":3}`,
		"background.js":  `chrome.tabs.create({})`,
	})

	resolved, err := ResolveRoot(archivePath, "", t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(resolved, "manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "manifest_version")
}

func TestResolveRoot_IdentifierResolvedAgainstCache(t *testing.T) {
	cacheDir := t.TempDir()
	extDir := filepath.Join(cacheDir, "123456")
	require.NoError(t, os.MkdirAll(extDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(extDir, "manifest.json"), []byte(`{}`), 0o644))

	resolved, err := ResolveRoot("123456", ExtensionCacheDir(cacheDir), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, extDir, resolved)
}

func TestResolveRoot_IdentifierNotInCache(t *testing.T) {
	_, err := ResolveRoot("999999", ExtensionCacheDir(t.TempDir()), t.TempDir())
	assert.Error(t, err)
}

func TestStripCRXHeader_CRX3(t *testing.T) {
	zipPayload := zipBytes(t, map[string]string{"manifest.json": `{}`})

	header := make([]byte, 12)
	copy(header[0:4], "Cr24")
	header[4] = 3 // version = 3 little-endian
	// headerLen at offset 8..12, zero-length protobuf header for this test
	data := append(header, zipPayload...)

	stripped, err := stripCRXHeader(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(stripped, []byte("PK")))
}

func writeTestZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ext.xpi")
	require.NoError(t, os.WriteFile(path, zipBytes(t, files), 0o644))
	return path
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, contents := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
