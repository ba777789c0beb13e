// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package manifest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Directory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "manifest.json"), []byte(`{}`), 0o644))

	kind, err := Classify(root)
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, kind)
}

func TestClassify_Archive(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "extension.xpi")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0o644))

	kind, err := Classify(path)
	require.NoError(t, err)
	assert.Equal(t, KindArchive, kind)
}

func TestClassify_NumericIdentifier(t *testing.T) {
	kind, err := Classify("123456")
	require.NoError(t, err)
	assert.Equal(t, KindIdentifier, kind)
}

func TestClassify_GUIDIdentifier(t *testing.T) {
	kind, err := Classify("{d10d0bf8-f5b5-c8b4-a8b2-2b9879e08c5d}")
	require.NoError(t, err)
	assert.Equal(t, KindIdentifier, kind)

	kind, err = Classify("uBlock0@raymondhill.net")
	require.NoError(t, err)
	assert.Equal(t, KindIdentifier, kind)
}

func TestClassify_Unknown(t *testing.T) {
	_, err := Classify("not-a-real-path-or-id!!")
	assert.Error(t, err)
}

func TestExtractArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("manifest.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"name":"test"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	destDir := t.TempDir()
	require.NoError(t, ExtractArchive(zr, destDir))

	data, err := os.ReadFile(filepath.Join(destDir, "manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"test"}`, string(data))
}

func TestExtractArchive_RejectsZipSlip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../../evil.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("escaped"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	destDir := t.TempDir()
	err = ExtractArchive(zr, destDir)
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(destDir, "..", "..", "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "directory", KindDirectory.String())
	assert.Equal(t, "archive", KindArchive.String())
	assert.Equal(t, "identifier", KindIdentifier.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
