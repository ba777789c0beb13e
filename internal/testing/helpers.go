// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package testing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// ManifestFields describes the subset of manifest.json fields a test
// fixture cares about. Zero-value fields are omitted from the written
// manifest.json rather than serialized as nulls or empty arrays, so
// tests can build minimal manifests.
type ManifestFields struct {
	Name              string
	ManifestVersion   int
	Permissions       []string
	HostPermissions   []string
	BackgroundScripts []string
	ContentScripts    []string
}

// SetupTestExtension builds a temporary unpacked-extension directory
// containing a manifest.json and the given script files, and returns
// the directory root. The directory is removed automatically when the
// test finishes.
//
// scripts maps a path relative to the extension root (e.g.
// "background.js", "content/inject.js") to its source text.
//
// Example:
//
//	root := testing.SetupTestExtension(t, testing.ManifestFields{
//	    Name:              "Example",
//	    ManifestVersion:   3,
//	    Permissions:       []string{"tabs", "storage"},
//	    BackgroundScripts: []string{"background.js"},
//	}, map[string]string{
//	    "background.js": `chrome.tabs.create({url: "https://example.com"})`,
//	})
func SetupTestExtension(t *testing.T, manifest ManifestFields, scripts map[string]string) string {
	t.Helper()

	root := t.TempDir()
	writeManifest(t, root, manifest)

	for relPath, contents := range scripts {
		full := filepath.Join(root, relPath)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("failed to create script directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
			t.Fatalf("failed to write script %s: %v", relPath, err)
		}
	}

	return root
}

// WriteManifestJSON writes only a manifest.json into a fresh temp
// directory, without any accompanying scripts. Useful for exercising
// internal/manifest.Load and internal/manifest.Classify in isolation.
func WriteManifestJSON(t *testing.T, manifest ManifestFields) string {
	t.Helper()

	root := t.TempDir()
	writeManifest(t, root, manifest)
	return root
}

func writeManifest(t *testing.T, root string, fields ManifestFields) {
	t.Helper()

	doc := map[string]any{}
	if fields.Name != "" {
		doc["name"] = fields.Name
	}
	if fields.ManifestVersion != 0 {
		doc["manifest_version"] = fields.ManifestVersion
	}
	if len(fields.Permissions) > 0 {
		doc["permissions"] = fields.Permissions
	}
	if len(fields.HostPermissions) > 0 {
		doc["host_permissions"] = fields.HostPermissions
	}
	if len(fields.BackgroundScripts) > 0 {
		doc["background"] = map[string]any{"scripts": fields.BackgroundScripts}
	}
	if len(fields.ContentScripts) > 0 {
		doc["content_scripts"] = []map[string]any{{"js": fields.ContentScripts}}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal test manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "manifest.json"), data, 0o644); err != nil {
		t.Fatalf("failed to write manifest.json: %v", err)
	}
}

// MetadataEntry is one extension's recorded AMO metadata, used to seed
// a WriteMetadataJSON fixture for the user-count filter.
type MetadataEntry struct {
	ID    string
	Users int
}

// WriteMetadataJSON writes an AMO metadata JSON file (id -> {users})
// to a temp directory and returns its path, for exercising
// internal/metadata.Load without a real AMO export.
//
// Example:
//
//	path := testing.WriteMetadataJSON(t, []testing.MetadataEntry{
//	    {ID: "{abc-123}", Users: 50000},
//	})
func WriteMetadataJSON(t *testing.T, entries []MetadataEntry) string {
	t.Helper()

	doc := make(map[string]map[string]any, len(entries))
	for _, e := range entries {
		doc[e.ID] = map[string]any{"users": e.Users}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal test metadata: %v", err)
	}

	path := filepath.Join(t.TempDir(), "metadata.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write metadata.json: %v", err)
	}
	return path
}
