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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetupTestExtension verifies the fixture writes manifest.json and
// scripts under the returned root.
func TestSetupTestExtension(t *testing.T) {
	root := SetupTestExtension(t, ManifestFields{
		Name:              "Example",
		ManifestVersion:   3,
		Permissions:       []string{"tabs", "storage"},
		BackgroundScripts: []string{"background.js"},
	}, map[string]string{
		"background.js":  `chrome.tabs.create({url: "https://example.com"})`,
		"content/inject.js": `browser.storage.local.get("key")`,
	})

	require.NotEmpty(t, root)

	data, err := os.ReadFile(filepath.Join(root, "manifest.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Example", doc["name"])
	assert.Equal(t, float64(3), doc["manifest_version"])

	bgScript, err := os.ReadFile(filepath.Join(root, "background.js"))
	require.NoError(t, err)
	assert.Contains(t, string(bgScript), "chrome.tabs.create")

	injectScript, err := os.ReadFile(filepath.Join(root, "content", "inject.js"))
	require.NoError(t, err)
	assert.Contains(t, string(injectScript), "browser.storage.local.get")
}

// TestSetupTestExtension_OmitsEmptyFields verifies zero-value manifest
// fields are left out of the written JSON rather than serialized as
// null or empty arrays.
func TestSetupTestExtension_OmitsEmptyFields(t *testing.T) {
	root := SetupTestExtension(t, ManifestFields{Name: "Minimal"}, nil)

	data, err := os.ReadFile(filepath.Join(root, "manifest.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Minimal", doc["name"])
	_, hasPermissions := doc["permissions"]
	assert.False(t, hasPermissions)
	_, hasBackground := doc["background"]
	assert.False(t, hasBackground)
}

// TestWriteManifestJSON verifies the manifest-only fixture round-trips
// host_permissions and content_scripts.
func TestWriteManifestJSON(t *testing.T) {
	root := WriteManifestJSON(t, ManifestFields{
		ManifestVersion: 2,
		HostPermissions: []string{"*://*.example.com/*"},
		ContentScripts:  []string{"content.js"},
	})

	data, err := os.ReadFile(filepath.Join(root, "manifest.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []any{"*://*.example.com/*"}, doc["host_permissions"])

	contentScripts, ok := doc["content_scripts"].([]any)
	require.True(t, ok)
	require.Len(t, contentScripts, 1)
}

// TestWriteMetadataJSON verifies the AMO metadata fixture round-trips
// user counts keyed by extension id.
func TestWriteMetadataJSON(t *testing.T) {
	path := WriteMetadataJSON(t, []MetadataEntry{
		{ID: "{abc-123}", Users: 50000},
		{ID: "{def-456}", Users: 12},
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "{abc-123}")
	assert.Equal(t, float64(50000), doc["{abc-123}"]["users"])
	assert.Equal(t, float64(12), doc["{def-456}"]["users"])
}

// TestFixtureIsolation verifies each fixture gets its own temp
// directory.
func TestFixtureIsolation(t *testing.T) {
	root1 := WriteManifestJSON(t, ManifestFields{Name: "First"})
	root2 := WriteManifestJSON(t, ManifestFields{Name: "Second"})
	assert.NotEqual(t, root1, root2)
}
