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

// Package testing provides fixture helpers for weapifinder integration
// tests: building temporary unpacked-extension directories and AMO
// metadata JSON files on disk, so internal/manifest, internal/metadata,
// and cmd/weapifinder tests never need a real extension corpus.
//
// # Quick Start
//
// Use SetupTestExtension to build a manifest.json plus script files
// under a t.TempDir() root:
//
//	func TestMyFeature(t *testing.T) {
//	    root := testing.SetupTestExtension(t, testing.ManifestFields{
//	        Name:              "Example",
//	        ManifestVersion:   3,
//	        Permissions:       []string{"tabs"},
//	        BackgroundScripts: []string{"background.js"},
//	    }, map[string]string{
//	        "background.js": `chrome.tabs.create({url: "https://example.com"})`,
//	    })
//
//	    m, err := manifest.Load(root)
//	    require.NoError(t, err)
//	}
//
// # Manifest-Only Fixtures
//
// WriteManifestJSON writes just manifest.json, for tests of
// internal/manifest.Load and internal/manifest.Classify that don't
// need accompanying script files.
//
// # Metadata Fixtures
//
// WriteMetadataJSON builds an AMO metadata JSON file (extension id ->
// recorded user count) for exercising internal/metadata.Load and the
// user-count filter without a real AMO export:
//
//	path := testing.WriteMetadataJSON(t, []testing.MetadataEntry{
//	    {ID: "{abc-123}", Users: 50000},
//	})
package testing
