// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package manifest loads and classifies browser-extension directories:
// parsing manifest.json, telling an unpacked directory apart from a
// packed archive or a bare identifier, and walking an extension's
// background/content scripts for the filter driver to feed into the
// query engine.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest holds the subset of manifest.json fields the filter driver
// needs: permission checks for --filter permissions, and script
// discovery for every filter flavor.
type Manifest struct {
	Name            string     `json:"name"`
	ManifestVersion int        `json:"manifest_version"`
	Permissions     []string   `json:"permissions"`
	HostPermissions []string   `json:"host_permissions"`
	Background      Background `json:"background"`
	ContentScripts  []ContentScript `json:"content_scripts"`
}

// Background holds the background-script entries of a manifest,
// covering both the MV2 "scripts" array and the MV3 "service_worker"
// string.
type Background struct {
	Scripts        []string `json:"scripts"`
	ServiceWorker  string   `json:"service_worker"`
}

// ContentScript is one entry of the manifest's content_scripts array.
type ContentScript struct {
	JS []string `json:"js"`
}

// Load parses root/manifest.json into a Manifest.
func Load(root string) (*Manifest, error) {
	path := filepath.Join(root, "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest.json: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest.json: %w", err)
	}
	return &m, nil
}

// HasAnyPermission reports whether the manifest declares at least one
// of the given permissions or host_permissions entries. Used by
// --filter permissions, which never touches the query engine.
func (m *Manifest) HasAnyPermission(wanted []string) bool {
	declared := make(map[string]struct{}, len(m.Permissions)+len(m.HostPermissions))
	for _, p := range m.Permissions {
		declared[p] = struct{}{}
	}
	for _, p := range m.HostPermissions {
		declared[p] = struct{}{}
	}

	for _, w := range wanted {
		if _, ok := declared[w]; ok {
			return true
		}
	}
	return false
}
