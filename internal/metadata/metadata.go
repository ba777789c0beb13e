// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package metadata loads the AMO (addons.mozilla.org) user-count
// export the --filter user-count flavor consults. Loading happens
// once at process startup; a missing or malformed file is fatal
// (internal/errors.NewMetadataError), since the filter cannot run at
// all without it.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
)

// Record is one extension's recorded AMO metadata.
type Record struct {
	Users       int    `json:"users"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// Store is an in-memory lookup of extension id -> Record, indexed from
// the JSON file at AMO_METADATA_JSON.
type Store struct {
	records map[string]Record
}

// Load decodes the AMO metadata JSON at path: a JSON object mapping
// extension id to its recorded Record.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse metadata file: %w", err)
	}

	return &Store{records: records}, nil
}

// Lookup returns the recorded metadata for id and whether it was
// found. A missing entry is not itself an error: the driver decides
// whether IGNORE_MISSING_ADDON downgrades it to a warning or excludes
// the extension from --filter user-count.
func (s *Store) Lookup(id string) (Record, bool) {
	r, ok := s.records[id]
	return r, ok
}

// MeetsMinUsers reports whether id's recorded user count exceeds min.
// A missing id never meets the threshold.
func (s *Store) MeetsMinUsers(id string, min int) bool {
	r, ok := s.Lookup(id)
	if !ok {
		return false
	}
	return r.Users > min
}

// Len returns the number of extensions recorded in the store.
func (s *Store) Len() int {
	return len(s.records)
}
