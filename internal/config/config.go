// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads the optional weapifinder.yaml project config:
// default values for flags the find command would otherwise require
// on every invocation (queries file, extension cache directory,
// metrics address). CLI flags always take precedence over the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no --config flag is
// given.
const DefaultPath = "weapifinder.yaml"

// Config holds project-level defaults, analogous to the teacher's
// .cie/project.yaml.
type Config struct {
	// QueriesFile is the default --queries path.
	QueriesFile string `yaml:"queries_file"`

	// CacheDir is the default local extension cache directory that
	// bare AMO ids/GUIDs are resolved against.
	CacheDir string `yaml:"cache_dir"`

	// MetadataFile is the default AMO_METADATA_JSON path, used when
	// the environment variable of the same name is unset.
	MetadataFile string `yaml:"metadata_file"`

	// NumThreads overrides WE_API_FINDER_NUM_THREADS when the
	// environment variable is unset.
	NumThreads int `yaml:"num_threads"`

	// MetricsAddr is the default --metrics-addr.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads and parses the project config at path. A missing file is
// not an error: Load returns a zero-value Config so every field falls
// back to its flag default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}
