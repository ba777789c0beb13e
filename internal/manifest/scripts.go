// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package manifest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// skipDirs are directory names ScriptFiles never descends into when
// sweeping for additional .js files beyond what the manifest declares.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
}

// ScriptFiles returns every script file an extension bundles: the
// manifest's declared background and content scripts, plus any other
// .js file under root discovered by a directory walk (some extensions
// load scripts the manifest never names, e.g. via eval or dynamic
// import). Paths are joined onto root, so they are absolute only when
// root is.
func ScriptFiles(root string, m *Manifest) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	add := func(rel string) {
		if rel == "" {
			return
		}
		full := filepath.Join(root, rel)
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}
		files = append(files, full)
	}

	for _, s := range m.Background.Scripts {
		add(s)
	}
	if m.Background.ServiceWorker != "" {
		add(m.Background.ServiceWorker)
	}
	for _, cs := range m.ContentScripts {
		for _, s := range cs.JS {
			add(s)
		}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".js") {
			if _, ok := seen[path]; !ok {
				seen[path] = struct{}{}
				files = append(files, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}
