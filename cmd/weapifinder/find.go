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

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	flag "github.com/spf13/pflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/weapifinder/internal/config"
	"github.com/kraklabs/weapifinder/internal/driver"
	"github.com/kraklabs/weapifinder/internal/errors"
	"github.com/kraklabs/weapifinder/internal/manifest"
	"github.com/kraklabs/weapifinder/internal/metadata"
	"github.com/kraklabs/weapifinder/internal/output"
	"github.com/kraklabs/weapifinder/internal/ui"
	"github.com/kraklabs/weapifinder/pkg/query"
)

// matchJSON is one line of --json output: an extension path that
// matched at least one query.
type matchJSON struct {
	Path string `json:"path"`
}

// filterKind selects which extra condition, beyond "the extension
// bundles a script matching one of the queries", an extension must
// meet to be reported as a match.
type filterKind string

const (
	filterNone        filterKind = ""
	filterPermissions filterKind = "permissions"
	filterManifest    filterKind = "manifest"
	filterUserCount   filterKind = "user-count"
)

// runFind executes the 'find' CLI command: reads a queries file, reads
// extension roots one per stdin line, and reports on stdout the path
// of every extension whose bundled scripts match at least one query.
//
// Flags:
//   - --queries: path to a file of dotted API names, one per line (required)
//   - --filter: permissions, manifest, or user-count (default: none)
//   - --min-users: minimum recorded AMO user count for --filter user-count
//   - --no-parallel: use the synchronous engine instead of the worker pool
//   - --metrics-addr: HTTP listen address for Prometheus metrics
//   - --cache-dir: local extension cache dir bare ids/GUIDs resolve against
//   - --json, -q, --no-color: shared output flags
func runFind(args []string) {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	queriesPath := fs.String("queries", "", "Path to a file of dotted API names, one per line (required)")
	filterName := fs.String("filter", "", "Additional filter: permissions, manifest, or user-count")
	minUsers := fs.Int("min-users", 0, "Minimum recorded AMO user count for --filter user-count")
	noParallel := fs.Bool("no-parallel", false, "Use the synchronous matcher instead of the worker pool")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	cacheDir := fs.String("cache-dir", "", "Local extension cache directory bare ids/GUIDs resolve against")
	configPath := fs.String("config", "", "Path to weapifinder.yaml (default: ./weapifinder.yaml)")
	jsonOutput := fs.Bool("json", false, "Output one JSON object per matched extension")
	quiet := fs.BoolP("quiet", "q", false, "Suppress progress output")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: weapifinder find --queries <file> [options] < extensions.txt

Scans a corpus of browser extensions for usages of a set of WebExtension
API calls. Each stdin line is an unpacked extension directory path, a
.crx/.xpi archive path, a bare AMO numeric id, or an extension GUID.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	globals := GlobalFlags{JSON: *jsonOutput, Quiet: *quiet, NoColor: *noColor}
	ui.InitColors(globals.NoColor)

	cfg, err := config.Load(*configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load weapifinder.yaml", err.Error(), "Fix or remove the config file", err), globals.JSON)
	}

	filter := filterKind(*filterName)
	switch filter {
	case filterNone, filterPermissions, filterManifest, filterUserCount:
	default:
		errors.FatalError(errors.NewInputError(
			"Unknown filter name",
			fmt.Sprintf("filter %q is not one of permissions/manifest/user-count", *filterName),
			"Pass --filter permissions, --filter manifest, or --filter user-count"), globals.JSON)
	}

	resolvedQueriesPath := *queriesPath
	if resolvedQueriesPath == "" {
		resolvedQueriesPath = cfg.QueriesFile
	}
	if resolvedQueriesPath == "" {
		errors.FatalError(errors.NewInputError(
			"Missing required --queries flag", "", "Pass --queries <path to a file of dotted API names>, or set queries_file in weapifinder.yaml"), globals.JSON)
	}

	if cfg.NumThreads > 0 {
		if _, set := os.LookupEnv("WE_API_FINDER_NUM_THREADS"); !set {
			os.Setenv("WE_API_FINDER_NUM_THREADS", fmt.Sprintf("%d", cfg.NumThreads))
		}
	}

	logger := slog.Default()
	compiler, asyncCompiler := buildCompiler(resolvedQueriesPath, *noParallel, logger, globals)
	if asyncCompiler != nil {
		defer asyncCompiler.Destroy()
	}

	var metaStore *metadata.Store
	if filter == filterUserCount {
		metaStore = loadMetadataOrFatal(cfg, globals)
	}

	resolvedMetricsAddr := *metricsAddr
	if resolvedMetricsAddr == "" {
		resolvedMetricsAddr = cfg.MetricsAddr
	}
	if resolvedMetricsAddr != "" {
		startMetricsServer(resolvedMetricsAddr, logger)
	}

	resolveDir := resolveCacheDir(*cacheDir, cfg)
	workDir, err := os.MkdirTemp("", "weapifinder-")
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot create temporary extraction directory", err.Error(), "", err), globals.JSON)
	}
	defer os.RemoveAll(workDir)

	sem := driver.NewSemaphore(driver.DefaultIOCeiling)

	progressCfg := NewProgressConfig(globals)
	bar := NewProgressBar(progressCfg, -1, "scanning extensions")

	var matchedCount, totalCount int
	var mu sync.Mutex

	emit := func(r driver.Result) {
		mu.Lock()
		totalCount++
		if bar != nil {
			bar.Add(1)
		}
		if r.Warning != "" {
			if globals.JSON {
				output.JSONErrorTo(os.Stderr, fmt.Errorf("%s", r.Warning))
			} else {
				ui.Warning(r.Warning)
			}
		} else if r.Matched {
			matchedCount++
			if globals.JSON {
				output.JSONCompact(matchJSON{Path: r.Path})
			} else {
				fmt.Println(r.Path)
			}
		}
		mu.Unlock()
	}
	seq := driver.NewSequencer(emit)

	var wg sync.WaitGroup
	scanner := bufio.NewScanner(os.Stdin)
	lineNo := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		seqNo := lineNo
		lineNo++

		wg.Add(1)
		go func(line string, seqNo int) {
			defer wg.Done()
			seq.Complete(processLine(context.Background(), line, seqNo, sem, resolveDir, workDir,
				filter, *minUsers, metaStore, compiler, asyncCompiler, *noParallel))
		}(line, seqNo)
	}
	wg.Wait()

	if err := scanner.Err(); err != nil {
		errors.FatalError(errors.NewInternalError("Error reading stdin", err.Error(), "", err), globals.JSON)
	}

	if bar != nil {
		bar.Finish()
	}
	if !globals.JSON {
		ui.Summary(fmt.Sprintf("%d of %d extensions matched", matchedCount, totalCount))
	}
}

// buildCompiler reads the queries file and registers every line with a
// fresh Compiler or AsyncCompiler. noParallel selects the synchronous
// engine (for debugging); otherwise the worker-pool-backed async
// engine is built. Exactly one of the two return values is non-nil.
func buildCompiler(path string, noParallel bool, logger *slog.Logger, globals GlobalFlags) (*query.Compiler, *query.AsyncCompiler) {
	data, err := os.ReadFile(path)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load queries file", err.Error(), "Check the --queries path", err), globals.JSON)
	}

	queries := make([]string, 0)
	for _, line := range strings.Split(string(data), "\n") {
		q := strings.TrimSpace(line)
		if q == "" || strings.HasPrefix(q, "#") {
			continue
		}
		queries = append(queries, q)
	}

	if noParallel {
		compiler := query.NewCompiler(logger)
		for _, q := range queries {
			compiler.AddQuery(q)
		}
		return compiler, nil
	}

	asyncCompiler := query.NewAsyncCompiler(logger)
	for _, q := range queries {
		if err := asyncCompiler.AddQuery(q); err != nil {
			errors.FatalError(errors.NewInternalError("Engine misuse while loading queries", err.Error(), "", err), globals.JSON)
		}
	}
	return nil, asyncCompiler
}

func loadMetadataOrFatal(cfg *config.Config, globals GlobalFlags) *metadata.Store {
	path := os.Getenv("AMO_METADATA_JSON")
	if path == "" {
		path = cfg.MetadataFile
	}
	if path == "" {
		errors.FatalError(errors.NewMetadataError(
			"Cannot load AMO metadata",
			"AMO_METADATA_JSON is unset and weapifinder.yaml has no metadata_file",
			"Run: weapifinder fetch-metadata --out metadata.json, then set AMO_METADATA_JSON",
			nil), globals.JSON)
	}

	store, err := metadata.Load(path)
	if err != nil {
		errors.FatalError(errors.NewMetadataError(
			"Cannot load AMO metadata",
			err.Error(),
			fmt.Sprintf("Run: weapifinder fetch-metadata --out %s", path),
			err), globals.JSON)
	}
	return store
}

func resolveCacheDir(flagValue string, cfg *config.Config) driver.ExtensionCacheDir {
	if flagValue != "" {
		return driver.ExtensionCacheDir(flagValue)
	}
	return driver.ExtensionCacheDir(cfg.CacheDir)
}

func startMetricsServer(addr string, logger *slog.Logger) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()
}

// extensionID returns the AMO lookup key for a driver input line: the
// line itself when it was already a bare numeric id or GUID, otherwise
// the resolved root directory's basename (the case for unpacked
// directories and extracted archives, whose path carries no reliable
// AMO id).
func extensionID(line, root string) string {
	if kind, err := manifest.Classify(line); err == nil && kind == manifest.KindIdentifier {
		return line
	}
	return filepath.Base(root)
}

// processLine resolves, reads, and matches a single driver input line,
// returning a driver.Result ready for the Sequencer. It never panics
// the whole run on a bad line: I/O and classification errors become a
// warning result instead.
func processLine(
	ctx context.Context,
	line string,
	seqNo int,
	sem *driver.Semaphore,
	cacheDir driver.ExtensionCacheDir,
	workDir string,
	filter filterKind,
	minUsers int,
	metaStore *metadata.Store,
	compiler *query.Compiler,
	asyncCompiler *query.AsyncCompiler,
	noParallel bool,
) driver.Result {
	if err := sem.Acquire(ctx); err != nil {
		return driver.Result{Seq: seqNo, Warning: fmt.Sprintf("%s: %v", line, err)}
	}
	released := false
	release := func() {
		if !released {
			released = true
			sem.Release()
		}
	}
	defer release()

	root, err := driver.ResolveRoot(line, cacheDir, workDir)
	if err != nil {
		return driver.Result{Seq: seqNo, Warning: fmt.Sprintf("%s: %v", line, err)}
	}

	m, err := manifest.Load(root)
	if err != nil {
		return driver.Result{Seq: seqNo, Warning: fmt.Sprintf("%s: %v", line, err)}
	}

	if filter == filterManifest && m.Name == "" {
		return driver.Result{Seq: seqNo, Matched: false, Path: root}
	}
	if filter == filterPermissions && !m.HasAnyPermission(append(m.Permissions, m.HostPermissions...)) {
		return driver.Result{Seq: seqNo, Matched: false, Path: root}
	}
	if filter == filterUserCount {
		extID := extensionID(line, root)
		if !metaStore.MeetsMinUsers(extID, minUsers) {
			if truthy(os.Getenv("IGNORE_MISSING_ADDON")) {
				if _, ok := metaStore.Lookup(extID); !ok {
					return driver.Result{Seq: seqNo, Warning: fmt.Sprintf("%s: no recorded AMO metadata, ignoring", extID)}
				}
			}
			return driver.Result{Seq: seqNo, Matched: false, Path: root}
		}
	}

	scripts, err := manifest.ScriptFiles(root, m)
	if err != nil {
		return driver.Result{Seq: seqNo, Warning: fmt.Sprintf("%s: %v", line, err)}
	}

	// matchScripts acquires its own slot for every script read; this
	// line's slot is released first so lines holding slots never wait on
	// each other for the remaining ones.
	release()
	matched, err := matchScripts(ctx, scripts, sem, compiler, asyncCompiler, noParallel)
	if err != nil {
		return driver.Result{Seq: seqNo, Warning: fmt.Sprintf("%s: %v", line, err)}
	}

	return driver.Result{Seq: seqNo, Matched: matched, Path: root}
}

func matchScripts(ctx context.Context, scripts []string, sem *driver.Semaphore, compiler *query.Compiler, asyncCompiler *query.AsyncCompiler, noParallel bool) (bool, error) {
	readScript := func(path string) (string, error) {
		if err := sem.Acquire(ctx); err != nil {
			return "", err
		}
		defer sem.Release()
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	if noParallel {
		m := compiler.NewMatcher()
		for _, path := range scripts {
			text, err := readScript(path)
			if err != nil {
				continue
			}
			m.AddSource(text)
		}
		m.FindMatches()
		return len(m.GetMatchedResults()) > 0, nil
	}

	am := asyncCompiler.NewAsyncMatcher()
	for _, path := range scripts {
		text, err := readScript(path)
		if err != nil {
			continue
		}
		am.AddSource(text)
	}
	if err := <-am.FindMatches(); err != nil {
		return false, err
	}
	results, err := am.GetMatchedResults()
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

