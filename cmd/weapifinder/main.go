// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package main implements the weapifinder CLI: a bulk static-analysis
// tool that scans a corpus of browser extensions for usages of a given
// set of WebExtension API calls.
//
// Usage:
//
//	weapifinder find --queries <file> [--filter permissions|manifest|user-count] ...
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds flags shared across every subcommand.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
	Config  string
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `weapifinder - bulk static-analysis CLI for browser extensions

Usage:
  weapifinder <command> [options]

Commands:
  find          Scan a corpus of extensions for WebExtension API usages

Global Options:
  --version     Show version and exit

Examples:
  weapifinder find --queries queries.txt < extensions.txt
  weapifinder find --queries queries.txt --filter permissions --json < extensions.txt
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("weapifinder version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "find":
		runFind(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
