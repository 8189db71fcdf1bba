// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/carbonctlgo/internal/cacheutil"
	"github.com/staranto/carbonctlgo/internal/command"
	"github.com/staranto/carbonctlgo/internal/config"
	mylog "github.com/staranto/carbonctlgo/internal/log"
	"github.com/staranto/carbonctlgo/internal/version"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return 0
		}
	}

	// Best-effort: pre-create cache directory when caching is enabled.
	if _, ok, err := cacheutil.EnsureBaseDir(); err != nil && ok {
		// Non-fatal: print to stderr and continue.
		fmt.Fprintln(os.Stderr, err)
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments injects per-command default arguments from the
// "<cmd>.defaults" config key immediately after the command name. Explicit
// flags appear later in the arg list and win.
func mangleArguments(args []string) []string {
	// args[0] is the executable and args[1] the carbonctl subcommand.
	if strings.HasPrefix(args[1], "-") {
		return args
	}

	// Short-circuit for --help/-h. If help is requested, just keep the
	// preamble and add --help flag.
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return []string{args[0], args[1], "--help"}
		}
	}

	defaults, _ := config.GetStringSlice(args[1] + ".defaults")
	if len(defaults) == 0 {
		return args
	}

	idx := 2
	for _, arg := range defaults {
		parts := strings.Fields(arg)
		args = append(args[:idx], append(parts, args[idx:]...)...)
		idx += len(parts)
	}

	log.Debugf("idx=%d, args=%v", idx, args)
	return args
}
