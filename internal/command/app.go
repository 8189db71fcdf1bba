// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT
package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/carbonctlgo/internal/config"
	"github.com/staranto/carbonctlgo/internal/meta"
	"github.com/staranto/carbonctlgo/internal/region"
)

func InitApp(ctx context.Context, args []string) (*cli.Command, error) {

	// Save the CWD at startup and then defer restoring it so we're tidy.
	sd, _ := os.Getwd()
	defer func() {
		if err := os.Chdir(sd); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to restore directory: %v\n", err)
		}
	}()

	// The arg[1] immediately following the binary (arg[0]) is the carbonctl
	// subcommand and also represents the namespace key to be used when
	// retrieving config values. arg[1] could be -h/--help, so ignore it if it
	// appears to be a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	cfg, _ := config.Load(ns)

	regions, err := region.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	m := meta.Meta{
		Args:        args,
		Config:      cfg,
		Context:     ctx,
		Regions:     regions,
		StartingDir: sd,
	}

	// See if the arg immediately following the command might be the Terraform
	// working directory. If it begins with - it's a flag; the directory then
	// comes from terraform.dir in the config, falling back to ./terraform
	// when that exists and the CWD otherwise.
	if len(args) > 2 && !strings.HasPrefix(args[2], "-") {
		wd, err := filepath.Abs(args[2])
		if err != nil {
			return nil, fmt.Errorf("failed to parse rootDir (%s): %w", args[2], err)
		}
		m.RootDir = wd
	} else if dir, err := config.GetString("terraform.dir"); err == nil && dir != "" {
		m.RootDir = dir
	} else if info, err := os.Stat(filepath.Join(sd, "terraform")); err == nil && info.IsDir() {
		m.RootDir = filepath.Join(sd, "terraform")
	} else {
		m.RootDir = sd
	}

	app := &cli.Command{
		Name:  "carbonctl",
		Usage: "Carbon-aware deployment control",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "carbonctl version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		CleanupCommandBuilder(app, m),
		CompletionCommandBuilder(app, m),
		DeployCommandBuilder(app, m),
		DqCommandBuilder(app, m),
		IqCommandBuilder(app, m),
		MonCommandBuilder(app, m),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app, nil
}
