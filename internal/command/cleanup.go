// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/carbonctlgo/internal/deploy"
	"github.com/staranto/carbonctlgo/internal/meta"
)

// CleanupCommandAction is the action handler for the "cleanup" subcommand.
// It terminates tagged instances outside the kept region and removes
// matching security groups everywhere it swept.
func CleanupCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "cleanup") {
		return nil
	}

	d := &deploy.Deployer{
		Infra:   deploy.NewAWSInfra(cmd.String("profile")),
		Regions: m.Regions,
		Options: deploy.Options{
			Tag:      cmd.String("tag"),
			SGPrefix: cmd.String("sg-prefix"),
		},
	}

	keep := cmd.String("keep")
	if keep == "" && !cmd.Bool("auto-approve") {
		ok, err := ConfirmPrompt("No --keep region given; terminate tagged instances in every region")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cleanup aborted.")
			return nil
		}
	}

	res, err := d.Cleanup(ctx, keep)
	if err != nil {
		return err
	}

	for _, inst := range res.Terminated {
		fmt.Printf("Terminated instance %s in %s.\n", inst.ID, inst.Region)
	}
	for regionID, ids := range res.DeletedGroups {
		fmt.Printf("Deleted security groups in %s: %v\n", regionID, ids)
	}
	if len(res.Terminated) == 0 && len(res.DeletedGroups) == 0 {
		fmt.Println("Nothing found to clean up.")
	}
	return nil
}

// CleanupCommandBuilder constructs the cli.Command for "cleanup", wiring
// metadata, flags, and action/validator handlers.
func CleanupCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "cleanup",
		Usage:     "clean up superseded instances and security groups",
		UsageText: `carbonctl cleanup [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "auto-approve",
				Aliases: []string{"y"},
				Usage:   "sweep without confirmation",
				Value:   false,
			},
			&cli.StringFlag{
				Name:  "keep",
				Usage: "region whose deployment is left alone",
			},
			NewProfileFlag("cleanup"),
			NewSGPrefixFlag("cleanup"),
			NewTagFlag("cleanup"),
			tldrFlag,
		}, NewGlobalFlags("cleanup")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := GlobalFlagsValidator(ctx, cmd); err != nil {
				return err
			}
			return CleanupCommandAction(ctx, cmd)
		},
	}
}
