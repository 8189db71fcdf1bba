// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/carbonctlgo/internal/deploy"
	"github.com/staranto/carbonctlgo/internal/health"
	"github.com/staranto/carbonctlgo/internal/meta"
)

// deploymentRow is one tagged running instance, flattened for output.
type deploymentRow struct {
	Region     string `json:"region"`
	ID         string `json:"id"`
	PublicIP   string `json:"public_ip,omitempty"`
	LaunchTime string `json:"launch_time,omitempty"`
	Age        string `json:"age,omitempty"`
	Health     string `json:"health,omitempty"`
}

// DqCommandAction is the action handler for the "dq" subcommand. It lists
// the tagged running instances in every candidate region, optionally probing
// each one's health endpoint.
func DqCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "dq") {
		return nil
	}

	infra := deploy.NewAWSInfra(cmd.String("profile"))
	poller := health.NewPoller()

	var rows []deploymentRow
	for _, r := range m.Regions {
		instances, err := infra.RunningInstances(ctx, r.ID, cmd.String("tag"))
		if err != nil {
			log.Errorf("failed to list instances in %s: %v", r.ID, err)
			continue
		}
		for _, inst := range instances {
			row := deploymentRow{
				Region:   inst.Region,
				ID:       inst.ID,
				PublicIP: inst.PublicIP,
			}
			if !inst.LaunchTime.IsZero() {
				row.LaunchTime = inst.LaunchTime.Format(time.RFC3339)
				row.Age = humanize.Time(inst.LaunchTime)
			}
			if cmd.Bool("health") && inst.PublicIP != "" {
				row.Health = string(poller.Probe(ctx, "http://"+inst.PublicIP+"/health"))
			}
			rows = append(rows, row)
		}
	}

	attrs := BuildAttrs(cmd, "region", "id", "public_ip", "age", "health", "!launch_time")
	log.Debugf("attrs: %v", attrs)

	return EmitSlice(rows, attrs, cmd)
}

// DqCommandBuilder constructs the cli.Command for "dq", wiring metadata,
// flags, and action/validator handlers.
func DqCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "dq",
		Usage:     "deployment query",
		UsageText: `carbonctl dq [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "health",
				Usage: "probe each instance's health endpoint",
				Value: false,
			},
			NewProfileFlag("dq"),
			NewTagFlag("dq"),
			tldrFlag,
		}, NewGlobalFlags("dq")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := GlobalFlagsValidator(ctx, cmd); err != nil {
				return err
			}
			return DqCommandAction(ctx, cmd)
		},
	}
}
