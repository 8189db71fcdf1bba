// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/carbonctlgo/internal/alert"
	"github.com/staranto/carbonctlgo/internal/deploy"
	"github.com/staranto/carbonctlgo/internal/health"
	"github.com/staranto/carbonctlgo/internal/meta"
)

// MonCommandAction is the action handler for the "mon" subcommand. It probes
// every tagged running instance's health endpoint and exits non-zero when
// any of them is off nominal, which makes it easy to wire into cron.
func MonCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "mon") {
		return nil
	}

	infra := deploy.NewAWSInfra(cmd.String("profile"))
	poller := health.NewPoller()

	var rows []deploymentRow
	var unhealthy []string
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
			if inst.PublicIP == "" {
				row.Health = string(health.StatusUnreachable)
			} else {
				row.Health = string(poller.Probe(ctx, "http://"+inst.PublicIP+"/health"))
			}
			if row.Health != string(health.StatusHealthy) {
				unhealthy = append(unhealthy, fmt.Sprintf("%s in %s (%s): %s", inst.ID, inst.Region, inst.PublicIP, row.Health))
			}
			rows = append(rows, row)
		}
	}

	attrs := BuildAttrs(cmd, "region", "id", "public_ip", "health")
	if err := EmitSlice(rows, attrs, cmd); err != nil {
		return err
	}

	if len(rows) == 0 {
		return errors.New("no tagged running instances found in any region")
	}
	if len(unhealthy) == 0 {
		return nil
	}

	if mailer, err := alert.FromConfig(); err == nil {
		subject := fmt.Sprintf("carbonctl: %d unhealthy deployment(s)", len(unhealthy))
		if sendErr := mailer.Send(subject, strings.Join(unhealthy, "\n")); sendErr != nil {
			log.Errorf("alert delivery failed: %v", sendErr)
		}
	} else if !errors.Is(err, alert.ErrNotConfigured) {
		log.Errorf("alerting misconfigured: %v", err)
	}

	return fmt.Errorf("%d deployment(s) unhealthy", len(unhealthy))
}

// MonCommandBuilder constructs the cli.Command for "mon", wiring metadata,
// flags, and action/validator handlers.
func MonCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "mon",
		Usage:     "monitor deployment health",
		UsageText: `carbonctl mon [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			NewProfileFlag("mon"),
			NewTagFlag("mon"),
			tldrFlag,
		}, NewGlobalFlags("mon")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := GlobalFlagsValidator(ctx, cmd); err != nil {
				return err
			}
			return MonCommandAction(ctx, cmd)
		},
	}
}
