// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/carbonctlgo/internal/deploy"
	"github.com/staranto/carbonctlgo/internal/health"
	"github.com/staranto/carbonctlgo/internal/meta"
	"github.com/staranto/carbonctlgo/internal/region"
	"github.com/staranto/carbonctlgo/internal/terraform"
)

// DeployCommandAction is the action handler for the "deploy" subcommand. It
// relocates the tagged deployment to the greenest candidate region.
func DeployCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "deploy") {
		return nil
	}

	if pinned := cmd.String("region"); pinned != "" {
		if err := region.Validate(m.Regions, pinned); err != nil {
			return err
		}
	}
	if def := cmd.String("default-region"); def != "" {
		if err := region.Validate(m.Regions, def); err != nil {
			return fmt.Errorf("default-region: %w", err)
		}
	}

	d := &deploy.Deployer{
		Carbon:    newCarbonClient(cmd),
		Infra:     deploy.NewAWSInfra(cmd.String("profile")),
		Terraform: deploy.NewTerraformProvisioner(m.RootDir),
		Health:    health.NewPoller(),
		Regions:   m.Regions,
		Options: deploy.Options{
			Tag:           cmd.String("tag"),
			SGPrefix:      cmd.String("sg-prefix"),
			TargetRegion:  cmd.String("region"),
			DefaultRegion: cmd.String("default-region"),
			Domain:        cmd.String("domain"),
			ZoneID:        cmd.String("zone-id"),
			DNSTTL:        int64(cmd.Int("ttl")),
			SkipDNS:       cmd.Bool("skip-dns"),
			DryRun:        cmd.Bool("dry-run"),
		},
	}

	if !cmd.Bool("auto-approve") && !cmd.Bool("dry-run") {
		d.Options.Confirm = func(p *deploy.Plan) (bool, error) {
			return ConfirmPrompt(fmt.Sprintf("Deploy to %s", p.Target))
		}
	}

	if !cmd.Bool("dry-run") {
		if err := terraform.Preflight(m.RootDir); err != nil {
			return err
		}
	}

	res, err := d.Run(ctx)
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("dry-run"):
		return emitPlan(res.Plan, cmd)
	case res.Skipped:
		fmt.Printf("Already deployed in %s. Nothing to do.\n", res.Plan.Target)
	case res.Aborted:
		fmt.Println("Deployment aborted.")
	default:
		fmt.Printf("Deployment %s complete. Instance %s serving at http://%s (%s).\n",
			res.DeploymentID, res.InstanceID, res.PublicIP, res.Plan.Target)
		if res.DNSUpdated {
			fmt.Printf("DNS A record %s -> %s\n", cmd.String("domain"), res.PublicIP)
		}
		for _, inst := range res.Terminated {
			fmt.Printf("Terminated old instance %s in %s.\n", inst.ID, inst.Region)
		}
		for regionID, ids := range res.DeletedGroups {
			fmt.Printf("Deleted security groups in %s: %v\n", regionID, ids)
		}
	}
	return nil
}

// emitPlan renders the dry-run decision: the readings that drove the choice
// and the deployments that would be affected.
func emitPlan(p *deploy.Plan, cmd *cli.Command) error {
	if len(p.Report.Readings) > 0 {
		attrs := BuildAttrs(cmd, "region", "name", "zone", "intensity", "error")
		if err := EmitSlice(p.Report.Readings, attrs, cmd); err != nil {
			return err
		}
	}

	switch {
	case p.Pinned:
		fmt.Printf("Would deploy to pinned region %s.\n", p.Target)
	case p.Fallback:
		fmt.Printf("No carbon signal. Would deploy to default region %s.\n", p.Target)
	default:
		fmt.Printf("Would deploy to %s (lowest carbon intensity).\n", p.Target)
	}

	if p.AlreadyDeployed {
		fmt.Printf("Already deployed in %s. A real run would do nothing.\n", p.Target)
	}
	for _, inst := range p.Existing {
		if inst.Region != p.Target.ID {
			fmt.Fprintf(os.Stdout, "Would terminate %s in %s.\n", inst.ID, inst.Region)
		}
	}
	return nil
}

// DeployCommandBuilder constructs the cli.Command for "deploy", wiring
// metadata, flags, and action/validator handlers.
func DeployCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "deploy",
		Usage:     "deploy to the lowest-carbon region",
		UsageText: `carbonctl deploy [RootDir] [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "auto-approve",
				Aliases: []string{"y"},
				Usage:   "apply without confirmation",
				Value:   false,
			},
			&cli.StringFlag{
				Name:  "default-region",
				Usage: "region to use when no carbon signal is available",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("default_region", altsrc.StringSourcer(cfg.Source)),
				),
				Value: "eu-west-2",
				Validator: func(value string) error {
					return FlagValidators(value, JammedFlagValidator)
				},
			},
			&cli.StringFlag{
				Name:  "domain",
				Usage: "domain whose A record follows the deployment",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("MYAPP_DOMAIN"),
					yaml.YAML("dns.domain", altsrc.StringSourcer(cfg.Source)),
				),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "report the chosen region and current deployments, change nothing",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "pin the target region, bypassing the carbon signal",
				Validator: func(value string) error {
					return FlagValidators(value, JammedFlagValidator)
				},
			},
			&cli.BoolFlag{
				Name:  "skip-dns",
				Usage: "skip the DNS update even when configured",
				Value: false,
			},
			&cli.IntFlag{
				Name:  "ttl",
				Usage: "DNS record TTL in seconds",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("dns.ttl", altsrc.StringSourcer(cfg.Source)),
				),
				Value: 60, //nolint:mnd
			},
			&cli.StringFlag{
				Name:  "zone-id",
				Usage: "Route53 hosted zone id",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("HOSTED_ZONE_ID"),
					yaml.YAML("dns.zone_id", altsrc.StringSourcer(cfg.Source)),
				),
			},
			NewProfileFlag("deploy"),
			NewSGPrefixFlag("deploy"),
			NewTagFlag("deploy"),
			NewTokenFlag("deploy"),
			tldrFlag,
		}, NewGlobalFlags("deploy")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := GlobalFlagsValidator(ctx, cmd); err != nil {
				return err
			}
			return DeployCommandAction(ctx, cmd)
		},
	}
}
