// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/carbonctlgo/internal/cacheutil"
	"github.com/staranto/carbonctlgo/internal/carbon"
	"github.com/staranto/carbonctlgo/internal/config"
	"github.com/staranto/carbonctlgo/internal/meta"
)

// newCarbonClient builds the Electricity Maps client from the --token flag
// and the carbon section of the config file. Aged cache entries are purged
// here so stale readings don't accumulate between runs.
func newCarbonClient(cmd *cli.Command) *carbon.Client {
	if clean, err := config.GetInt("cache.clean"); err == nil {
		if err := cacheutil.Purge(clean); err != nil {
			log.WithError(err).Warn("cache purge failed")
		}
	}

	ttl, _ := config.GetInt("carbon.cache.ttl", 300) //nolint:mnd
	opts := []carbon.Option{carbon.WithTTL(time.Duration(ttl) * time.Second)}
	if base, err := config.GetString("carbon.base"); err == nil && base != "" {
		opts = append(opts, carbon.WithBaseURL(base))
	}
	return carbon.New(cmd.String("token"), opts...)
}

// IqCommandAction is the action handler for the "iq" subcommand. It queries
// the current carbon intensity of every candidate region's grid zone and
// emits the readings per common flags.
func IqCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	// Bail out early if we're just dumping tldr.
	if ShortCircuitTLDR(ctx, cmd, "iq") {
		return nil
	}

	client := newCarbonClient(cmd)
	rep := client.Snapshot(ctx, m.Regions)

	attrs := BuildAttrs(cmd, "region", "name", "zone", "intensity", "updated_at", "error")
	log.Debugf("attrs: %v", attrs)

	if err := EmitSlice(rep.Readings, attrs, cmd); err != nil {
		return err
	}

	if _, ok := rep.Best(); !ok {
		return fmt.Errorf("no carbon intensity zone could be queried")
	}
	return nil
}

// IqCommandBuilder constructs the cli.Command for "iq", wiring metadata,
// flags, and action/validator handlers.
func IqCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "iq",
		Usage:     "carbon intensity query",
		UsageText: `carbonctl iq [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			NewTokenFlag("iq"),
			tldrFlag,
		}, NewGlobalFlags("iq")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := GlobalFlagsValidator(ctx, cmd); err != nil {
				return err
			}
			return IqCommandAction(ctx, cmd)
		},
	}
}
