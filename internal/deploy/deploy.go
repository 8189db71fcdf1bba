// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package deploy orchestrates carbon-aware relocation: pick the greenest
// candidate region, provision there through Terraform, verify the new
// instance over HTTP, repoint DNS and clean up the superseded deployment.
package deploy

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"github.com/staranto/carbonctlgo/internal/aws"
	"github.com/staranto/carbonctlgo/internal/carbon"
	"github.com/staranto/carbonctlgo/internal/region"
	"github.com/staranto/carbonctlgo/internal/terraform"
)

// CarbonSource supplies the intensity snapshot the target choice is based on.
type CarbonSource interface {
	Snapshot(ctx context.Context, regions []region.Region) carbon.Report
}

// Infra is the cloud surface the orchestrator drives, one call per region.
type Infra interface {
	RunningInstances(ctx context.Context, regionID string, tag string) ([]aws.Instance, error)
	TerminateAndWait(ctx context.Context, regionID string, id string) error
	SecurityGroupIDs(ctx context.Context, regionID string, prefix string) ([]string, error)
	DeleteSecurityGroups(ctx context.Context, regionID string, ids []string) error
	UpsertARecord(ctx context.Context, zoneID string, domain string, ip string, ttl int64) error
}

// Provisioner is the Terraform surface.
type Provisioner interface {
	WriteVars(v terraform.Vars) error
	// ReadVars reads the current variable file back. The bool is false when
	// no variable file exists yet.
	ReadVars() (terraform.Vars, bool, error)
	Init(ctx context.Context) error
	Apply(ctx context.Context) error
	Output(ctx context.Context, name string) (string, error)
}

// Health gates teardown on the new instance answering HTTP 200.
type Health interface {
	WaitForOK(ctx context.Context, url string) error
}

// Options tune a single orchestration run.
type Options struct {
	// Tag is the Name tag that marks managed instances.
	Tag string
	// SGPrefix matches the security groups Terraform creates per deployment.
	SGPrefix string
	// TargetRegion pins the target and bypasses the carbon signal.
	TargetRegion string
	// DefaultRegion is used when no zone could be queried.
	DefaultRegion string
	// Domain/ZoneID enable the Route53 update; both empty means skip.
	Domain string
	ZoneID string
	DNSTTL int64
	// SkipDNS forces the DNS step off even when configured.
	SkipDNS bool
	// DryRun stops after planning.
	DryRun bool
	// Confirm, when non-nil, is consulted before apply. Anything but an
	// affirmative answer aborts cleanly.
	Confirm func(p *Plan) (bool, error)
}

// Deployer wires the collaborators for one run.
type Deployer struct {
	Carbon    CarbonSource
	Infra     Infra
	Terraform Provisioner
	Health    Health
	Regions   []region.Region
	Options   Options
}

// Plan is the decision record produced before anything is changed.
type Plan struct {
	// Report holds the carbon readings; empty when the target was pinned.
	Report carbon.Report
	// Target is the chosen region.
	Target region.Region
	// Pinned is true when --region bypassed the carbon signal.
	Pinned bool
	// Fallback is true when no zone answered and DefaultRegion was used.
	Fallback bool
	// Existing lists tagged running instances across all candidate regions.
	Existing []aws.Instance
	// AlreadyDeployed is true when the target region already holds one.
	AlreadyDeployed bool
	// Prior holds the tfvars read back from the working directory, zero when
	// none were written yet.
	Prior terraform.Vars
}

// Result records what a run actually did.
type Result struct {
	Plan *Plan
	// Skipped is true when the deployment was already in the target region.
	Skipped bool
	// Aborted is true when the confirmation prompt declined.
	Aborted bool

	DeploymentID string
	InstanceID   string
	PublicIP     string
	DNSUpdated   bool

	Terminated []aws.Instance
	// DeletedGroups maps region id to the security group ids removed there.
	DeletedGroups map[string][]string
}

// Plan chooses the target region and discovers the current deployments. It
// performs no writes.
func (d *Deployer) Plan(ctx context.Context) (*Plan, error) {
	p := &Plan{}

	// Validate external region inputs before anything else so a typo in the
	// default region surfaces now, not on the rare fallback run.
	if d.Options.DefaultRegion != "" {
		if err := region.Validate(d.Regions, d.Options.DefaultRegion); err != nil {
			return nil, fmt.Errorf("default region: %w", err)
		}
	}

	// Read the current tfvars back. A region written by an earlier run must
	// still be a candidate; anything else means the working directory belongs
	// to a different configuration.
	if d.Terraform != nil {
		vars, ok, err := d.Terraform.ReadVars()
		if err != nil {
			return nil, err
		}
		if ok && vars.Region != "" {
			if err := region.Validate(d.Regions, vars.Region); err != nil {
				return nil, fmt.Errorf("existing %s: %w", terraform.VarsFile, err)
			}
			log.Infof("current tfvars: region %s, deployment %s", vars.Region, vars.DeploymentID)
			p.Prior = vars
		}
	}

	if d.Options.TargetRegion != "" {
		r, ok := region.Lookup(d.Regions, d.Options.TargetRegion)
		if !ok {
			return nil, fmt.Errorf("pinned region %q is not a candidate region", d.Options.TargetRegion)
		}
		p.Target = r
		p.Pinned = true
		log.Infof("target region pinned: %s", r)
	} else {
		p.Report = d.Carbon.Snapshot(ctx, d.Regions)
		for _, reading := range p.Report.Readings {
			if reading.OK() {
				log.Infof("%s (%s): %.0f gCO2/kWh", reading.Region, reading.Name, reading.Intensity)
			} else {
				log.Warnf("%s (%s): %s", reading.Region, reading.Name, reading.Error)
			}
		}

		if best, ok := p.Report.Best(); ok {
			r, found := region.Lookup(d.Regions, best.Region)
			if !found {
				return nil, fmt.Errorf("best region %q is not a candidate region", best.Region)
			}
			p.Target = r
			log.Infof("recommended region (lowest carbon intensity): %s at %.0f gCO2/kWh", r, best.Intensity)
		} else {
			r, found := region.Lookup(d.Regions, d.Options.DefaultRegion)
			if !found {
				return nil, fmt.Errorf("default region %q is not a candidate region", d.Options.DefaultRegion)
			}
			p.Target = r
			p.Fallback = true
			log.Warnf("no carbon signal available, falling back to default region %s", r)
		}
	}

	// Record the current deployments before touching anything. A region that
	// can't be described is logged and skipped rather than aborting the run;
	// its instances simply won't be cleaned up this time.
	for _, r := range d.Regions {
		instances, err := d.Infra.RunningInstances(ctx, r.ID, d.Options.Tag)
		if err != nil {
			log.Errorf("failed to list instances in %s: %v", r.ID, err)
			continue
		}
		for _, inst := range instances {
			log.Infof("found running instance %s in %s", inst.ID, r.ID)
		}
		p.Existing = append(p.Existing, instances...)
	}

	for _, inst := range p.Existing {
		if inst.Region == p.Target.ID {
			p.AlreadyDeployed = true
			break
		}
	}

	return p, nil
}

// Run executes the full relocation. The previous deployment is only torn
// down after the new instance has answered HTTP 200; a failed health check
// leaves it serving.
func (d *Deployer) Run(ctx context.Context) (*Result, error) {
	plan, err := d.Plan(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Plan: plan}

	if d.Options.DryRun {
		return res, nil
	}

	if plan.AlreadyDeployed {
		log.Infof("already deployed in %s, nothing to do", plan.Target)
		res.Skipped = true
		return res, nil
	}

	if d.Options.Confirm != nil {
		ok, err := d.Options.Confirm(plan)
		if err != nil {
			return res, err
		}
		if !ok {
			res.Aborted = true
			return res, nil
		}
	}

	vars := terraform.NewVars(plan.Target.ID)
	if err := d.Terraform.WriteVars(vars); err != nil {
		return res, err
	}
	res.DeploymentID = vars.DeploymentID

	log.Infof("provisioning deployment %s in %s", vars.DeploymentID, plan.Target)
	if err := d.Terraform.Init(ctx); err != nil {
		return res, err
	}
	if err := d.Terraform.Apply(ctx); err != nil {
		return res, err
	}

	ip, err := d.Terraform.Output(ctx, "instance_public_ip")
	if err != nil {
		return res, err
	}
	id, err := d.Terraform.Output(ctx, "instance_id")
	if err != nil {
		return res, err
	}
	res.PublicIP = ip
	res.InstanceID = id
	log.Infof("new instance %s at %s", id, ip)

	if err := d.Health.WaitForOK(ctx, "http://"+ip); err != nil {
		return res, fmt.Errorf("new instance failed its health check, previous deployment left in place: %w", err)
	}

	if d.dnsConfigured() {
		err := d.Infra.UpsertARecord(ctx, d.Options.ZoneID, d.Options.Domain, ip, d.Options.DNSTTL)
		if err != nil {
			return res, err
		}
		res.DNSUpdated = true
	} else {
		log.Info("skipping DNS update")
	}

	res.Terminated, res.DeletedGroups, err = d.cleanupOld(ctx, plan.Existing, plan.Target.ID)
	return res, err
}

func (d *Deployer) dnsConfigured() bool {
	return !d.Options.SkipDNS && d.Options.Domain != "" && d.Options.ZoneID != ""
}

// cleanupOld tears down the instances recorded before the apply, then
// removes their security groups. Instances first: a group can't be deleted
// while something is still attached to it.
func (d *Deployer) cleanupOld(ctx context.Context, old []aws.Instance, targetRegion string) ([]aws.Instance, map[string][]string, error) {
	if len(old) == 0 {
		log.Info("no old instances found to clean up")
		deleted, err := d.sweepGroups(ctx, "")
		return nil, deleted, err
	}

	var terminated []aws.Instance
	regions := make(map[string]bool)
	for _, inst := range old {
		if inst.Region == targetRegion {
			continue
		}
		if err := d.Infra.TerminateAndWait(ctx, inst.Region, inst.ID); err != nil {
			return terminated, nil, fmt.Errorf("failed to terminate %s in %s: %w", inst.ID, inst.Region, err)
		}
		terminated = append(terminated, inst)
		regions[inst.Region] = true
	}

	deleted := make(map[string][]string)
	for regionID := range regions {
		ids, err := d.deleteGroups(ctx, regionID)
		if err != nil {
			log.Errorf("failed to remove security groups in %s: %v", regionID, err)
			continue
		}
		if len(ids) > 0 {
			deleted[regionID] = ids
		}
	}

	return terminated, deleted, nil
}

// sweepGroups removes matching security groups in every candidate region
// except skipRegion. Groups still attached to an instance fail individually
// and are left behind.
func (d *Deployer) sweepGroups(ctx context.Context, skipRegion string) (map[string][]string, error) {
	deleted := make(map[string][]string)
	for _, r := range d.Regions {
		if r.ID == skipRegion {
			continue
		}
		ids, err := d.deleteGroups(ctx, r.ID)
		if err != nil {
			log.Errorf("failed to remove security groups in %s: %v", r.ID, err)
			continue
		}
		if len(ids) > 0 {
			deleted[r.ID] = ids
		}
	}
	return deleted, nil
}

func (d *Deployer) deleteGroups(ctx context.Context, regionID string) ([]string, error) {
	ids, err := d.Infra.SecurityGroupIDs(ctx, regionID, d.Options.SGPrefix)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		log.Debugf("no security groups found to clean up in %s", regionID)
		return nil, nil
	}
	if err := d.Infra.DeleteSecurityGroups(ctx, regionID, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Cleanup is the stand-alone sweep behind the cleanup command. It terminates
// tagged instances everywhere except keepRegion, then removes matching
// security groups; with nothing running it still sweeps for orphaned groups.
func (d *Deployer) Cleanup(ctx context.Context, keepRegion string) (*Result, error) {
	if keepRegion != "" {
		if err := region.Validate(d.Regions, keepRegion); err != nil {
			return nil, err
		}
	}

	res := &Result{DeletedGroups: make(map[string][]string)}

	for _, r := range d.Regions {
		if r.ID == keepRegion {
			continue
		}
		instances, err := d.Infra.RunningInstances(ctx, r.ID, d.Options.Tag)
		if err != nil {
			log.Errorf("failed to list instances in %s: %v", r.ID, err)
			continue
		}
		for _, inst := range instances {
			if err := d.Infra.TerminateAndWait(ctx, r.ID, inst.ID); err != nil {
				return res, fmt.Errorf("failed to terminate %s in %s: %w", inst.ID, r.ID, err)
			}
			res.Terminated = append(res.Terminated, inst)
		}

		ids, err := d.deleteGroups(ctx, r.ID)
		if err != nil {
			log.Errorf("failed to remove security groups in %s: %v", r.ID, err)
			continue
		}
		if len(ids) > 0 {
			res.DeletedGroups[r.ID] = ids
		}
	}

	if len(res.Terminated) == 0 && len(res.DeletedGroups) == 0 {
		log.Info("nothing found to clean up")
	}

	return res, nil
}
