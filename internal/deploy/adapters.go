// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/staranto/carbonctlgo/internal/aws"
	"github.com/staranto/carbonctlgo/internal/terraform"
)

// AWSInfra implements Infra over live SDK clients, one EC2 client per region.
// Clients are built lazily so a run that never touches a region never loads
// config for it.
type AWSInfra struct {
	// Profile selects a shared-config profile; empty inherits the env chain.
	Profile string

	mu  sync.Mutex
	ec2 map[string]aws.EC2API
	r53 aws.Route53API
}

// NewAWSInfra returns an AWSInfra using the given profile (may be empty).
func NewAWSInfra(profile string) *AWSInfra {
	return &AWSInfra{
		Profile: profile,
		ec2:     make(map[string]aws.EC2API),
	}
}

func (a *AWSInfra) ec2For(ctx context.Context, regionID string) (aws.EC2API, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if api, ok := a.ec2[regionID]; ok {
		return api, nil
	}

	opts := []aws.Option{aws.WithRegion(regionID)}
	if a.Profile != "" {
		opts = append(opts, aws.WithProfile(a.Profile))
	}
	cfg, err := aws.LoadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	api := aws.NewEC2(cfg)
	a.ec2[regionID] = api
	return api, nil
}

func (a *AWSInfra) route53(ctx context.Context) (aws.Route53API, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.r53 != nil {
		return a.r53, nil
	}

	var opts []aws.Option
	if a.Profile != "" {
		opts = append(opts, aws.WithProfile(a.Profile))
	}
	cfg, err := aws.LoadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	a.r53 = aws.NewRoute53(cfg)
	return a.r53, nil
}

func (a *AWSInfra) RunningInstances(ctx context.Context, regionID string, tag string) ([]aws.Instance, error) {
	api, err := a.ec2For(ctx, regionID)
	if err != nil {
		return nil, err
	}
	return aws.RunningInstances(ctx, api, regionID, tag)
}

func (a *AWSInfra) TerminateAndWait(ctx context.Context, regionID string, id string) error {
	api, err := a.ec2For(ctx, regionID)
	if err != nil {
		return err
	}
	return aws.TerminateAndWait(ctx, api, regionID, id)
}

func (a *AWSInfra) SecurityGroupIDs(ctx context.Context, regionID string, prefix string) ([]string, error) {
	api, err := a.ec2For(ctx, regionID)
	if err != nil {
		return nil, err
	}
	return aws.SecurityGroupIDs(ctx, api, regionID, prefix)
}

func (a *AWSInfra) DeleteSecurityGroups(ctx context.Context, regionID string, ids []string) error {
	api, err := a.ec2For(ctx, regionID)
	if err != nil {
		return err
	}
	return aws.DeleteSecurityGroups(ctx, api, regionID, ids)
}

func (a *AWSInfra) UpsertARecord(ctx context.Context, zoneID string, domain string, ip string, ttl int64) error {
	api, err := a.route53(ctx)
	if err != nil {
		return err
	}
	return aws.UpsertARecord(ctx, api, zoneID, domain, ip, ttl)
}

// TerraformProvisioner adapts the terraform runner to the Provisioner
// interface, writing tfvars into the runner's working directory.
type TerraformProvisioner struct {
	Runner *terraform.Runner
}

// NewTerraformProvisioner returns a provisioner rooted at dir.
func NewTerraformProvisioner(dir string) *TerraformProvisioner {
	return &TerraformProvisioner{Runner: terraform.NewRunner(dir)}
}

func (p *TerraformProvisioner) WriteVars(v terraform.Vars) error {
	return terraform.WriteVars(p.Runner.Dir, v)
}

func (p *TerraformProvisioner) ReadVars() (terraform.Vars, bool, error) {
	if _, err := os.Stat(filepath.Join(p.Runner.Dir, terraform.VarsFile)); err != nil {
		if os.IsNotExist(err) {
			return terraform.Vars{}, false, nil
		}
		return terraform.Vars{}, false, err
	}
	v, err := terraform.ReadVars(p.Runner.Dir)
	if err != nil {
		return terraform.Vars{}, false, err
	}
	return v, true, nil
}

func (p *TerraformProvisioner) Init(ctx context.Context) error {
	return p.Runner.Init(ctx)
}

func (p *TerraformProvisioner) Apply(ctx context.Context) error {
	return p.Runner.Apply(ctx)
}

func (p *TerraformProvisioner) Output(ctx context.Context, name string) (string, error) {
	return p.Runner.Output(ctx, name)
}
