// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// EC2API is the slice of the EC2 surface carbonctl touches. The real
// *ec2.Client satisfies it; tests use fakes.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
}

// Instance is the subset of EC2 instance attributes the commands care about.
type Instance struct {
	ID         string    `json:"id"`
	Region     string    `json:"region"`
	PublicIP   string    `json:"public_ip,omitempty"`
	LaunchTime time.Time `json:"launch_time"`
}

// TerminateWaitTimeout bounds the wait for full instance termination. The
// console shows terminations finishing in well under five minutes.
const TerminateWaitTimeout = 5 * time.Minute

// RunningInstances returns running instances in one region carrying the
// given Name tag.
func RunningInstances(ctx context.Context, api EC2API, region string, tag string) ([]Instance, error) {
	out, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: awsv2.String("tag:Name"), Values: []string{tag}},
			{Name: awsv2.String("instance-state-name"), Values: []string{"running"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances in %s: %w", region, err)
	}

	var instances []Instance
	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			i := Instance{Region: region}
			if inst.InstanceId != nil {
				i.ID = *inst.InstanceId
			}
			if inst.PublicIpAddress != nil {
				i.PublicIP = *inst.PublicIpAddress
			}
			if inst.LaunchTime != nil {
				i.LaunchTime = *inst.LaunchTime
			}
			instances = append(instances, i)
		}
	}
	return instances, nil
}

// TerminateAndWait terminates an instance and blocks until EC2 reports it
// fully terminated. Security groups can't be deleted while the instance is
// still winding down, so callers depend on the wait.
func TerminateAndWait(ctx context.Context, api EC2API, region string, id string) error {
	if _, err := api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	}); err != nil {
		return fmt.Errorf("failed to terminate instance %s in %s: %w", id, region, err)
	}
	log.Infof("terminating instance %s in %s", id, region)

	waiter := ec2.NewInstanceTerminatedWaiter(api)
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	}, TerminateWaitTimeout); err != nil {
		return fmt.Errorf("instance %s in %s did not reach terminated state: %w", id, region, err)
	}
	log.Infof("instance %s in %s is fully terminated", id, region)
	return nil
}

// SecurityGroupIDs returns IDs of security groups whose names match the
// given prefix (EC2 wildcard filter, e.g. "myapp_sg_*").
func SecurityGroupIDs(ctx context.Context, api EC2API, region string, namePrefix string) ([]string, error) {
	out, err := api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: awsv2.String("group-name"), Values: []string{namePrefix + "*"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe security groups in %s: %w", region, err)
	}

	var ids []string
	for _, sg := range out.SecurityGroups {
		if sg.GroupId != nil {
			ids = append(ids, *sg.GroupId)
		}
	}
	return ids, nil
}

// DeleteSecurityGroups deletes the given groups one at a time, continuing
// past individual failures and returning them joined.
func DeleteSecurityGroups(ctx context.Context, api EC2API, region string, ids []string) error {
	var errs []error
	for _, id := range ids {
		if _, err := api.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: awsv2.String(id),
		}); err != nil {
			log.WithError(err).Errorf("failed to delete security group %s in %s", id, region)
			errs = append(errs, fmt.Errorf("security group %s: %w", id, err))
			continue
		}
		log.Infof("deleted security group %s in %s", id, region)
	}
	return errors.Join(errs...)
}
