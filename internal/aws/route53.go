// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"
	"fmt"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
)

// Route53API is the slice of the Route53 surface carbonctl touches.
type Route53API interface {
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

// UpsertARecord points the A record for domain at ip. UPSERT makes the call
// safe whether or not the record already exists.
func UpsertARecord(ctx context.Context, api Route53API, zoneID string, domain string, ip string, ttl int64) error {
	_, err := api.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: awsv2.String(zoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Comment: awsv2.String("Update A record to new instance IP"),
			Changes: []r53types.Change{
				{
					Action: r53types.ChangeActionUpsert,
					ResourceRecordSet: &r53types.ResourceRecordSet{
						Name: awsv2.String(domain),
						Type: r53types.RRTypeA,
						TTL:  awsv2.Int64(ttl),
						ResourceRecords: []r53types.ResourceRecord{
							{Value: awsv2.String(ip)},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update DNS record %s: %w", domain, err)
	}

	log.Infof("updated DNS A record %s -> %s (ttl %ds)", domain, ip, ttl)
	return nil
}
