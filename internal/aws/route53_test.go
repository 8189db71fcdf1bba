// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"
	"errors"
	"testing"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/stretchr/testify/assert"
)

type fakeRoute53 struct {
	input *route53.ChangeResourceRecordSetsInput
	err   error
}

func (f *fakeRoute53) ChangeResourceRecordSets(_ context.Context, params *route53.ChangeResourceRecordSetsInput, _ ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &route53.ChangeResourceRecordSetsOutput{}, nil
}

func TestUpsertARecord(t *testing.T) {
	api := &fakeRoute53{}
	err := UpsertARecord(context.Background(), api, "Z123", "myapp.example.com", "203.0.113.10", 60)
	assert.NoError(t, err)

	assert.Equal(t, "Z123", awsv2.ToString(api.input.HostedZoneId))
	assert.Len(t, api.input.ChangeBatch.Changes, 1)

	change := api.input.ChangeBatch.Changes[0]
	assert.Equal(t, r53types.ChangeActionUpsert, change.Action)
	assert.Equal(t, "myapp.example.com", awsv2.ToString(change.ResourceRecordSet.Name))
	assert.Equal(t, r53types.RRTypeA, change.ResourceRecordSet.Type)
	assert.Equal(t, int64(60), awsv2.ToInt64(change.ResourceRecordSet.TTL))
	assert.Equal(t, "203.0.113.10", awsv2.ToString(change.ResourceRecordSet.ResourceRecords[0].Value))
}

func TestUpsertARecord_Error(t *testing.T) {
	api := &fakeRoute53{err: errors.New("no such zone")}
	err := UpsertARecord(context.Background(), api, "Z123", "myapp.example.com", "203.0.113.10", 60)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "myapp.example.com")
}
