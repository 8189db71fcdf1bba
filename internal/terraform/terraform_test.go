// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package terraform

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVarsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	in := Vars{Region: "eu-central-1", DeploymentID: "1748779200"}
	assert.NoError(t, WriteVars(dir, in))

	// The file is plain HCL that terraform itself would accept.
	raw, err := os.ReadFile(filepath.Join(dir, VarsFile))
	assert.NoError(t, err)
	assert.Contains(t, string(raw), `aws_region    = "eu-central-1"`)
	assert.Contains(t, string(raw), `deployment_id = "1748779200"`)

	out, err := ReadVars(dir)
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadVars_IgnoresUnknownAttributes(t *testing.T) {
	dir := t.TempDir()
	content := `
aws_region    = "eu-west-1"
deployment_id = "42"
instance_type = "t3.micro"
`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, VarsFile), []byte(content), 0o644))

	v, err := ReadVars(dir)
	assert.NoError(t, err)
	assert.Equal(t, "eu-west-1", v.Region)
	assert.Equal(t, "42", v.DeploymentID)
}

func TestReadVars_BadFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, VarsFile), []byte(`aws_region = `), 0o644))

	_, err := ReadVars(dir)
	assert.Error(t, err)
}

func TestNewVars(t *testing.T) {
	before := time.Now().Unix()
	v := NewVars("eu-west-2")
	after := time.Now().Unix()

	assert.Equal(t, "eu-west-2", v.Region)
	id, err := strconv.ParseInt(v.DeploymentID, 10, 64)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, id, before)
	assert.LessOrEqual(t, id, after)
}

func TestParseOutput(t *testing.T) {
	doc := []byte(`{
		"instance_id": {"sensitive": false, "type": "string", "value": "i-0abc123"},
		"instance_public_ip": {"sensitive": false, "type": "string", "value": "203.0.113.10"}
	}`)

	tests := []struct {
		name    string
		output  string
		want    string
		wantErr bool
	}{
		{name: "instance id", output: "instance_id", want: "i-0abc123"},
		{name: "public ip", output: "instance_public_ip", want: "203.0.113.10"},
		{name: "missing output", output: "instance_dns", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOutput(doc, tt.output)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoOutput)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutput_EmptyValue(t *testing.T) {
	doc := []byte(`{"instance_public_ip": {"value": ""}}`)
	_, err := parseOutput(doc, "instance_public_ip")
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestBackendType(t *testing.T) {
	tests := []struct {
		name    string
		state   string
		want    string
		wantErr bool
	}{
		{
			name:  "s3 backend",
			state: `{"version": 3, "backend": {"type": "s3", "config": {}}}`,
			want:  "s3",
		},
		{
			name:  "local backend",
			state: `{"version": 3, "backend": {"type": "local", "config": {}}}`,
			want:  "local",
		},
		{
			name:    "garbage state",
			state:   `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			dotDir := filepath.Join(dir, ".terraform")
			assert.NoError(t, os.MkdirAll(dotDir, 0o755))
			assert.NoError(t, os.WriteFile(filepath.Join(dotDir, "terraform.tfstate"), []byte(tt.state), 0o644))

			typ, err := BackendType(dir)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, typ)
		})
	}
}

func TestBackendType_Uninitialized(t *testing.T) {
	typ, err := BackendType(t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, "local", typ)
}

func TestCheckBackend(t *testing.T) {
	// Uninitialized directory is the implicit local backend.
	assert.NoError(t, checkBackend(t.TempDir()))

	// A remote backend is allowed (with a warning), a broken descriptor is not.
	dir := t.TempDir()
	dotDir := filepath.Join(dir, ".terraform")
	assert.NoError(t, os.MkdirAll(dotDir, 0o755))
	path := filepath.Join(dotDir, "terraform.tfstate")

	assert.NoError(t, os.WriteFile(path, []byte(`{"backend": {"type": "s3"}}`), 0o644))
	assert.NoError(t, checkBackend(dir))

	assert.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	assert.Error(t, checkBackend(dir))
}

func TestCheckStateFile(t *testing.T) {
	dir := t.TempDir()

	// Missing state is a first-time deployment.
	assert.NoError(t, checkStateFile(dir))

	path := filepath.Join(dir, "terraform.tfstate")
	assert.NoError(t, os.WriteFile(path, []byte(`{"version": 4}`), 0o644))
	assert.NoError(t, checkStateFile(dir))

	assert.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))
	assert.Error(t, checkStateFile(dir))
}
