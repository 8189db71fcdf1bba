// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package terraform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// VarsFile is the basename Terraform picks up automatically.
const VarsFile = "terraform.tfvars"

// Vars is the variable set carbonctl controls. DeploymentID changes on every
// redeploy so Terraform replaces the instance even when the region repeats.
type Vars struct {
	Region       string `json:"aws_region"`
	DeploymentID string `json:"deployment_id"`
}

// NewVars stamps a fresh deployment id for the chosen region.
func NewVars(region string) Vars {
	return Vars{
		Region:       region,
		DeploymentID: strconv.FormatInt(time.Now().Unix(), 10),
	}
}

// WriteVars overwrites terraform.tfvars in dir with the given variable set.
func WriteVars(dir string, v Vars) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("aws_region", cty.StringVal(v.Region))
	body.SetAttributeValue("deployment_id", cty.StringVal(v.DeploymentID))

	path := filepath.Join(dir, VarsFile)
	if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil { //nolint:mnd
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadVars parses terraform.tfvars back from dir. Unknown attributes are
// ignored; missing ones come back empty.
func ReadVars(dir string) (Vars, error) {
	path := filepath.Join(dir, VarsFile)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return Vars{}, fmt.Errorf("failed to parse %s: %s", path, diags.Error())
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return Vars{}, fmt.Errorf("failed to read %s: %s", path, diags.Error())
	}

	var v Vars
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() || val.Type() != cty.String {
			continue
		}
		switch name {
		case "aws_region":
			v.Region = val.AsString()
		case "deployment_id":
			v.DeploymentID = val.AsString()
		}
	}

	return v, nil
}
