// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package meta

import (
	"context"

	"github.com/staranto/carbonctlgo/internal/config"
	"github.com/staranto/carbonctlgo/internal/region"
)

// Meta are the meta-options that are available on all or most commands.
type Meta struct {
	Args    []string
	Config  config.Type
	Context context.Context
	// Regions is the candidate region registry for this invocation.
	Regions []region.Region
	// RootDir is the Terraform working directory.
	RootDir     string
	StartingDir string
}
