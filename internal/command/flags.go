// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os/exec"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/carbonctlgo/internal/config"
)

func init() {
	cfg, _ = config.Load("")
}

var (
	cfg config.Type

	tldrFlag *cli.BoolFlag = &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show tldr page",
		Hidden:      !pathHas("tldr"),
		HideDefault: true,
	}
)

func NewGlobalFlags(params ...string) (flags []cli.Flag) {
	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of attributes to include in results",
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"color", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("color", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.BoolFlag{
			Name:  "local",
			Usage: "render timestamps in local time",
			Sources: cli.NewValueSourceChain(
				yaml.YAML("local", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"output", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("output", altsrc.StringSourcer(cfg.Source)),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"sort", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"titles", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("titles", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
	}

	return
}

// NewTokenFlag constructs the Electricity Maps API token flag, sourced from
// the environment or the carbon section of the config file.
func NewTokenFlag(ns string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "token",
		Usage: "Electricity Maps API token",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("ELECTRICITYMAPS_API_TOKEN"),
			yaml.YAML(ns+".token", altsrc.StringSourcer(cfg.Source)),
			yaml.YAML("carbon.token", altsrc.StringSourcer(cfg.Source)),
		),
	}
}

// NewTagFlag constructs the instance Name-tag flag.
func NewTagFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:  "tag",
		Usage: "Name tag that marks managed instances",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("CARBONCTL_TAG"),
		),
		Value: "myapp-instance",
	})
}

// NewSGPrefixFlag constructs the security-group name prefix flag.
func NewSGPrefixFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:  "sg-prefix",
		Usage: "security group name prefix used by the Terraform config",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("CARBONCTL_SG_PREFIX"),
		),
		Value: "myapp_sg_",
	})
}

// NewProfileFlag constructs the AWS shared-config profile flag. Empty means
// the ambient credential chain.
func NewProfileFlag(ns string) *cli.StringFlag {
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
		Name:    "profile",
		Aliases: []string{"p"},
		Usage:   "AWS shared config profile. Overrides the environment",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("CARBONCTL_PROFILE"),
		),
	})
}

// NameSpacedValueChainFlagFromConfigFile adds namespaced and global config file
// sources to the given flag's Sources chain.
func NameSpacedValueChainFlagFromConfigFile(ns string, path string, flag *cli.StringFlag) *cli.StringFlag {
	src := yaml.YAML(ns+"."+flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	src = yaml.YAML(flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	return flag
}

// pathHas checks if the given executable exists on PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}
