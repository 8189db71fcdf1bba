// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package terraform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
)

// ErrNoOutput is returned when a requested Terraform output is absent.
var ErrNoOutput = errors.New("terraform output not found")

// Runner drives the terraform binary in a fixed working directory. The state
// it manages is opaque and externally owned; carbonctl only feeds variables
// in and reads outputs back.
type Runner struct {
	// Dir is the Terraform working directory.
	Dir string
	// LogPath receives apply output. Empty means Dir/logs/terraform.log.
	LogPath string
}

// NewRunner returns a Runner for the given Terraform directory.
func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir}
}

// Init runs `terraform init -upgrade -no-color`. Output is discarded; init
// chatter is not worth keeping and failures surface through the exit code.
func (r *Runner) Init(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "terraform", "init", "-upgrade", "-no-color")
	cmd.Dir = r.Dir
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("terraform init failed: %w", err)
	}
	return nil
}

// Apply runs `terraform apply -compact-warnings -auto-approve -no-color`,
// appending output to the log file.
func (r *Runner) Apply(ctx context.Context) error {
	logFile, err := r.openLog()
	if err != nil {
		return err
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, "terraform",
		"apply", "-compact-warnings", "-auto-approve", "-no-color")
	cmd.Dir = r.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("terraform apply failed (see %s): %w", logFile.Name(), err)
	}
	return nil
}

// Output returns a single output value via `terraform output -json`.
func (r *Runner) Output(ctx context.Context, name string) (string, error) {
	cmd := exec.CommandContext(ctx, "terraform", "output", "-json")
	cmd.Dir = r.Dir
	doc, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("terraform output failed: %w", err)
	}
	return parseOutput(doc, name)
}

func parseOutput(doc []byte, name string) (string, error) {
	value := gjson.GetBytes(doc, name+".value")
	if !value.Exists() || value.String() == "" {
		return "", fmt.Errorf("%w: %s", ErrNoOutput, name)
	}
	return value.String(), nil
}

func (r *Runner) openLog() (*os.File, error) {
	path := r.LogPath
	if path == "" {
		path = filepath.Join(r.Dir, "logs", "terraform.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:mnd
	if err != nil {
		return nil, fmt.Errorf("failed to open terraform log: %w", err)
	}
	log.Debugf("terraform log: %s", path)
	return f, nil
}
