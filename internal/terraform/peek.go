// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package terraform

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/apex/log"
)

// BackendType peeks at .terraform/terraform.tfstate for the configured
// backend type. A missing file means the directory has never been
// initialized, which is treated as the implicit local backend rather than an
// error so first-time deployments proceed.
func BackendType(dir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ".terraform", "terraform.tfstate"))
	if err != nil {
		if os.IsNotExist(err) {
			return "local", nil
		}
		return "", err
	}

	var peeker map[string]json.RawMessage
	if err := json.Unmarshal(raw, &peeker); err != nil {
		return "", fmt.Errorf("Can't peek: %w", err)
	}

	if err := json.Unmarshal(peeker["backend"], &peeker); err != nil {
		return "", fmt.Errorf("Can't peek: %w", err)
	}

	var typ string
	if err := json.Unmarshal(peeker["type"], &typ); err != nil {
		return "", fmt.Errorf("Can't peek: %w", err)
	}
	log.Debugf("backend type: %s", typ)

	return typ, nil
}

// Preflight validates the deployment environment before anything is touched:
// the terraform binary must be on PATH, the backend descriptor must be
// peekable, and an existing state file, if any, must at least parse as JSON.
func Preflight(dir string) error {
	if _, err := exec.LookPath("terraform"); err != nil {
		return fmt.Errorf("terraform not found on PATH: %w", err)
	}
	if err := checkBackend(dir); err != nil {
		return err
	}
	return checkStateFile(dir)
}

// checkBackend peeks at the configured backend. State itself is opaque and
// externally owned, so a non-local backend only draws a warning; the peek
// failing outright means the working directory is damaged.
func checkBackend(dir string) error {
	typ, err := BackendType(dir)
	if err != nil {
		return fmt.Errorf("failed to determine backend type: %w", err)
	}
	if typ != "local" {
		log.Warnf("state is held in a %s backend; apply will go through it", typ)
	}
	return nil
}

// checkStateFile allows a missing state file (first-time deployment) but
// rejects one that doesn't parse, since apply would clobber it.
func checkStateFile(dir string) error {
	path := filepath.Join(dir, "terraform.tfstate")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("no terraform state file; assuming first deployment")
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid terraform state file %s: %w", path, err)
	}
	return nil
}
