// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tomtom215/stacksnap/internal/validation"
)

// Validate checks struct constraints and then cross-field rules.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateTriplestore(); err != nil {
		return err
	}
	return c.validateAudit()
}

// validateStorage requires absolute roots and a relative snapshot subpath.
func (c *Config) validateStorage() error {
	s := c.Storage
	for name, path := range map[string]string{
		"PRIVATE_ROOT":           s.PrivateRoot,
		"PUBLIC_ROOT":            s.PublicRoot,
		"TEMPORARY_ROOT":         s.TemporaryRoot,
		"HOST_PRIVATE_ROOT":      s.HostPrivateRoot,
		"CONTAINER_PRIVATE_ROOT": s.ContainerPrivateRoot,
	} {
		if path != "" && !filepath.IsAbs(path) {
			return fmt.Errorf("%s must be an absolute path, got %q", name, path)
		}
	}

	sub := filepath.Clean(s.SnapshotSubpath)
	if filepath.IsAbs(sub) || sub == "." || strings.HasPrefix(sub, "..") {
		return fmt.Errorf("SNAPSHOT_SUBPATH must be a relative path below PRIVATE_ROOT, got %q", s.SnapshotSubpath)
	}
	return nil
}

// validateTriplestore requires both credentials or neither.
func (c *Config) validateTriplestore() error {
	t := c.Triplestore
	if (t.Username == "") != (t.Password == "") {
		return fmt.Errorf("TRIPLESTORE_USERNAME and TRIPLESTORE_PASSWORD must be set together")
	}
	if t.Username != "" && t.URL == "" {
		return fmt.Errorf("TRIPLESTORE_URL is required when triple store credentials are set")
	}
	return nil
}

// validateAudit compiles every placeholder pattern.
func (c *Config) validateAudit() error {
	for _, p := range c.Audit.PseudoPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("AUDIT_PSEUDO_PATTERNS entry %q is invalid: %w", p, err)
		}
	}
	return nil
}
