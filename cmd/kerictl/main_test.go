package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/benk79tb/keripy/internal/auth"
	"github.com/benk79tb/keripy/internal/config"
	"github.com/benk79tb/keripy/kering"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.configPath != "node.toml" || opts.initRole != "" || opts.escrowInterval <= 0 {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestParseFlagsRejectsBadInput(t *testing.T) {
	if _, err := parseFlags([]string{"-escrow-interval", "0s"}); !errors.Is(err, kering.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := parseFlags([]string{"-init", "witness", "-issue", "watcher"}); !errors.Is(err, kering.ErrConfiguration) {
		t.Fatalf("expected configuration error for -init with -issue, got %v", err)
	}
	if _, err := parseFlags([]string{"-nope"}); !errors.Is(err, kering.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown flag, got %v", err)
	}
}

func TestRunInitWritesLoadableTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	if err := run([]string{"-config", path, "-init", "witness"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Role != kering.RoleWitness {
		t.Fatalf("unexpected role %q", cfg.Role)
	}

	if err := run([]string{"-config", path, "-init", "witness"}); !errors.Is(err, kering.ErrConfiguration) {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
	if err := run([]string{"-config", path, "-init", "witness", "-force"}); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}

func TestRunMissingConfig(t *testing.T) {
	err := run([]string{"-config", filepath.Join(t.TempDir(), "absent.toml")})
	if !errors.Is(err, kering.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestIssueSealsRoleToken(t *testing.T) {
	cfg := config.DefaultNodeConfig()
	cfg.SealKey = bytes.Repeat([]byte{5}, auth.KeySize)

	var out bytes.Buffer
	if err := issue(cfg, "watcher", &out); err != nil {
		t.Fatalf("issue: %v", err)
	}
	sealer, _ := auth.NewSealer(cfg.SealKey)
	role, err := sealer.Authenticate(string(bytes.TrimSpace(out.Bytes())))
	if err != nil || role != kering.RoleWatcher {
		t.Fatalf("issued token opens as %q %v", role, err)
	}

	if err := issue(cfg, "admin", &out); !errors.Is(err, kering.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown role, got %v", err)
	}
	cfg.SealKey = nil
	if err := issue(cfg, "watcher", &out); !errors.Is(err, kering.ErrConfiguration) {
		t.Fatalf("expected configuration error without seal key, got %v", err)
	}
}
