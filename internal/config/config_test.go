package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benk79tb/keripy/kering"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
alias = "wan"
role = "witness"
metrics = "off"

[[endpoints]]
scheme = "tcp"
host = "127.0.0.1"
port = 5632
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Alias != "wan" || cfg.Role != kering.RoleWitness {
		t.Fatalf("unexpected identity: %+v", cfg)
	}
	if cfg.MetricsEnabled {
		t.Fatalf("metrics should be disabled by %q", "off")
	}
	if cfg.ListenAddr != ":5631" || cfg.DBPath != "keri.db" {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0].URL() != "tcp://127.0.0.1:5632" {
		t.Fatalf("unexpected endpoints: %+v", cfg.Endpoints)
	}
}

func TestLoadBooleanLiteralForms(t *testing.T) {
	cases := []struct {
		literal string
		want    bool
	}{
		{`true`, true},
		{`1`, true},
		{`"?1"`, true},
		{`"no"`, false},
		{`0`, false},
	}
	for _, tc := range cases {
		cfg, err := Load(writeConfig(t, "metrics = "+tc.literal+"\n"))
		if err != nil {
			t.Fatalf("%s: %v", tc.literal, err)
		}
		if cfg.MetricsEnabled != tc.want {
			t.Fatalf("%s: got %v", tc.literal, cfg.MetricsEnabled)
		}
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"role":    `role = "admin"`,
		"scheme":  "[[endpoints]]\nscheme = \"ftp\"\nhost = \"h\"\nport = 21\n",
		"port":    "[[endpoints]]\nscheme = \"http\"\nhost = \"h\"\nport = 0\n",
		"metrics": `metrics = "maybe"`,
		"alias":   `alias = "  "`,
		"unknown": `colour = "blue"`,
		"syntax":  `alias = `,
		"sealhex": `seal_key = "not-hex"`,
		"sealkey": `seal_key = "abcd"`,
	}
	for name, content := range cases {
		_, err := Load(writeConfig(t, content+"\n"))
		if !errors.Is(err, kering.ErrConfiguration) {
			t.Fatalf("%s: expected ConfigurationError, got %v", name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, kering.ErrConfiguration) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected configuration error wrapping not-exist, got %v", err)
	}
}

func TestTemplatesLoad(t *testing.T) {
	for _, role := range []string{"controller", "witness"} {
		path := filepath.Join(t.TempDir(), role+".toml")
		if err := WriteTemplate(path, role, false); err != nil {
			t.Fatalf("write %s template: %v", role, err)
		}
		if err := WriteTemplate(path, role, false); err == nil {
			t.Fatalf("expected refusal to overwrite")
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load %s template: %v", role, err)
		}
		if string(cfg.Role) != role {
			t.Fatalf("template role=%q want %q", cfg.Role, role)
		}
		if !cfg.MetricsEnabled || len(cfg.Endpoints) == 0 {
			t.Fatalf("%s template lost fields: %+v", role, cfg)
		}
	}
	if _, err := Template("judge"); !errors.Is(err, kering.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing template, got %v", err)
	}
}

func TestLoadSealKey(t *testing.T) {
	key := strings.Repeat("ab", 32)
	cfg, err := Load(writeConfig(t, "seal_key = \""+key+"\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.SealKey) != 32 || cfg.SealKey[0] != 0xab {
		t.Fatalf("unexpected seal key %x", cfg.SealKey)
	}
}
