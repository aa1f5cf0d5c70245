package config

import (
	"os"
	"strings"

	"github.com/benk79tb/keripy/kering"
	gotoml "github.com/pelletier/go-toml/v2"
)

// starters are the per-role node.toml seeds written by kerictl -init.
var starters = map[kering.Role]fileConfig{
	kering.RoleController: {
		Alias:       "controller",
		Role:        string(kering.RoleController),
		DBPath:      "controller.db",
		ListenAddr:  ":5631",
		CorsOrigins: []string{"http://localhost:3000"},
		Metrics:     "on",
		Endpoints: []endpointEntry{
			{Scheme: string(kering.SchemeHTTP), Host: "localhost", Port: 5631},
		},
	},
	kering.RoleWitness: {
		Alias:      "witness",
		Role:       string(kering.RoleWitness),
		DBPath:     "witness.db",
		ListenAddr: ":5632",
		Metrics:    "yes",
		Endpoints: []endpointEntry{
			{Scheme: string(kering.SchemeTCP), Host: "localhost", Port: 5632},
			{Scheme: string(kering.SchemeHTTP), Host: "localhost", Port: 5642},
		},
	},
}

// Template renders a starter node.toml for role.
func Template(role string) (string, error) {
	starter, ok := starters[kering.Role(strings.ToLower(strings.TrimSpace(role)))]
	if !ok {
		return "", kering.Newf(kering.ErrConfiguration, "no template for role %q", role)
	}
	out, err := gotoml.Marshal(starter)
	if err != nil {
		return "", kering.Wrap(kering.ErrConfiguration, err, "render template")
	}
	return string(out), nil
}

// WriteTemplate writes Template(role) to path, refusing to replace an
// existing file unless overwrite is set.
func WriteTemplate(path, role string, overwrite bool) error {
	rendered, err := Template(role)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return kering.Newf(kering.ErrConfiguration, "config already exists: %s", path)
		}
	}
	if err := os.WriteFile(path, []byte(rendered), 0o600); err != nil {
		return kering.Wrap(kering.ErrConfiguration, err, "write "+path)
	}
	return nil
}
