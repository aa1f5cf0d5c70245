package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/benk79tb/keripy/internal/auth"
	"github.com/benk79tb/keripy/kering"
)

// NodeConfig is the runtime configuration of one KERI node.
type NodeConfig struct {
	Alias          string
	Role           kering.Role
	DBPath         string
	ListenAddr     string
	CorsOrigins    []string
	MetricsEnabled bool
	AuthToken      string
	// SealKey opens sealed role tokens; empty disables them.
	SealKey   []byte
	Endpoints []Endpoint
}

// Endpoint is an advertised transport location for the node.
type Endpoint struct {
	Scheme kering.Scheme
	Host   string
	Port   int
}

// URL renders the endpoint as scheme://host:port.
func (e Endpoint) URL() string {
	return string(e.Scheme) + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// node.toml key mapping to NodeConfig.
type fileConfig struct {
	Alias       string          `toml:"alias"`
	Role        string          `toml:"role"`
	DBPath      string          `toml:"db_path"`
	ListenAddr  string          `toml:"listen_addr"`
	CorsOrigins []string        `toml:"cors_origins,omitempty"`
	Metrics     any             `toml:"metrics"`
	AuthToken   string          `toml:"auth_token,omitempty"`
	SealKey     string          `toml:"seal_key,omitempty"`
	Endpoints   []endpointEntry `toml:"endpoints"`
}

type endpointEntry struct {
	Scheme string `toml:"scheme"`
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
}

func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Alias:          "keri",
		Role:           kering.RoleController,
		DBPath:         "keri.db",
		ListenAddr:     ":5631",
		MetricsEnabled: true,
	}
}

// Load reads a node config from path, overlaying defined keys onto
// DefaultNodeConfig. Every failure is a ConfigurationError.
func Load(path string) (NodeConfig, error) {
	cfg := DefaultNodeConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NodeConfig{}, kering.Wrap(kering.ErrConfiguration, err, "config not found")
		}
		return NodeConfig{}, kering.Wrap(kering.ErrConfiguration, err, fmt.Sprintf("config parse failed (%s)", path))
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return NodeConfig{}, kering.Newf(kering.ErrConfiguration, "unknown config key %q", undecoded[0].String())
	}

	if meta.IsDefined("alias") {
		cfg.Alias = strings.TrimSpace(raw.Alias)
	}
	if meta.IsDefined("role") {
		cfg.Role = kering.Role(strings.TrimSpace(raw.Role))
	}
	if meta.IsDefined("db_path") {
		cfg.DBPath = strings.TrimSpace(raw.DBPath)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("metrics") {
		v, err := kering.ParseBool(raw.Metrics)
		if err != nil {
			return NodeConfig{}, fmt.Errorf("metrics: %w", err)
		}
		cfg.MetricsEnabled = v
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined("seal_key") {
		key, err := hex.DecodeString(strings.TrimSpace(raw.SealKey))
		if err != nil {
			return NodeConfig{}, kering.Wrap(kering.ErrConfiguration, err, "seal_key is not hex")
		}
		cfg.SealKey = key
	}
	for _, e := range raw.Endpoints {
		cfg.Endpoints = append(cfg.Endpoints, Endpoint{
			Scheme: kering.Scheme(strings.TrimSpace(e.Scheme)),
			Host:   strings.TrimSpace(e.Host),
			Port:   e.Port,
		})
	}

	if err := Validate(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

func Validate(cfg NodeConfig) error {
	if cfg.Alias == "" {
		return kering.New(kering.ErrConfiguration, "node config missing alias")
	}
	if !kering.IsRole(string(cfg.Role)) {
		return kering.Newf(kering.ErrConfiguration, "unknown role %q", cfg.Role)
	}
	if cfg.DBPath == "" {
		return kering.New(kering.ErrConfiguration, "node config missing db_path")
	}
	if cfg.ListenAddr == "" {
		return kering.New(kering.ErrConfiguration, "node config missing listen_addr")
	}
	if len(cfg.SealKey) != 0 && len(cfg.SealKey) != auth.KeySize {
		return kering.Newf(kering.ErrConfiguration, "seal_key must be %d bytes, got %d", auth.KeySize, len(cfg.SealKey))
	}
	for i, e := range cfg.Endpoints {
		if err := ValidateEndpoint(e); err != nil {
			return fmt.Errorf("endpoint[%d] invalid: %w", i, err)
		}
	}
	return nil
}

func ValidateEndpoint(e Endpoint) error {
	if !kering.IsScheme(string(e.Scheme)) {
		return kering.Newf(kering.ErrConfiguration, "unknown scheme %q", e.Scheme)
	}
	if e.Host == "" {
		return kering.New(kering.ErrConfiguration, "host is required")
	}
	if e.Port <= 0 || e.Port > 65535 {
		return kering.Newf(kering.ErrConfiguration, "port %d out of range", e.Port)
	}
	return nil
}
