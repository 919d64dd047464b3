// Package config loads the daemon and CLI configuration from file and
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jfarrand/diskwright/pkg/backend"
)

// Config is the resolved configuration.
type Config struct {
	Server  Server  `mapstructure:"server"`
	Journal Journal `mapstructure:"journal"`
	LVM     LVM     `mapstructure:"lvm"`

	// Backends names the backends to load and optional tool path
	// overrides. Empty means best-effort loading of every known kind.
	Backends []BackendSpec `mapstructure:"backends"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Journal configures the invocation journal.
type Journal struct {
	Path string `mapstructure:"path"`
}

// LVM carries LVM-specific settings.
type LVM struct {
	// GlobalConfig is passed as --config to every lvm invocation.
	GlobalConfig string `mapstructure:"global_config"`
}

// BackendSpec selects one backend and optionally pins its tool.
type BackendSpec struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
}

// Specs converts the configured backend list to registry specs.
func (c *Config) Specs() []backend.Spec {
	specs := make([]backend.Spec, 0, len(c.Backends))
	for _, b := range c.Backends {
		specs = append(specs, backend.Spec{Kind: backend.Kind(b.Kind), Path: b.Path})
	}
	return specs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8420")
	v.SetDefault("journal.path", "diskwright.db")
	v.SetDefault("lvm.global_config", "")
}

// Load reads configuration from path, falling back to diskwright.yaml in
// the working directory and /etc/diskwright when path is empty. Environment
// variables prefixed with DISKWRIGHT_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DISKWRIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("diskwright")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/diskwright")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for _, b := range cfg.Backends {
		if !backend.Kind(b.Kind).Valid() {
			return nil, fmt.Errorf("config: unknown backend kind %q", b.Kind)
		}
	}
	return &cfg, nil
}
