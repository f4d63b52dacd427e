package prometheus

import (
	"net"

	"github.com/pkg/errors"
)

// Config is the configuration for the prometheus exporter.
type Config struct {
	// Enable enables the exporter.
	Enable bool `yaml:"enable"`
	// ListenAddress is the address that the exporter will listen on.
	ListenAddress string `yaml:"listen_address"`
	// Path is the exporter url path.
	Path string `yaml:"path"`
}

// Validate validates the configuration, and return an error if it is invalid.
func (c *Config) Validate() error {
	_, _, err := net.SplitHostPort(c.ListenAddress)
	if err != nil {
		return errors.Wrap(err, "invalid listen_address")
	}
	if len(c.Path) == 0 || c.Path[0] != '/' {
		return errors.Errorf("invalid path %q", c.Path)
	}
	return nil
}

// DefaultConfig is the default configuration.
var DefaultConfig = Config{
	ListenAddress: ":8082",
	Path:          "/metrics",
}

func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type cfg Config
	v := cfg(DefaultConfig)
	if err := unmarshal(&v); err != nil {
		return err
	}
	if v.ListenAddress == "" {
		v.ListenAddress = DefaultConfig.ListenAddress
	}
	if v.Path == "" {
		v.Path = DefaultConfig.Path
	}
	*c = Config(v)
	return nil
}
