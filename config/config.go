package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/DrmagicE/coremqtt/plugin/prometheus"
)

// DefaultConfig return the default configuration.
// If config file is not provided, mqttprop will run with DefaultConfig.
// Command-line flags will override the configuration.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		MQTT:       DefaultMQTTConfig,
		Prometheus: prometheus.DefaultConfig,
	}
}

// LogConfig is use to configure the log behaviors.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the configuration for mqttprop.
type Config struct {
	Log        LogConfig         `yaml:"log"`
	MQTT       MQTT              `yaml:"mqtt"`
	Prometheus prometheus.Config `yaml:"prometheus"`
}

func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type config Config
	raw := config(DefaultConfig())
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if raw.Log.Level == "" {
		raw.Log.Level = "info"
	}
	*c = Config(raw)
	return nil
}

func (c Config) Validate() error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if c.Prometheus.Enable {
		return c.Prometheus.Validate()
	}
	return nil
}

func ParseConfig(filePath string) (c Config, err error) {
	if filePath == "" {
		return DefaultConfig(), nil
	}
	b, err := ioutil.ReadFile(filePath)
	if err != nil {
		return c, err
	}
	c = DefaultConfig()
	err = yaml.Unmarshal(b, &c)
	if err != nil {
		return c, errors.Wrapf(err, "parse %s", filePath)
	}
	err = c.Validate()
	if err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) GetLogger(config LogConfig) (l *zap.Logger, err error) {
	var logLevel zapcore.Level
	err = logLevel.UnmarshalText([]byte(config.Level))
	if err != nil {
		return
	}

	lc := zap.NewDevelopmentConfig()
	lc.Level = zap.NewAtomicLevelAt(logLevel)
	return lc.Build()
}
