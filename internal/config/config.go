package config

import (
	"errors"
	"fmt"
	"os"

	"heimdall/internal/protocol"

	"gopkg.in/yaml.v3"
)

var ErrNoSymbols = errors.New("no symbols configured")

type Config struct {
	Protocol      string   `yaml:"protocol"`
	Input         string   `yaml:"input"`
	Listen        string   `yaml:"listen"` // serve the feed over TCP instead of reading input
	Symbols       []Symbol `yaml:"symbols"`
	PriceDecimals uint16   `yaml:"price_decimals"` // parity only
	Logging       Logging  `yaml:"logging"`
	Metrics       struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

type Symbol struct {
	Symbol    string `yaml:"symbol"`
	MaxOrders int    `yaml:"max_orders"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

const DefaultMaxOrders = 1 << 16

func Default() Config {
	var c Config
	c.Protocol = "nasdaq-binaryfile-itch50"
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Metrics.Addr = ""
	return c
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv("HEIMDALL_PROTOCOL"); v != "" {
		c.Protocol = v
	}
	if v := os.Getenv("HEIMDALL_INPUT"); v != "" {
		c.Input = v
	}
	if v := os.Getenv("HEIMDALL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("HEIMDALL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("HEIMDALL_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	for i := range c.Symbols {
		if c.Symbols[i].MaxOrders <= 0 {
			c.Symbols[i].MaxOrders = DefaultMaxOrders
		}
	}
	return c, nil
}

func (c Config) Validate() error {
	if _, err := protocol.ParseKind(c.Protocol); err != nil {
		return err
	}
	if len(c.Symbols) == 0 {
		return ErrNoSymbols
	}
	return nil
}
