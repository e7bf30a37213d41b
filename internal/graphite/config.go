// Package graphite pushes collected metrics to a Graphite-compatible
// endpoint using the plaintext line protocol.
package graphite

import (
	"errors"
	"fmt"
	"time"
)

// DefaultDialTimeout is the default timeout for establishing the connection.
const DefaultDialTimeout = 10 * time.Second

// DefaultWriteTimeout is the default deadline for writing one batch.
const DefaultWriteTimeout = 10 * time.Second

// Config holds the configuration for the Sink.
type Config struct {
	// Address is the Graphite plaintext listener, host:port (required).
	Address string `yaml:"address"`

	// Network selects the address family: "tcp" (default), "tcp4" or "tcp6".
	Network string `yaml:"network"`

	// Prefix is prepended to every line name, e.g. "taskhive.".
	Prefix string `yaml:"prefix"`

	// DialTimeout is the maximum time to establish the connection.
	// Default: 10s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// WriteTimeout is the maximum time to write one batch.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Network == "" {
		c.Network = "tcp"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("graphite: config: Address is required")
	}
	switch c.Network {
	case "tcp", "tcp4", "tcp6":
	default:
		return fmt.Errorf("graphite: config: invalid network %q (must be \"tcp\", \"tcp4\" or \"tcp6\")", c.Network)
	}
	return nil
}
