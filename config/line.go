package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"hello-services/logging"
)

// Line configures line-server.
type Line struct {
	Address         string         `mapstructure:"address"`
	Port            int            `mapstructure:"port"`
	IdleTimeout     time.Duration  `mapstructure:"idle_timeout"`
	WriteTimeout    time.Duration  `mapstructure:"write_timeout"`
	MaxLines        int            `mapstructure:"max_lines"`
	MaxLineBytes    int            `mapstructure:"max_line_bytes"`
	AbortOnError    bool           `mapstructure:"abort_on_error"`
	AcceptRate      float64        `mapstructure:"accept_rate"`
	AcceptBurst     int            `mapstructure:"accept_burst"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	Log             logging.Config `mapstructure:"log"`
}

// LineFlags registers the line-server flags and their defaults.
func LineFlags(fs *pflag.FlagSet) {
	addConfigFlag(fs)
	fs.StringP("address", "a", "127.0.0.1", "IP address to listen on")
	fs.IntP("port", "p", 8080, "TCP port to listen on")
	fs.Duration("idle-timeout", 30*time.Second, "Close a connection idle this long while reading, 0 to wait forever")
	fs.Duration("write-timeout", 10*time.Second, "Deadline for writing the response")
	fs.Int("max-lines", 100, "Maximum request lines before the blank line")
	fs.Int("max-line-bytes", 8<<10, "Maximum length of a single line")
	fs.Bool("abort-on-error", false, "Stop the server on the first connection error")
	fs.Float64("accept-rate", 0, "Maximum accepted connections per second, 0 for no limit")
	fs.Int("accept-burst", 1, "Burst size of the accept limiter")
	fs.Duration("shutdown-timeout", 5*time.Second, "Time to wait for the active connection on shutdown")
	addLogFlags(fs)
}

// Addr is the listen address.
func (c *Line) Addr() string {
	return joinHostPort(c.Address, c.Port)
}

// Validate rejects values the server cannot start with.
func (c *Line) Validate() error {
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if c.IdleTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	if c.MaxLines < 1 || c.MaxLineBytes < 1 {
		return fmt.Errorf("config: max-lines and max-line-bytes must be positive")
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("config: negative accept rate %v", c.AcceptRate)
	}
	return nil
}
