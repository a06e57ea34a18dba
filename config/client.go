package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"hello-services/logging"
)

// Client configures greeter-client.
type Client struct {
	Address   string         `mapstructure:"address"`
	Port      int            `mapstructure:"port"`
	Transport string         `mapstructure:"transport"`
	Codec     string         `mapstructure:"codec"` // framed transport only
	Name      string         `mapstructure:"name"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	Balancer  string         `mapstructure:"balancer"`
	Registry  Registry       `mapstructure:"registry"`
	Log       logging.Config `mapstructure:"log"`
}

// ClientFlags registers the greeter-client flags and their defaults.
func ClientFlags(fs *pflag.FlagSet) {
	addConfigFlag(fs)
	fs.StringP("address", "a", "127.0.0.1", "Server IP address")
	fs.IntP("port", "p", 50051, "Server TCP port")
	fs.String("transport", TransportGRPC, "RPC transport: grpc or framed")
	fs.String("codec", "json", "Envelope codec of the framed transport: json or binary")
	fs.StringP("name", "n", "world", "Name to greet")
	fs.Duration("timeout", 2*time.Second, "Call timeout")
	fs.String("balancer", "round_robin", "Instance selection with a registry: round_robin or weighted_random")
	fs.StringSlice("registry-endpoints", nil, "etcd endpoints; discover the server instead of dialing address:port")
	fs.String("registry-prefix", "", "etcd key prefix")
	addLogFlags(fs)
}

// Addr is the server address used without a registry.
func (c *Client) Addr() string {
	return joinHostPort(c.Address, c.Port)
}

// Validate rejects values the client cannot use.
func (c *Client) Validate() error {
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if c.Transport != TransportGRPC && c.Transport != TransportFramed {
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive")
	}
	return nil
}
