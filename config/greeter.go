package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"hello-services/logging"
)

// Transports a greeter is served or called over.
const (
	TransportGRPC   = "grpc"
	TransportFramed = "framed"
)

// Registry configures optional etcd registration and discovery.
type Registry struct {
	Endpoints []string `mapstructure:"endpoints"`
	Prefix    string   `mapstructure:"prefix"`
	TTL       int64    `mapstructure:"ttl"`
	Advertise string   `mapstructure:"advertise"` // defaults to the listen address
	Weight    int      `mapstructure:"weight"`
}

// Enabled reports whether any etcd endpoint is configured.
func (r Registry) Enabled() bool {
	return len(r.Endpoints) > 0
}

// Greeter configures greeter-server.
type Greeter struct {
	Address         string         `mapstructure:"address"`
	Port            int            `mapstructure:"port"`
	Transport       string         `mapstructure:"transport"`
	RateLimit       float64        `mapstructure:"rate_limit"` // calls/s, 0 disables
	RateBurst       int            `mapstructure:"rate_burst"`
	RequestTimeout  time.Duration  `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	Registry        Registry       `mapstructure:"registry"`
	Log             logging.Config `mapstructure:"log"`
}

// GreeterFlags registers the greeter-server flags and their defaults.
func GreeterFlags(fs *pflag.FlagSet) {
	addConfigFlag(fs)
	fs.StringP("address", "a", "127.0.0.1", "IP address to listen on")
	fs.IntP("port", "p", 50051, "TCP port to listen on")
	fs.String("transport", TransportGRPC, "RPC transport: grpc or framed")
	fs.Float64("rate-limit", 0, "Maximum calls per second, 0 for no limit")
	fs.Int("rate-burst", 1, "Burst size of the rate limiter")
	fs.Duration("request-timeout", 5*time.Second, "Per-call timeout of the framed transport")
	fs.Duration("shutdown-timeout", 5*time.Second, "Time to wait for in-flight calls on shutdown")
	fs.StringSlice("registry-endpoints", nil, "etcd endpoints; registration is off when empty")
	fs.String("registry-prefix", "", "etcd key prefix")
	fs.Int64("registry-ttl", 10, "Registration lease TTL in seconds")
	fs.String("registry-advertise", "", "Address published in the registry (default: listen address)")
	fs.Int("registry-weight", 1, "Load balancing weight published in the registry")
	addLogFlags(fs)
}

// Addr is the listen address.
func (c *Greeter) Addr() string {
	return joinHostPort(c.Address, c.Port)
}

// AdvertiseAddr is the address clients should dial.
func (c *Greeter) AdvertiseAddr() string {
	if c.Registry.Advertise != "" {
		return c.Registry.Advertise
	}
	return c.Addr()
}

// Validate rejects values the server cannot start with.
func (c *Greeter) Validate() error {
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if c.Transport != TransportGRPC && c.Transport != TransportFramed {
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: negative rate limit %v", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("config: rate burst must be at least 1")
	}
	if c.Registry.Enabled() && c.Registry.TTL < 1 {
		return fmt.Errorf("config: registry ttl must be at least 1s")
	}
	return nil
}
