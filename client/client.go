// Package client calls framed RPC services, either at a fixed address or at
// instances discovered through a registry.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hello-services/codec"
	"hello-services/loadbalance"
	"hello-services/registry"
	"hello-services/transport"
)

// Options configure a Client. The zero value is usable.
type Options struct {
	Codec       codec.CodecType // envelope codec, JSON by default
	PoolSize    int           // connections per instance, default 1
	Heartbeat   time.Duration // 0 disables heartbeats
	DialTimeout time.Duration // default 5s
	// Transport, when set, skips discovered instances advertising another
	// transport. Instances without one are kept.
	Transport string
}

type resolveFunc func(ctx context.Context, serviceName string) ([]registry.ServiceInstance, error)

// Client calls framed services. It is safe for concurrent use.
type Client struct {
	resolve  resolveFunc
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	balancer loadbalance.Balancer
	opts     Options

	mu     sync.Mutex
	pools  map[string]*pool // addr -> connections
	closed bool
}

type pool struct {
	next       atomic.Uint32
	transports []*transport.ClientTransport
}

// NewClient resolves services through reg and spreads calls with bal.
func NewClient(reg registry.Registry, bal loadbalance.Balancer, opts Options) *Client {
	return newClient(reg.Discover, bal, opts)
}

// Dial returns a client that sends every call to addr.
func Dial(addr string, opts Options) *Client {
	static := []registry.ServiceInstance{{Addr: addr, Weight: 1}}
	return newClient(func(context.Context, string) ([]registry.ServiceInstance, error) {
		return static, nil
	}, &loadbalance.RoundRobinBalancer{}, opts)
}

func newClient(resolve resolveFunc, bal loadbalance.Balancer, opts Options) *Client {
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	d := &net.Dialer{Timeout: opts.DialTimeout}
	return &Client{
		resolve:  resolve,
		dial:     d.DialContext,
		balancer: bal,
		opts:     opts,
		pools:    make(map[string]*pool),
	}
}

// Call invokes serviceMethod ("Service.Method") and decodes the result into reply.
func (c *Client) Call(ctx context.Context, serviceMethod string, args, reply any) error {
	serviceName, _, ok := strings.Cut(serviceMethod, ".")
	if !ok {
		return fmt.Errorf("client: invalid service method %q", serviceMethod)
	}

	instances, err := c.resolve(ctx, serviceName)
	if err != nil {
		return err
	}
	if c.opts.Transport != "" {
		instances = filterTransport(instances, c.opts.Transport)
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return fmt.Errorf("client: %s: %w", serviceName, err)
	}

	t, err := c.getTransport(ctx, instance.Addr)
	if err != nil {
		return err
	}
	return t.Call(ctx, serviceMethod, args, reply)
}

func filterTransport(instances []registry.ServiceInstance, want string) []registry.ServiceInstance {
	kept := make([]registry.ServiceInstance, 0, len(instances))
	for _, in := range instances {
		if in.Transport == "" || in.Transport == want {
			kept = append(kept, in)
		}
	}
	return kept
}

// getTransport returns a live connection to addr, dialing the pool on first
// use and replacing connections that have died. Dials run without c.mu.
func (c *Client) getTransport(ctx context.Context, addr string) (*transport.ClientTransport, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, transport.ErrClosed
	}
	p, ok := c.pools[addr]
	if !ok {
		p = &pool{transports: make([]*transport.ClientTransport, c.opts.PoolSize)}
		c.pools[addr] = p
	}
	i := int(p.next.Add(1)-1) % len(p.transports)
	if t := p.transports[i]; alive(t) {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	fresh := transport.NewClientTransport(conn, c.opts.Codec, c.opts.Heartbeat)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		fresh.Close()
		return nil, transport.ErrClosed
	}
	// a concurrent caller may have filled the slot first
	if t := p.transports[i]; alive(t) {
		fresh.Close()
		return t, nil
	}
	p.transports[i] = fresh
	return fresh, nil
}

func alive(t *transport.ClientTransport) bool {
	if t == nil {
		return false
	}
	select {
	case <-t.Done():
		return false
	default:
		return true
	}
}

// Close closes every pooled connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("client: already closed")
	}
	c.closed = true
	for _, p := range c.pools {
		for _, t := range p.transports {
			if t != nil {
				t.Close()
			}
		}
	}
	return nil
}
