// Package registry publishes and discovers service instances.
package registry

import (
	"context"
	"path"
)

// DefaultPrefix is the root under which instances are stored.
const DefaultPrefix = "/hello-services"

// ServiceInstance is one published server.
type ServiceInstance struct {
	Addr      string `json:"addr"`
	Weight    int    `json:"weight"`    // load balancing weight, >= 1
	Version   string `json:"version"`
	Transport string `json:"transport"` // "grpc" or "framed"
}

// Registry publishes and finds ServiceInstances by service name.
type Registry interface {
	// Register publishes instance under serviceName for ttl seconds and keeps
	// the entry alive until Deregister or Close.
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	// Watch emits the full instance list after every change until ctx is done.
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
	Close() error
}

func serviceKey(prefix, serviceName string) string {
	return path.Join(prefix, serviceName) + "/"
}

func instanceKey(prefix, serviceName, addr string) string {
	return serviceKey(prefix, serviceName) + addr
}
