// Package loadbalance picks one greeter instance out of those found in the
// registry.
package loadbalance

import (
	"errors"
	"fmt"

	"hello-services/registry"
)

// ErrNoInstances is returned by Pick for an empty list.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer selects a target before each call. Implementations are safe for
// concurrent use.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

// New returns the balancer registered under name ("round_robin", "weighted_random").
func New(name string) (Balancer, error) {
	switch name {
	case "", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	default:
		return nil, fmt.Errorf("loadbalance: unknown strategy %q", name)
	}
}
