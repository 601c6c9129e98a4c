// Package networks is the static registry of chains, contracts and tokens the TalentLayer
// protocol is deployed on.
package networks

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnsupportedNetwork is returned when a network id is not in the registry.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrMissingDeployment is returned when a contract is requested on a network
	// that has no contract addresses configured.
	ErrMissingDeployment = errors.New("network has no contract deployment configured")
)

// UnsupportedNetworkError reports a lookup of an unknown network id.
type UnsupportedNetworkError struct {
	ID NetworkID
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("unsupported network: %d", e.ID)
}

func (e *UnsupportedNetworkError) Is(target error) bool {
	return target == ErrUnsupportedNetwork
}

// MissingContractError reports a contract absent from a network configuration.
type MissingContractError struct {
	Network NetworkID
	Name    ContractName
}

func (e *MissingContractError) Error() string {
	return fmt.Sprintf("contract %s is not configured on network %d", e.Name, e.Network)
}

// MissingDeploymentError reports a contract requested on a network without a deployment.
// Supply the addresses through NewResolver to use such a network for writes.
type MissingDeploymentError struct {
	Network  NetworkID
	Name     string
	Contract ContractName
}

func (e *MissingDeploymentError) Error() string {
	return fmt.Sprintf("network %d (%s) has no %s deployment configured; supply the contract addresses as a custom network",
		e.Network, e.Name, e.Contract)
}

func (e *MissingDeploymentError) Is(target error) bool {
	return target == ErrMissingDeployment
}

// Lookup returns a copy of the configuration registered for id.
func Lookup(id NetworkID) (NetworkConfig, error) {
	cfg, ok := networkConfigs[id]
	if !ok {
		return NetworkConfig{}, &UnsupportedNetworkError{ID: id}
	}
	return cfg.clone(), nil
}

// Supported returns the registered network ids in ascending order.
func Supported() []NetworkID {
	ids := make([]NetworkID, 0, len(networkConfigs))
	for id := range networkConfigs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsSupported reports whether id is registered.
func IsSupported(id NetworkID) bool {
	_, ok := networkConfigs[id]
	return ok
}

// Resolver resolves network configurations, preferring a caller-supplied
// override over the static registry.
type Resolver struct {
	override *NetworkConfig
}

// NewResolver creates a resolver. A nil override resolves from the registry only.
func NewResolver(override *NetworkConfig) *Resolver {
	r := &Resolver{}
	if override != nil {
		cfg := override.clone()
		r.override = &cfg
	}
	return r
}

// Resolve returns the override verbatim when one was supplied, otherwise the
// registered configuration for id.
func (r *Resolver) Resolve(id NetworkID) (NetworkConfig, error) {
	if r != nil && r.override != nil {
		return r.override.clone(), nil
	}
	return Lookup(id)
}
