// Package config loads the YAML configuration shared by the CLI and the HTTP service.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talentlayer/talentlayer-go/networks"
)

// Defaults
const (
	DefaultNetwork     = int(networks.Polygon)
	DefaultListen      = ":8080"
	DefaultNATSSubject = "talentlayer.escrow"
	DefaultLogLevel    = "info"
)

// Config is the file layout.
type Config struct {
	Network       int                  `yaml:"network"`
	RPCURL        string               `yaml:"rpcUrl"`
	SubgraphURL   string               `yaml:"subgraphUrl,omitempty"`
	SubgraphKey   string               `yaml:"subgraphApiKey,omitempty"`
	PlatformID    string               `yaml:"platformId,omitempty"`
	LogLevel      string               `yaml:"logLevel,omitempty"`
	IPFS          IPFSConfig           `yaml:"ipfs"`
	HTTP          HTTPConfig           `yaml:"http"`
	NATS          NATSConfig           `yaml:"nats"`
	CustomNetwork *CustomNetworkConfig `yaml:"customNetwork,omitempty"`
}

// IPFSConfig configures the content store.
type IPFSConfig struct {
	URL       string `yaml:"url,omitempty"`
	ProjectID string `yaml:"projectId,omitempty"`
	Secret    string `yaml:"secret,omitempty"`
}

// HTTPConfig configures the HTTP service.
type HTTPConfig struct {
	Listen       string        `yaml:"listen,omitempty"`
	JWTSecret    string        `yaml:"jwtSecret,omitempty"`
	ReadTimeout  time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty"`
}

// NATSConfig configures lifecycle event publishing. An empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// CustomNetworkConfig describes a deployment outside the built-in registry.
// When present it replaces the registry entry entirely.
type CustomNetworkConfig struct {
	Name        string            `yaml:"name"`
	SubgraphURL string            `yaml:"subgraphUrl"`
	Contracts   map[string]string `yaml:"contracts"`
	Escrow      struct {
		AdminFee       string `yaml:"adminFee"`
		AdminWallet    string `yaml:"adminWallet"`
		TimeoutPayment uint64 `yaml:"timeoutPayment"`
	} `yaml:"escrow"`
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig is a token entry of a custom network.
type TokenConfig struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals int    `yaml:"decimals"`
}

// Default returns a configuration with defaults applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Network == 0 {
		c.Network = DefaultNetwork
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = DefaultListen
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = DefaultNATSSubject
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.CustomNetwork == nil && !networks.IsSupported(networks.NetworkID(c.Network)) {
		errs = append(errs, fmt.Errorf("network %d is not supported; configure customNetwork to use it", c.Network))
	}
	if c.CustomNetwork != nil {
		if _, err := c.CustomNetwork.ToNetworkConfig(networks.NetworkID(c.Network)); err != nil {
			errs = append(errs, err)
		}
	}
	if c.PlatformID != "" {
		if _, ok := new(big.Int).SetString(c.PlatformID, 10); !ok {
			errs = append(errs, fmt.Errorf("platformId must be a decimal integer, got %q", c.PlatformID))
		}
	}
	return errors.Join(errs...)
}

// NetworkID returns the configured network id.
func (c *Config) NetworkID() networks.NetworkID {
	return networks.NetworkID(c.Network)
}

// NetworkOverride returns the custom network as a registry override, or nil.
func (c *Config) NetworkOverride() (*networks.NetworkConfig, error) {
	if c.CustomNetwork == nil {
		return nil, nil
	}
	cfg, err := c.CustomNetwork.ToNetworkConfig(c.NetworkID())
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveSubgraphURL returns the explicit subgraph url or the network default.
func (c *Config) ResolveSubgraphURL() (string, error) {
	if c.SubgraphURL != "" {
		return c.SubgraphURL, nil
	}
	override, err := c.NetworkOverride()
	if err != nil {
		return "", err
	}
	cfg, err := networks.NewResolver(override).Resolve(c.NetworkID())
	if err != nil {
		return "", err
	}
	return cfg.SubgraphURL, nil
}

// ToNetworkConfig converts the custom network to a registry entry for id.
func (n *CustomNetworkConfig) ToNetworkConfig(id networks.NetworkID) (networks.NetworkConfig, error) {
	out := networks.NetworkConfig{
		ID:          id,
		Name:        n.Name,
		SubgraphURL: n.SubgraphURL,
		Contracts:   make(map[networks.ContractName]networks.ContractInfo, len(n.Contracts)),
		Tokens:      make(map[string]networks.TokenInfo, len(n.Tokens)+1),
		Escrow: networks.EscrowConfig{
			AdminFee:       big.NewInt(0),
			AdminWallet:    n.Escrow.AdminWallet,
			TimeoutPayment: n.Escrow.TimeoutPayment,
		},
	}
	if out.Escrow.TimeoutPayment == 0 {
		out.Escrow.TimeoutPayment = networks.DefaultTimeoutPayment
	}
	if fee := strings.TrimSpace(n.Escrow.AdminFee); fee != "" {
		v, ok := new(big.Int).SetString(fee, 10)
		if !ok || v.Sign() < 0 {
			return networks.NetworkConfig{}, fmt.Errorf("customNetwork.escrow.adminFee is not a non-negative integer: %q", fee)
		}
		out.Escrow.AdminFee = v
	}

	for name, addr := range n.Contracts {
		if !networks.IsValidAddress(addr) {
			return networks.NetworkConfig{}, fmt.Errorf("customNetwork.contracts.%s is not an address: %q", name, addr)
		}
		contract := networks.ContractName(name)
		out.Contracts[contract] = networks.ContractInfo{
			Address: networks.NormalizeAddress(addr),
			ABI:     networks.StandardABI(contract),
		}
	}
	if _, ok := out.Contracts[networks.TalentLayerEscrow]; !ok {
		return networks.NetworkConfig{}, fmt.Errorf("customNetwork.contracts must include %s", networks.TalentLayerEscrow)
	}

	out.Tokens[networks.NativeTokenAddress] = networks.TokenInfo{
		Address: networks.NativeTokenAddress, Symbol: "ETH", Name: "Ether", Decimals: 18,
	}
	for _, t := range n.Tokens {
		if !networks.IsValidAddress(t.Address) {
			return networks.NetworkConfig{}, fmt.Errorf("customNetwork token %s has an invalid address %q", t.Symbol, t.Address)
		}
		out.Tokens[networks.NormalizeAddress(t.Address)] = networks.TokenInfo{
			Address:  t.Address,
			Symbol:   t.Symbol,
			Name:     t.Name,
			Decimals: t.Decimals,
		}
	}
	return out, nil
}
