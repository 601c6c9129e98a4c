package talentlayer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/talentlayer/talentlayer-go/networks"
)

// Client orchestrates TalentLayer escrow operations on one network.
// Reads go through the subgraph, writes through the ledger client.
type Client struct {
	mu sync.RWMutex

	networkID  networks.NetworkID
	resolver   *networks.Resolver
	ledger     LedgerClient
	graph      GraphClient
	platformID string
	logger     *logrus.Logger

	newAttemptID func() string
	now          func() time.Time

	beforeHooks  []BeforeOperationHook
	afterHooks   []AfterOperationHook
	failureHooks []OnOperationFailureHook
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithLedger sets the ledger client used for contract reads and writes.
// Without one the client is read-only.
func WithLedger(ledger LedgerClient) ClientOption {
	return func(c *Client) {
		c.ledger = ledger
	}
}

// WithCustomNetwork replaces the registry entry with cfg, verbatim.
func WithCustomNetwork(cfg *networks.NetworkConfig) ClientOption {
	return func(c *Client) {
		c.resolver = networks.NewResolver(cfg)
	}
}

// WithPlatformID sets the platform id used when a call does not name one.
func WithPlatformID(platformID string) ClientOption {
	return func(c *Client) {
		c.platformID = platformID
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAttemptIDGenerator overrides how attempt ids are generated.
func WithAttemptIDGenerator(fn func() string) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.newAttemptID = fn
		}
	}
}

// NewClient creates a client for networkID reading from graph.
//
// Returns:
//   - invalid_argument when graph is nil
//   - unsupported_network when networkID is neither registered nor overridden
func NewClient(networkID networks.NetworkID, graph GraphClient, opts ...ClientOption) (*Client, error) {
	c := &Client{
		networkID:    networkID,
		resolver:     networks.NewResolver(nil),
		graph:        graph,
		logger:       defaultLogger(),
		newAttemptID: func() string { return uuid.NewString() },
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.graph == nil {
		return nil, NewError(ErrCodeInvalidArgument, "a graph client is required", nil)
	}
	if _, err := c.network(); err != nil {
		return nil, err
	}
	return c, nil
}

// NetworkID returns the network the client operates on.
func (c *Client) NetworkID() networks.NetworkID {
	return c.networkID
}

// Network returns the resolved configuration of the client's network.
func (c *Client) Network() (networks.NetworkConfig, error) {
	return c.network()
}

// Logger returns the client's logger.
func (c *Client) Logger() *logrus.Logger {
	return c.logger
}

// HasLedger reports whether the client can write to the ledger.
func (c *Client) HasLedger() bool {
	return c.ledger != nil
}

// ResolvePlatformID returns explicit when set, otherwise the client's default platform id.
func (c *Client) ResolvePlatformID(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if c.platformID != "" {
		return c.platformID, nil
	}
	return "", NewError(ErrCodeMissingPlatformID, "no platform id given and no default configured", nil)
}

func (c *Client) network() (networks.NetworkConfig, error) {
	return resolveNetwork(c.resolver, c.networkID)
}

func resolveNetwork(r *networks.Resolver, id networks.NetworkID) (networks.NetworkConfig, error) {
	cfg, err := r.Resolve(id)
	if err != nil {
		return networks.NetworkConfig{}, NewError(ErrCodeUnsupportedNetwork, "network is not supported", err).
			WithDetail("network", int(id))
	}
	return cfg, nil
}

// contract returns the named contract of network. A network without a deployment fails
// with missing_deployment; any other miss is reported under code.
func contract(network networks.NetworkConfig, name networks.ContractName, code string) (networks.ContractInfo, error) {
	info, err := network.Contract(name)
	if err == nil {
		return info, nil
	}
	if errors.Is(err, networks.ErrMissingDeployment) {
		return networks.ContractInfo{}, NewError(ErrCodeMissingDeployment,
			"network has no contract deployment configured; supply one with WithCustomNetwork", err).
			WithDetail("network", int(network.ID)).
			WithDetail("contract", string(name))
	}
	return networks.ContractInfo{}, NewError(code, fmt.Sprintf("%s contract is not configured", name), err)
}

func (c *Client) requireLedger() error {
	if c.ledger == nil {
		return NewError(ErrCodeMissingLedger, "configure a ledger client with WithLedger", nil)
	}
	return nil
}

func (c *Client) entry(op OperationContext) *logrus.Entry {
	return c.logger.WithFields(logrus.Fields{
		"network":    int(op.Network),
		"operation":  string(op.Operation),
		"attempt_id": op.AttemptID,
		"service_id": op.ServiceID,
	})
}

func defaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
