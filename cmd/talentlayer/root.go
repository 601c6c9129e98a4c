package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	talentlayer "github.com/talentlayer/talentlayer-go"
	"github.com/talentlayer/talentlayer-go/pkg/config"
	"github.com/talentlayer/talentlayer-go/pkg/graph"
	"github.com/talentlayer/talentlayer-go/pkg/ipfs"
	"github.com/talentlayer/talentlayer-go/signers/evm"
)

const (
	envPrefix     = "TALENTLAYER"
	privateKeyEnv = envPrefix + "_PRIVATE_KEY"
)

var errMissingPrivateKey = errors.New(privateKeyEnv + " must be set for commands that sign transactions")

type rootFlags struct {
	configFile  string
	network     int
	rpcURL      string
	subgraphURL string
	platformID  string
	logLevel    string
	logFormat   string
}

type ledgerDialer func(ctx context.Context, rpcURL, privateKey string, log logrus.FieldLogger) (talentlayer.LedgerClient, error)

type app struct {
	flags rootFlags
	v     *viper.Viper
	cfg   *config.Config
	log   *logrus.Logger

	dialLedger ledgerDialer
	newGraph   func(cfg graph.Config) talentlayer.GraphClient
	newStore   func(cfg ipfs.Config) talentlayer.ContentStore
}

func newApp() *app {
	return &app{
		v:   viper.New(),
		log: logrus.New(),
		dialLedger: func(ctx context.Context, rpcURL, privateKey string, log logrus.FieldLogger) (talentlayer.LedgerClient, error) {
			return evm.Dial(ctx, rpcURL, privateKey, evm.WithLogger(log))
		},
		newGraph: func(cfg graph.Config) talentlayer.GraphClient {
			return graph.NewClient(cfg)
		},
		newStore: func(cfg ipfs.Config) talentlayer.ContentStore {
			return ipfs.NewClient(cfg)
		},
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "talentlayer",
		Short:         "TalentLayer escrow client",
		Long:          "Approve proposals, release and reimburse escrowed payments, and manage platform arbitration on TalentLayer.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initializeConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "YAML config file")
	pf.IntVar(&a.flags.network, "network", 0, "network id (default 137)")
	pf.StringVar(&a.flags.rpcURL, "rpc-url", "", "JSON-RPC endpoint")
	pf.StringVar(&a.flags.subgraphURL, "subgraph-url", "", "subgraph endpoint (default: the network's)")
	pf.StringVar(&a.flags.platformID, "platform-id", "", "default platform id")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (default info)")
	pf.StringVar(&a.flags.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		a.networksCmd(),
		a.feesCmd(),
		a.proposalCmd(),
		a.platformCmd(),
		a.quoteCmd(),
		a.approveCmd(),
		a.balanceCmd(),
		a.settleCmd(talentlayer.OperationRelease),
		a.settleCmd(talentlayer.OperationReimburse),
		a.arbitratorsCmd(),
		a.updateArbitratorCmd(),
		a.feeRateCmd(),
		a.serveCmd(),
	)
	return root
}

// initializeConfig layers flags over TALENTLAYER_* environment variables over the config file.
func (a *app) initializeConfig(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.AutomaticEnv()
	if err := a.bindFlags(cmd); err != nil {
		return fmt.Errorf("bind flags failed: %w", err)
	}

	cfg := config.Default()
	if a.flags.configFile != "" {
		loaded, err := config.Load(a.flags.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if a.flags.network != 0 {
		cfg.Network = a.flags.network
	}
	if a.flags.rpcURL != "" {
		cfg.RPCURL = a.flags.rpcURL
	}
	if a.flags.subgraphURL != "" {
		cfg.SubgraphURL = a.flags.subgraphURL
	}
	if a.flags.platformID != "" {
		cfg.PlatformID = a.flags.platformID
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	if key := a.v.GetString("subgraph_api_key"); key != "" {
		cfg.SubgraphKey = key
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	a.log.SetLevel(level)
	a.log.SetOutput(cmd.ErrOrStderr())
	if a.flags.logFormat == "json" {
		a.log.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

// bindFlags applies TALENTLAYER_<FLAG> environment values to flags not set on the command line.
func (a *app) bindFlags(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		envName := fmt.Sprintf("%s_%s", envPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")))
		if err := a.v.BindEnv(f.Name, envName); err != nil {
			bindErr = fmt.Errorf("could not bind env to flag %s: %w", f.Name, err)
			return
		}
		if !f.Changed && a.v.IsSet(f.Name) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", a.v.Get(f.Name))); err != nil {
				bindErr = fmt.Errorf("could not set flag %s: %w", f.Name, err)
			}
		}
	})
	return bindErr
}

// newClient builds an SDK client. withLedger requires TALENTLAYER_PRIVATE_KEY;
// optionalLedger attaches one only when the key is present.
func (a *app) newClient(ctx context.Context, ledger ledgerMode) (*talentlayer.Client, error) {
	subgraphURL, err := a.cfg.ResolveSubgraphURL()
	if err != nil {
		return nil, err
	}
	override, err := a.cfg.NetworkOverride()
	if err != nil {
		return nil, err
	}

	opts := []talentlayer.ClientOption{
		talentlayer.WithLogger(a.log),
		talentlayer.WithPlatformID(a.cfg.PlatformID),
	}
	if override != nil {
		opts = append(opts, talentlayer.WithCustomNetwork(override))
	}

	key := strings.TrimSpace(os.Getenv(privateKeyEnv))
	switch {
	case key == "" && ledger == withLedger:
		return nil, errMissingPrivateKey
	case key != "" && ledger != noLedger:
		if a.cfg.RPCURL == "" {
			return nil, errors.New("an RPC url is required to sign transactions (--rpc-url or rpcUrl)")
		}
		l, err := a.dialLedger(ctx, a.cfg.RPCURL, key, a.log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, talentlayer.WithLedger(l))
	}

	g := a.newGraph(graphConfig(subgraphURL, a.cfg.SubgraphKey))
	return talentlayer.NewClient(a.cfg.NetworkID(), g, opts...)
}

func graphConfig(url, apiKey string) graph.Config {
	return graph.Config{URL: url, APIKey: apiKey}
}

type ledgerMode int

const (
	noLedger ledgerMode = iota
	optionalLedger
	withLedger
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
