package main

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	talentlayer "github.com/talentlayer/talentlayer-go"
	"github.com/talentlayer/talentlayer-go/extensions/metaevidence"
	"github.com/talentlayer/talentlayer-go/networks"
	"github.com/talentlayer/talentlayer-go/pkg/ipfs"
)

func (a *app) networksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List the built-in networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			type row struct {
				ID          networks.NetworkID `json:"id"`
				Name        string             `json:"name"`
				SubgraphURL string             `json:"subgraphUrl"`
				Escrow      string             `json:"escrow"`
			}
			var rows []row
			for _, id := range networks.Supported() {
				cfg, err := networks.Lookup(id)
				if err != nil {
					return err
				}
				r := row{ID: id, Name: cfg.Name, SubgraphURL: cfg.SubgraphURL}
				if escrow, err := cfg.Contract(networks.TalentLayerEscrow); err == nil {
					r.Escrow = escrow.Address
				}
				rows = append(rows, r)
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
}

func (a *app) feesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fees <servicePlatformId> <proposalPlatformId>",
		Short: "Show the protocol and platform fee rates, in basis points",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subgraphURL, err := a.cfg.ResolveSubgraphURL()
			if err != nil {
				return err
			}
			g := a.newGraph(graphConfig(subgraphURL, a.cfg.SubgraphKey))
			rates, err := talentlayer.NewFeeResolver(g).ResolveFees(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"protocolEscrowFeeRate":          rates.ProtocolEscrowFeeRate.String(),
				"originServiceFeeRate":           rates.OriginServiceFeeRate.String(),
				"originValidatedProposalFeeRate": rates.OriginValidatedProposalFeeRate.String(),
			})
		},
	}
}

func (a *app) proposalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proposal <serviceId> <proposalId>",
		Short: "Show a proposal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient(cmd.Context(), noLedger)
			if err != nil {
				return err
			}
			proposal, err := client.GetProposal(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if proposal == nil {
				return talentlayer.NewError(talentlayer.ErrCodeProposalNotFound,
					fmt.Sprintf("proposal %s not found", talentlayer.ProposalKey(args[0], args[1])), nil)
			}
			return printJSON(cmd.OutOrStdout(), proposal)
		},
	}
}

func (a *app) platformCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platform [platformId]",
		Short: "Show a platform's fee rates and arbitrator; defaults to --platform-id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var platformID string
			if len(args) == 1 {
				platformID = args[0]
			}
			client, err := a.newClient(cmd.Context(), noLedger)
			if err != nil {
				return err
			}
			platform, err := client.GetPlatform(cmd.Context(), platformID)
			if err != nil {
				return err
			}
			if platform == nil {
				return talentlayer.NewError(talentlayer.ErrCodeNotFound, "platform not found", nil)
			}
			return printJSON(cmd.OutOrStdout(), platform)
		},
	}
}

func (a *app) quoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote <serviceId> <proposalId>",
		Short: "Compute the amount approving a proposal would commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient(cmd.Context(), noLedger)
			if err != nil {
				return err
			}
			quote, err := client.QuoteApproval(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), quote)
		},
	}
}

func (a *app) approveCmd() *cobra.Command {
	var (
		metaEvidenceCID string
		upload          bool
		title           string
		checkBalance    bool
	)
	cmd := &cobra.Command{
		Use:   "approve <serviceId> <proposalId>",
		Short: "Approve a proposal and lock its payment in escrow",
		Long: "Approve a proposal. ERC-20 payments are approved for the fee-inclusive amount first.\n" +
			"Pass --meta-evidence-cid, or --upload-meta-evidence to build and pin an ERC-1497 document.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceID, proposalID := args[0], args[1]
			if (metaEvidenceCID == "") == !upload {
				return fmt.Errorf("exactly one of --meta-evidence-cid and --upload-meta-evidence is required")
			}

			client, err := a.newClient(cmd.Context(), withLedger)
			if err != nil {
				return err
			}
			if checkBalance {
				if _, err := client.CheckFunds(cmd.Context(), serviceID, proposalID); err != nil {
					return err
				}
			}

			if upload {
				proposal, err := client.GetProposal(cmd.Context(), serviceID, proposalID)
				if err != nil {
					return err
				}
				params := metaevidence.Params{ServiceID: serviceID, ProposalID: proposalID, ServiceTitle: title}
				if proposal != nil && proposal.CID != "" {
					params.FileURI = "ipfs://" + proposal.CID
				}
				store := a.newStore(ipfs.Config{
					URL:           a.cfg.IPFS.URL,
					ProjectID:     a.cfg.IPFS.ProjectID,
					ProjectSecret: a.cfg.IPFS.Secret,
				})
				metaEvidenceCID, err = metaevidence.Upload(cmd.Context(), store, metaevidence.Build(params))
				if err != nil {
					return err
				}
				a.log.WithField("cid", metaEvidenceCID).Info("meta-evidence uploaded")
			}

			result, err := client.Approve(cmd.Context(), serviceID, proposalID, metaEvidenceCID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&metaEvidenceCID, "meta-evidence-cid", "", "content id of the meta-evidence document")
	cmd.Flags().BoolVar(&upload, "upload-meta-evidence", false, "build and upload the meta-evidence document")
	cmd.Flags().StringVar(&title, "service-title", "", "service title used in the uploaded meta-evidence")
	cmd.Flags().BoolVar(&checkBalance, "check-balance", false, "refuse to approve when the signer cannot cover the fee-inclusive amount")
	return cmd
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [token]",
		Short: "Show the signer's balance of a token, or of the native currency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := networks.NativeTokenAddress
			if len(args) == 1 {
				if !networks.IsValidAddress(args[0]) {
					return talentlayer.NewError(talentlayer.ErrCodeInvalidArgument,
						fmt.Sprintf("token %q is not an address", args[0]), nil)
				}
				token = args[0]
			}
			client, err := a.newClient(cmd.Context(), withLedger)
			if err != nil {
				return err
			}
			balance, err := client.Balance(cmd.Context(), token)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"token": token, "balance": balance.String()})
		},
	}
}

func (a *app) settleCmd(op talentlayer.Operation) *cobra.Command {
	var (
		userID   string
		decimals int
	)
	short := "Release escrowed funds to the seller"
	if op == talentlayer.OperationReimburse {
		short = "Reimburse escrowed funds to the buyer"
	}
	cmd := &cobra.Command{
		Use:   string(op) + " <serviceId> <amount>",
		Short: short,
		Long:  short + ". The amount is in base units unless --decimals is given.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmountArg(args[1], decimals)
			if err != nil {
				return err
			}
			client, err := a.newClient(cmd.Context(), withLedger)
			if err != nil {
				return err
			}

			settle := client.Release
			if op == talentlayer.OperationReimburse {
				settle = client.Reimburse
			}
			result, err := settle(cmd.Context(), args[0], amount, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "TalentLayer id of the signing user")
	cmd.Flags().IntVar(&decimals, "decimals", -1, "parse the amount as a decimal with this many token decimals")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func parseAmountArg(raw string, decimals int) (*big.Int, error) {
	if decimals >= 0 {
		amount, err := networks.ParseAmount(raw, decimals)
		if err != nil {
			return nil, talentlayer.NewError(talentlayer.ErrCodeInvalidAmount, err.Error(), err)
		}
		return amount, nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, talentlayer.NewError(talentlayer.ErrCodeInvalidAmount,
			fmt.Sprintf("amount %q is not a decimal integer", raw), nil)
	}
	return amount, nil
}

func (a *app) arbitratorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "arbitrators",
		Short: "List the arbitrators a platform may select on the configured network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.newClient(cmd.Context(), noLedger)
			if err != nil {
				return err
			}
			arbitrators, err := client.Arbitrators()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), arbitrators)
		},
	}
}

func (a *app) updateArbitratorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-arbitrator <address>",
		Short: "Set the arbitrator of the platform given by --platform-id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient(cmd.Context(), withLedger)
			if err != nil {
				return err
			}
			txHash, err := client.UpdateArbitrator(cmd.Context(), "", args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"transactionHash": txHash})
		},
	}
}

func (a *app) feeRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "update-fee-rate <service|proposal> <basisPoints>",
		Short:     "Set the origin service or validated-proposal fee rate of the platform given by --platform-id",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"service", "proposal"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := strconv.Atoi(args[1])
			if err != nil {
				return talentlayer.NewError(talentlayer.ErrCodeInvalidFeeRate,
					fmt.Sprintf("rate %q is not an integer", args[1]), err)
			}
			client, err := a.newClient(cmd.Context(), withLedger)
			if err != nil {
				return err
			}

			var txHash string
			switch args[0] {
			case "service":
				txHash, err = client.UpdateOriginServiceFeeRate(cmd.Context(), "", rate)
			case "proposal":
				txHash, err = client.UpdateOriginValidatedProposalFeeRate(cmd.Context(), "", rate)
			default:
				return fmt.Errorf("unknown fee %q: expected service or proposal", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"transactionHash": txHash})
		},
	}
}
