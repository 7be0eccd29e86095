package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/storage-ledger/contracts"
	"github.com/nspcc-dev/storage-ledger/deploy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// token precision fixed by the contract.
const tokenDecimals = 8

type deployFlags struct {
	contractsDir    string
	owner           string
	allocations     []string
	committeeWallet string
}

func newDeployCmd(flags *rootFlags) *cobra.Command {
	var df deployFlags

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy Storage Ledger contract or update the deployed one",
		Long: `Deploy Storage Ledger contract compiled into the directory.

Address of the new contract is derived from the wallet account and the
contract files. Set the contract address (--contract or configuration) to
update already deployed contract: its address stays the same while the
executable changes. Update must be co-signed by the committee account from
--committee-wallet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := contracts.ReadLedger(df.contractsDir)
			if err != nil {
				return fmt.Errorf("read contract: %w", err)
			}

			allocs, err := parseAllocations(df.allocations)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(flags.config)
			if err != nil {
				return err
			}
			if flags.rpc != "" {
				cfg.RPC = flags.rpc
			}
			if flags.contract != "" {
				cfg.Contract = flags.contract
			}
			if flags.logLevel != "" {
				cfg.LogLevel = flags.logLevel
			}
			if cfg.RPC == "" {
				return errors.New("missing Neo RPC endpoint")
			}

			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			acc, err := openAccount(cfg)
			if err != nil {
				return err
			}

			var addr *util.Uint160
			if cfg.Contract != "" {
				h, err := cfg.contractHash()
				if err != nil {
					return fmt.Errorf("contract address: %w", err)
				}
				addr = &h
			}

			var committee *wallet.Account
			if df.committeeWallet != "" {
				committee, err = openAccount(Config{Wallet: df.committeeWallet, Password: cfg.CommitteePassword})
				if err != nil {
					return fmt.Errorf("committee account: %w", err)
				}
			}

			owner := acc.ScriptHash()
			if df.owner != "" {
				owner, err = parseAccount(df.owner)
				if err != nil {
					return fmt.Errorf("owner: %w", err)
				}
			}

			ctx := cmd.Context()

			rpc, err := rpcclient.New(ctx, cfg.RPC, rpcclient.Options{
				DialTimeout:    cfg.DialTimeout,
				RequestTimeout: cfg.DialTimeout,
			})
			if err != nil {
				return fmt.Errorf("RPC client dial: %w", err)
			}
			defer rpc.Close()

			err = rpc.Init()
			if err != nil {
				return fmt.Errorf("init RPC client: %w", err)
			}

			res, err := deploy.Deploy(ctx, deploy.Prm{
				Logger:           log,
				Blockchain:       rpc,
				LocalAccount:     acc,
				CommitteeAccount: committee,
				Address:          addr,
				NEF:              c.NEF,
				Manifest:         c.Manifest,
				Owner:            owner,
				Allocations:      allocs,
			})
			if err != nil {
				return err
			}

			log.Info("Storage Ledger is ready", zap.String("address", address.Uint160ToString(res)))
			fmt.Fprintln(cmd.OutOrStdout(), res.StringLE())

			return nil
		},
	}

	cmd.Flags().StringVar(&df.contractsDir, "contract-dir", "contracts/ledger",
		"Directory with compiled contract.nef and manifest.json")
	cmd.Flags().StringVar(&df.owner, "owner", "", "Token owner allowed to mint (wallet account by default)")
	cmd.Flags().StringArrayVar(&df.allocations, "alloc", nil, "Initial balance in <account>:<amount> format, repeatable")
	cmd.Flags().StringVar(&df.committeeWallet, "committee-wallet", "", "Wallet with committee multisig account co-signing the update")

	return cmd
}

// parseAllocations decodes list of <account>:<amount> pairs, amounts are
// given in tokens.
func parseAllocations(list []string) ([]deploy.Allocation, error) {
	res := make([]deploy.Allocation, 0, len(list))

	for _, s := range list {
		rawAcc, rawAmount, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("invalid allocation '%s'", s)
		}

		acc, err := parseAccount(rawAcc)
		if err != nil {
			return nil, fmt.Errorf("allocation account: %w", err)
		}

		amount, err := fixedn.FromString(rawAmount, tokenDecimals)
		if err != nil {
			return nil, fmt.Errorf("allocation amount '%s': %w", rawAmount, err)
		}

		res = append(res, deploy.Allocation{Account: acc, Amount: amount})
	}

	return res, nil
}
