package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/storage-ledger/rpc/ledger"
	"github.com/nspcc-dev/storage-ledger/tests/dump"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// GAS precision.
const gasDecimals = 8

const (
	// number of iterator items requested at once
	iteratorBatch = 100
	// limit of items expanded in the VM when sessions are disabled
	maxExpandedAccounts = 10000
)

type rootFlags struct {
	config   string
	rpc      string
	contract string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Storage Ledger contract client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&flags.rpc, "rpc", "", "Neo RPC server endpoint")
	root.PersistentFlags().StringVar(&flags.contract, "contract", "", "Storage Ledger contract address or LE hash")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Logging level")

	root.AddCommand(
		newBoundsCmd(&flags),
		newStorageBalanceCmd(&flags),
		newBalanceCmd(&flags),
		newAccountsCmd(&flags),
		newDepositCmd(&flags),
		newDumpCmd(&flags),
		newDeployCmd(&flags),
	)

	return root
}

// environment of the running command.
type env struct {
	cfg   Config
	log   *zap.Logger
	chain *remoteBlockchain
}

func (e *env) close() {
	e.chain.close()
	_ = e.log.Sync()
}

// setup reads configuration, applies flags and connects to the chain. Wallet
// account is opened when withAccount is set.
func setup(ctx context.Context, flags *rootFlags, withAccount bool) (*env, error) {
	cfg, err := loadConfig(flags.config)
	if err != nil {
		return nil, err
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

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var acc *wallet.Account
	if withAccount {
		acc, err = openAccount(cfg)
		if err != nil {
			return nil, err
		}
	}

	chain, err := dial(ctx, log, cfg, acc)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, log: log, chain: chain}, nil
}

func newBoundsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "bounds",
		Short: "Print required storage deposit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer e.close()

			b, err := e.chain.reader().StorageBalanceBounds()
			if err != nil {
				return fmt.Errorf("get storage balance bounds: %w", ledger.ParseFault(err))
			}

			unit, err := e.chain.reader().StorageCostUnit()
			if err != nil {
				return fmt.Errorf("get storage cost unit: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Record size: %s bytes\n", unit)
			fmt.Fprintf(w, "Min deposit: %s GAS\n", fixedn.ToString(b.Min, gasDecimals))
			fmt.Fprintf(w, "Max deposit: %s GAS\n", fixedn.ToString(b.Max, gasDecimals))

			return nil
		},
	}
}

func newStorageBalanceCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "storage-balance <account>",
		Short: "Print storage deposit of the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := parseAccount(args[0])
			if err != nil {
				return err
			}

			e, err := setup(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer e.close()

			sb, err := e.chain.reader().StorageBalanceOf(acc)
			if err != nil {
				return fmt.Errorf("get storage balance: %w", ledger.ParseFault(err))
			}

			printStorageBalance(cmd.OutOrStdout(), acc, sb)

			return nil
		},
	}
}

func printStorageBalance(w io.Writer, acc util.Uint160, sb *ledger.LedgerStorageBalance) {
	if sb == nil {
		fmt.Fprintf(w, "%s is not registered\n", address.Uint160ToString(acc))
		return
	}

	fmt.Fprintf(w, "%s total: %s GAS, available: %s GAS\n", address.Uint160ToString(acc),
		fixedn.ToString(sb.Total, gasDecimals), fixedn.ToString(sb.Available, gasDecimals))
}

func newBalanceCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Print token balance of the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := parseAccount(args[0])
			if err != nil {
				return err
			}

			e, err := setup(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer e.close()

			r := e.chain.reader()

			decimals, err := r.Decimals()
			if err != nil {
				return fmt.Errorf("get decimals: %w", err)
			}

			symbol, err := r.Symbol()
			if err != nil {
				return fmt.Errorf("get symbol: %w", err)
			}

			balance, err := r.BalanceOf(acc)
			if err != nil {
				return fmt.Errorf("get balance: %w", ledger.ParseFault(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", fixedn.ToString(balance, decimals), symbol)

			return nil
		},
	}
}

func newAccountsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List registered accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer e.close()

			items, err := listAccounts(e.chain.actor, e.chain.reader())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, item := range items {
				acc, balance, err := parseAccountItem(item)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s %s\n", address.Uint160ToString(acc), balance)
			}

			return nil
		},
	}
}

// listAccounts reads all registered accounts using iterator session or
// expands the iterator in the VM if sessions are disabled on the server.
func listAccounts(inv ledger.Invoker, r *ledger.ContractReader) ([]stackitem.Item, error) {
	sessionID, iter, err := r.ListAccounts()
	if err != nil {
		items, expErr := r.ListAccountsExpanded(maxExpandedAccounts)
		if expErr != nil {
			return nil, fmt.Errorf("list accounts: %w", errors.Join(err, expErr))
		}
		return items, nil
	}

	if iter.ID == nil {
		// server expanded the iterator itself
		return iter.Values, nil
	}

	defer func() { _ = inv.TerminateSession(sessionID) }()

	var res []stackitem.Item
	for {
		items, err := inv.TraverseIterator(sessionID, &iter, iteratorBatch)
		if err != nil {
			return nil, fmt.Errorf("traverse accounts iterator: %w", err)
		}

		res = append(res, items...)

		if len(items) < iteratorBatch {
			return res, nil
		}
	}
}

// parseAccountItem decodes iterator item of the `listAccounts` method.
func parseAccountItem(item stackitem.Item) (util.Uint160, *big.Int, error) {
	kv, ok := item.Value().([]stackitem.Item)
	if !ok || len(kv) != 2 {
		return util.Uint160{}, nil, errors.New("invalid accounts iterator item")
	}

	rawHash, err := kv[0].TryBytes()
	if err != nil {
		return util.Uint160{}, nil, fmt.Errorf("account hash: %w", err)
	}

	acc, err := util.Uint160DecodeBytesBE(rawHash)
	if err != nil {
		return util.Uint160{}, nil, fmt.Errorf("account hash: %w", err)
	}

	record, ok := kv[1].Value().([]stackitem.Item)
	if !ok || len(record) != 1 {
		return util.Uint160{}, nil, errors.New("invalid account record")
	}

	balance, err := record[0].TryInteger()
	if err != nil {
		return util.Uint160{}, nil, fmt.Errorf("account balance: %w", err)
	}

	return acc, balance, nil
}

type depositFlags struct {
	amount           string
	target           string
	registrationOnly bool
}

func newDepositCmd(flags *rootFlags) *cobra.Command {
	var df depositFlags

	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Pay storage deposit in GAS",
		Long: `Pay storage deposit for the wallet account or for the target account.

GAS exceeding the required deposit is refunded in the same transaction. The
deposit for already registered account is refunded in full.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := fixedn.FromString(df.amount, gasDecimals)
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}

			var target *util.Uint160
			if df.target != "" {
				h, err := parseAccount(df.target)
				if err != nil {
					return fmt.Errorf("target: %w", err)
				}
				target = &h
			}

			e, err := setup(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer e.close()

			txHash, vub, err := e.chain.writer().StorageDeposit(target, df.registrationOnly, amount)
			if err != nil {
				return fmt.Errorf("send deposit: %w", ledger.ParseFault(err))
			}

			e.log.Info("deposit sent, waiting...", zap.Stringer("tx", txHash), zap.Uint32("vub", vub))

			res, err := e.chain.actor.Wait(txHash, vub, nil)
			if err != nil {
				return fmt.Errorf("wait for deposit: %w", err)
			}

			if res.VMState != vmstate.Halt {
				return fmt.Errorf("deposit failed: %w", ledger.ParseFault(errors.New(res.FaultException)))
			}

			account := e.chain.actor.Sender()
			if target != nil {
				account = *target
			}

			sb, err := e.chain.reader().StorageBalanceOf(account)
			if err != nil {
				return fmt.Errorf("get storage balance: %w", err)
			}

			printStorageBalance(cmd.OutOrStdout(), account, sb)

			return nil
		},
	}

	cmd.Flags().StringVar(&df.amount, "amount", "", "Amount of GAS to attach")
	cmd.Flags().StringVar(&df.target, "target", "", "Account to pay for (wallet account by default)")
	cmd.Flags().BoolVar(&df.registrationOnly, "registration-only", false, "Refund everything above the minimum deposit")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

type dumpFlags struct {
	dir   string
	label string
}

func newDumpCmd(flags *rootFlags) *cobra.Command {
	var df dumpFlags

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump contract state and storage into the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if df.label == "" {
				return errors.New("missing blockchain label")
			}

			e, err := setup(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer e.close()

			err = os.MkdirAll(df.dir, 0700)
			if err != nil {
				return fmt.Errorf("create dump directory: %w", err)
			}

			cs, err := e.chain.contractState()
			if err != nil {
				return err
			}

			var items []dump.Item

			height, err := e.chain.iterateContractStorage(func(key, value []byte) error {
				items = append(items, dump.Item{Key: key, Value: value})
				return nil
			})
			if err != nil {
				return fmt.Errorf("iterate contract storage: %w", err)
			}

			l, err := dump.Decode(*cs, items)
			if err != nil {
				return fmt.Errorf("decode contract storage: %w", err)
			}

			if err = l.Check(); err != nil {
				e.log.Warn("ledger state is inconsistent", zap.Error(err))
			}

			id := dump.ID{Label: df.label, Block: height}

			err = dump.Write(df.dir, id, l)
			if err != nil {
				return fmt.Errorf("write dump: %w", err)
			}

			e.log.Info("contract is successfully dumped",
				zap.Stringer("id", id), zap.String("dir", df.dir), zap.Int("accounts", len(l.Accounts)))

			return nil
		},
	}

	cmd.Flags().StringVar(&df.dir, "dir", "testdata", "Directory to put dump files to")
	cmd.Flags().StringVar(&df.label, "label", "", "Label of the blockchain environment (e.g. 'testnet')")

	return cmd
}
