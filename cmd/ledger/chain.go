package main

import (
	"context"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/storage-ledger/rpc/ledger"
	"go.uber.org/zap"
)

// wrapper over Neo RPC client providing Storage Ledger services needed
// for the commands.
type remoteBlockchain struct {
	log   *zap.Logger
	rpc   *rpcclient.Client
	actor *actor.Actor

	contract util.Uint160
}

// dial connects to the Neo RPC server from the configuration. If acc is nil,
// a random account is used, so that only read operations are possible.
func dial(ctx context.Context, log *zap.Logger, cfg Config, acc *wallet.Account) (*remoteBlockchain, error) {
	contract, err := cfg.contractHash()
	if err != nil {
		return nil, fmt.Errorf("contract address: %w", err)
	}

	if acc == nil {
		acc, err = wallet.NewAccount()
		if err != nil {
			return nil, fmt.Errorf("generate new Neo account: %w", err)
		}
	}

	c, err := rpcclient.New(ctx, cfg.RPC, rpcclient.Options{
		DialTimeout:    cfg.DialTimeout,
		RequestTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("RPC client dial: %w", err)
	}

	err = c.Init()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init RPC client: %w", err)
	}

	act, err := actor.NewSimple(c, acc)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init actor: %w", err)
	}

	log.Debug("connected to Neo RPC server", zap.String("endpoint", cfg.RPC))

	return &remoteBlockchain{
		log:      log,
		rpc:      c,
		actor:    act,
		contract: contract,
	}, nil
}

func (x *remoteBlockchain) close() {
	x.rpc.Close()
}

func (x *remoteBlockchain) reader() *ledger.ContractReader {
	return ledger.NewReader(x.actor, x.contract)
}

func (x *remoteBlockchain) writer() *ledger.Contract {
	return ledger.New(x.actor, x.contract)
}

func (x *remoteBlockchain) contractState() (*state.Contract, error) {
	cs, err := x.rpc.GetContractStateByHash(x.contract)
	if err != nil {
		return nil, fmt.Errorf("get state of the contract '%s': %w", x.contract.StringLE(), err)
	}

	return cs, nil
}

// iterateContractStorage iterates over all storage items of the contract at
// the latest state root and passes them into f. It breaks on any f's error
// and returns it. The node must run state service.
func (x *remoteBlockchain) iterateContractStorage(f func(key, value []byte) error) (uint32, error) {
	nLatestBlock, err := x.actor.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("get number of the latest block: %w", err)
	}

	height := nLatestBlock - 1

	stateRoot, err := x.rpc.GetStateRootByHeight(height)
	if err != nil {
		return 0, fmt.Errorf("get state root at block #%d: %w", height, err)
	}

	var start []byte

	for {
		res, err := x.rpc.FindStates(stateRoot.Root, x.contract, nil, start, nil)
		if err != nil {
			return 0, fmt.Errorf("get storage items at state root '%s': %w", stateRoot.Root, err)
		}

		for i := range res.Results {
			err = f(res.Results[i].Key, res.Results[i].Value)
			if err != nil {
				return 0, err
			}
		}

		if !res.Truncated {
			return height, nil
		}

		start = res.Results[len(res.Results)-1].Key
	}
}

// openAccount opens and decrypts the wallet account from the configuration.
func openAccount(cfg Config) (*wallet.Account, error) {
	if cfg.Wallet == "" {
		return nil, fmt.Errorf("wallet is required")
	}

	w, err := wallet.NewWalletFromFile(cfg.Wallet)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	defer w.Close()

	var acc *wallet.Account
	if cfg.Account == "" {
		if len(w.Accounts) == 0 {
			return nil, fmt.Errorf("wallet has no accounts")
		}
		acc = w.Accounts[0]
		for _, a := range w.Accounts {
			if a.Default {
				acc = a
				break
			}
		}
	} else {
		h, err := parseAccount(cfg.Account)
		if err != nil {
			return nil, fmt.Errorf("wallet account: %w", err)
		}
		acc = w.GetAccount(h)
		if acc == nil {
			return nil, fmt.Errorf("account %s is missing in the wallet", cfg.Account)
		}
	}

	err = acc.Decrypt(cfg.Password, w.Scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypt account: %w", err)
	}

	return acc, nil
}
