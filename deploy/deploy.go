package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/management"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/storage-ledger/common"
	"github.com/nspcc-dev/storage-ledger/rpc/ledger"
	"go.uber.org/zap"
)

// Blockchain groups services provided by particular Neo blockchain network
// that are required for the Storage Ledger deployment.
type Blockchain interface {
	// RPCActor groups functions needed to compose and send transactions.
	actor.RPCActor

	// GetContractStateByHash returns network state of the smart contract by its
	// address. GetContractStateByHash returns error with 'Unknown contract'
	// substring if requested contract is missing.
	GetContractStateByHash(util.Uint160) (*state.Contract, error)
}

// Allocation is an initial token balance of the account registered at
// deployment.
type Allocation struct {
	Account util.Uint160
	Amount  *big.Int
}

// Prm groups all parameters of the Storage Ledger deployment procedure.
type Prm struct {
	// Writes progress into the log.
	Logger *zap.Logger

	// Particular Neo blockchain instance to deploy the contract to.
	Blockchain Blockchain

	// Local process account used for transaction signing (must be unlocked).
	// Address of the new contract depends on it.
	LocalAccount *wallet.Account

	// Address of the already deployed contract. Contract hash is fixed at the
	// first deployment, so it must be set to update the contract with newer
	// executable. If not set, the address is derived from LocalAccount and
	// the executable, see ContractAddress.
	Address *util.Uint160

	// Committee account co-signing the contract update (must be unlocked).
	// Optional: if not set, outdated contract is reported as an error.
	CommitteeAccount *wallet.Account

	NEF      nef.File
	Manifest manifest.Manifest

	// Token owner allowed to mint.
	Owner util.Uint160
	// Initial balances, accounts must be unique.
	Allocations []Allocation
}

// ContractAddress returns address of the Storage Ledger contract deployed by
// the given sender. It matches the deployed contract only while the contract
// runs the executable it was deployed with.
func ContractAddress(sender util.Uint160, n nef.File, m manifest.Manifest) util.Uint160 {
	return state.CreateContractHash(sender, n.Checksum, m.Name)
}

// DeployData returns `_deploy` data of the Storage Ledger contract.
func DeployData(owner util.Uint160, allocations []Allocation) []any {
	list := make([]any, 0, len(allocations))
	for i := range allocations {
		list = append(list, []any{allocations[i].Account, allocations[i].Amount})
	}

	return []any{owner, list}
}

// Deploy deploys the Storage Ledger contract or updates it if the deployed
// contract is older than the local one. Deploy waits for the transaction to
// be accepted and returns contract address.
func Deploy(ctx context.Context, prm Prm) (util.Uint160, error) {
	if err := prm.Validate(); err != nil {
		return util.Uint160{}, fmt.Errorf("invalid parameters: %w", err)
	}

	sender := prm.LocalAccount.ScriptHash()

	addr := ContractAddress(sender, prm.NEF, prm.Manifest)
	if prm.Address != nil {
		addr = *prm.Address
	}

	l := prm.Logger.With(zap.Stringer("address", addr))

	if err := checkAllocations(prm.Allocations); err != nil {
		return util.Uint160{}, err
	}

	simpleActor, err := actor.NewSimple(prm.Blockchain, prm.LocalAccount)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("init transaction sender from local account: %w", err)
	}

	_, err = prm.Blockchain.GetContractStateByHash(addr)
	if err != nil {
		if !isErrContractNotFound(err) {
			return util.Uint160{}, fmt.Errorf("get contract state: %w", err)
		}

		if prm.Address != nil {
			return util.Uint160{}, fmt.Errorf("contract %s is missing on the chain", addr.StringLE())
		}

		l.Info("contract is missing on the chain, deploying...")

		txHash, vub, err := management.New(simpleActor).Deploy(&prm.NEF, &prm.Manifest,
			DeployData(prm.Owner, prm.Allocations))
		err = await(ctx, l, simpleActor, txHash, vub, err)
		if err != nil {
			return util.Uint160{}, fmt.Errorf("deploy contract: %w", err)
		}

		l.Info("contract successfully deployed")

		return addr, nil
	}

	onChain, err := ledger.NewReader(simpleActor, addr).Version()
	if err != nil {
		return util.Uint160{}, fmt.Errorf("get version of the deployed contract: %w", err)
	}

	if onChain.Cmp(big.NewInt(common.Version)) >= 0 {
		l.Info("contract is up to date", zap.Stringer("version", onChain))
		return addr, nil
	}

	if prm.CommitteeAccount == nil {
		return util.Uint160{}, fmt.Errorf("contract version %s is outdated, committee account is required to update", onChain)
	}

	committeeActor, err := actor.New(prm.Blockchain, []actor.SignerAccount{
		{
			Signer: transaction.Signer{
				Account: sender,
				Scopes:  transaction.None,
			},
			Account: prm.LocalAccount,
		},
		{
			Signer: transaction.Signer{
				Account:          prm.CommitteeAccount.ScriptHash(),
				Scopes:           transaction.CustomContracts,
				AllowedContracts: []util.Uint160{addr},
			},
			Account: prm.CommitteeAccount,
		},
	})
	if err != nil {
		return util.Uint160{}, fmt.Errorf("init transaction sender with committee: %w", err)
	}

	l.Info("contract is outdated, updating...", zap.Stringer("version", onChain))

	rawNEF, err := prm.NEF.Bytes()
	if err != nil {
		return util.Uint160{}, fmt.Errorf("encode NEF: %w", err)
	}

	rawManifest, err := json.Marshal(prm.Manifest)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("encode manifest: %w", err)
	}

	txHash, vub, err := ledger.New(committeeActor, addr).Update(rawNEF, rawManifest, nil)
	err = await(ctx, l, committeeActor, txHash, vub, err)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("update contract: %w", err)
	}

	l.Info("contract successfully updated")

	return addr, nil
}

// await waits for the sent transaction and checks its execution state.
func await(ctx context.Context, l *zap.Logger, a *actor.Actor, txHash util.Uint256, vub uint32, err error) error {
	if err != nil {
		return ledger.ParseFault(err)
	}

	l.Info("transaction sent, waiting...", zap.Stringer("tx", txHash), zap.Uint32("vub", vub))

	if err = ctx.Err(); err != nil {
		return err
	}

	res, err := a.Wait(txHash, vub, nil)
	if err != nil {
		return fmt.Errorf("wait for transaction %s: %w", txHash.StringLE(), err)
	}

	if res.VMState != vmstate.Halt {
		return ledger.ParseFault(fmt.Errorf("transaction %s failed: %s", txHash.StringLE(), res.FaultException))
	}

	return nil
}

func checkAllocations(allocations []Allocation) error {
	seen := make(map[util.Uint160]struct{}, len(allocations))

	for i := range allocations {
		if allocations[i].Amount == nil || allocations[i].Amount.Sign() < 0 {
			return fmt.Errorf("allocation #%d: invalid amount", i)
		}

		if _, ok := seen[allocations[i].Account]; ok {
			return fmt.Errorf("allocation #%d: %w", i, ledger.ErrAlreadyRegistered)
		}

		seen[allocations[i].Account] = struct{}{}
	}

	return nil
}

func isErrContractNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Unknown contract")
}

// Validate checks that all required parameters are set.
func (x Prm) Validate() error {
	switch {
	case x.Logger == nil:
		return errors.New("missing logger")
	case x.Blockchain == nil:
		return errors.New("missing blockchain")
	case x.LocalAccount == nil:
		return errors.New("missing local account")
	case x.Owner.Equals(util.Uint160{}):
		return errors.New("missing token owner")
	}

	return nil
}
