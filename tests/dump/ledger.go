package dump

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/storage-ledger/contracts/ledger/ledgerconst"
)

// Item is a raw storage item of the contract.
type Item struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// Account is a decoded record of the registered account.
type Account struct {
	Hash    util.Uint160
	Balance *big.Int
}

// Ledger is a decoded state of the Storage Ledger contract.
type Ledger struct {
	State state.Contract
	Items []Item

	CostUnit int64
	Owner    util.Uint160
	Supply   *big.Int
	// Sorted by hash.
	Accounts []Account
}

// Decode parses raw storage items of the Storage Ledger contract. Unknown
// keys are kept in Items and ignored otherwise.
func Decode(st state.Contract, items []Item) (*Ledger, error) {
	l := &Ledger{
		State:  st,
		Items:  items,
		Supply: new(big.Int),
	}

	var measured bool

	for _, it := range items {
		if len(it.Key) == 0 {
			continue
		}

		switch it.Key[0] {
		case ledgerconst.AccountPrefix:
			acc, err := decodeAccount(it.Key[1:], it.Value)
			if err != nil {
				return nil, fmt.Errorf("decode account record %x: %w", it.Key, err)
			}
			l.Accounts = append(l.Accounts, acc)
		case ledgerconst.CostUnitKey:
			unit := bigint.FromBytes(it.Value)
			if !unit.IsInt64() || unit.Sign() <= 0 {
				return nil, fmt.Errorf("invalid storage cost unit %s", unit)
			}
			l.CostUnit = unit.Int64()
			measured = true
		case ledgerconst.OwnerKey:
			owner, err := util.Uint160DecodeBytesBE(it.Value)
			if err != nil {
				return nil, fmt.Errorf("decode owner: %w", err)
			}
			l.Owner = owner
		case ledgerconst.SupplyKey:
			l.Supply = bigint.FromBytes(it.Value)
		}
	}

	if !measured {
		return nil, errors.New("storage cost unit is missing")
	}

	sort.Slice(l.Accounts, func(i, j int) bool {
		return bytes.Compare(l.Accounts[i].Hash[:], l.Accounts[j].Hash[:]) < 0
	})

	return l, nil
}

// Balance returns balance of the account and a flag of its registration.
func (l *Ledger) Balance(acc util.Uint160) (*big.Int, bool) {
	i := sort.Search(len(l.Accounts), func(i int) bool {
		return bytes.Compare(l.Accounts[i].Hash[:], acc[:]) >= 0
	})
	if i < len(l.Accounts) && l.Accounts[i].Hash.Equals(acc) {
		return l.Accounts[i].Balance, true
	}

	return nil, false
}

// Check verifies balance invariants of the decoded state: every balance is
// within [0, MaxBalance] and balances sum up to the total supply.
func (l *Ledger) Check() error {
	maxBalance, _ := new(big.Int).SetString(ledgerconst.MaxBalance, 10)
	sum := new(big.Int)

	for _, acc := range l.Accounts {
		if acc.Balance.Sign() < 0 || acc.Balance.Cmp(maxBalance) > 0 {
			return fmt.Errorf("balance of %s is out of range: %s", acc.Hash.StringLE(), acc.Balance)
		}
		sum.Add(sum, acc.Balance)
	}

	if sum.Cmp(l.Supply) != 0 {
		return fmt.Errorf("balances sum %s differs from total supply %s", sum, l.Supply)
	}

	return nil
}

func decodeAccount(rawHash, value []byte) (Account, error) {
	h, err := util.Uint160DecodeBytesBE(rawHash)
	if err != nil {
		return Account{}, fmt.Errorf("decode account hash: %w", err)
	}

	item, err := stackitem.Deserialize(value)
	if err != nil {
		return Account{}, fmt.Errorf("deserialize record: %w", err)
	}

	fields, ok := item.Value().([]stackitem.Item)
	if !ok || len(fields) != 1 {
		return Account{}, fmt.Errorf("unexpected record item %s", item.Type())
	}

	balance, err := fields[0].TryInteger()
	if err != nil {
		return Account{}, fmt.Errorf("decode balance: %w", err)
	}

	return Account{Hash: h, Balance: balance}, nil
}
