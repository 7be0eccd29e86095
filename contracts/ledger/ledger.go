package ledger

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/nspcc-dev/storage-ledger/common"
	"github.com/nspcc-dev/storage-ledger/contracts/ledger/ledgerconst"
)

// account is a record of the registered account.
type account struct {
	// Token balance
	Balance int
}

// probeAccount is the longest account identifier with all bytes set. It
// is registered for a moment at deploy to measure the record footprint.
const probeAccount = "\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff" +
	"\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff"

func accountKey(id interop.Hash160) []byte {
	return append([]byte{ledgerconst.AccountPrefix}, id...)
}

func maxBalance() int {
	return std.Atoi(ledgerconst.MaxBalance, 10)
}

func checkAccount(id interop.Hash160) {
	if len(id) != interop.Hash160Len {
		panic(ledgerconst.ErrInvalidAccount)
	}
}

func checkAmount(amount int) {
	if amount < 0 {
		panic(ledgerconst.ErrNegativeAmount)
	}
}

func getAccount(ctx storage.Context, id interop.Hash160) (account, bool) {
	data := common.GetSerialized(ctx, accountKey(id))
	if data == nil {
		return account{}, false
	}

	return data.(account), true
}

func isRegistered(ctx storage.Context, id interop.Hash160) bool {
	return storage.Get(ctx, accountKey(id)) != nil
}

// register creates a zero balance record for the account. It panics if
// the account already exists.
func register(ctx storage.Context, id interop.Hash160) {
	key := accountKey(id)
	if storage.Get(ctx, key) != nil {
		panic(ledgerconst.ErrAlreadyRegistered)
	}

	common.SetSerialized(ctx, key, account{Balance: 0})
}

// unwrapBalance returns balance of the registered account. It panics if
// the account does not exist.
func unwrapBalance(ctx storage.Context, id interop.Hash160) int {
	acc, ok := getAccount(ctx, id)
	if !ok {
		panic(ledgerconst.ErrNotRegistered)
	}

	return acc.Balance
}

// deposit increases balance of the registered account. Balance is left
// untouched if the result exceeds MaxBalance.
func deposit(ctx storage.Context, id interop.Hash160, amount int) {
	checkAmount(amount)

	balance := unwrapBalance(ctx, id)
	if amount > maxBalance()-balance {
		panic(ledgerconst.ErrBalanceOverflow)
	}

	common.SetSerialized(ctx, accountKey(id), account{Balance: balance + amount})
}

// withdraw decreases balance of the registered account.
func withdraw(ctx storage.Context, id interop.Hash160, amount int) {
	checkAmount(amount)

	balance := unwrapBalance(ctx, id)
	if balance < amount {
		panic(ledgerconst.ErrInsufficientBalance)
	}

	common.SetSerialized(ctx, accountKey(id), account{Balance: balance - amount})
}

// measureStorageCostUnit registers the probe account, stores the size of
// its record and removes it. Must be called once, at deploy.
func measureStorageCostUnit(ctx storage.Context) {
	if storage.Get(ctx, ledgerconst.CostUnitKey) != nil {
		panic(ledgerconst.ErrCostUnitMeasured)
	}

	probe := interop.Hash160(probeAccount)
	register(ctx, probe)

	key := accountKey(probe)
	value := storage.Get(ctx, key).([]byte)
	storage.Delete(ctx, key)

	storage.Put(ctx, ledgerconst.CostUnitKey, len(key)+len(value))
}

func storageCostUnit(ctx storage.Context) int {
	return storage.Get(ctx, ledgerconst.CostUnitKey).(int)
}
