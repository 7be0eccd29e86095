package ledger

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/nspcc-dev/storage-ledger/common"
	"github.com/nspcc-dev/storage-ledger/contracts/ledger/ledgerconst"
)

type (
	// Token holds all token info.
	Token struct {
		// Ticker symbol
		Symbol string
		// Amount of decimals
		Decimals int
	}

	// allocation is an initial balance of the account set at deploy.
	allocation struct {
		account interop.Hash160
		amount  int
	}
)

const (
	symbol   = "SLT"
	decimals = 8
)

var token Token

func init() {
	token = Token{
		Symbol:   symbol,
		Decimals: decimals,
	}
}

// nolint:unused
func _deploy(data any, isUpdate bool) {
	ctx := storage.GetContext()
	if isUpdate {
		args := data.([]any)
		common.CheckVersion(args[len(args)-1].(int))
		return
	}

	args := data.(struct {
		owner       interop.Hash160
		allocations []allocation
	})

	checkAccount(args.owner)

	measureStorageCostUnit(ctx)

	storage.Put(ctx, ledgerconst.OwnerKey, args.owner)

	var (
		supply int
		mint   interop.Hash160
	)
	for i := 0; i < len(args.allocations); i++ { //nolint:intrange // Not supported by NeoGo
		a := args.allocations[i]
		checkAccount(a.account)

		register(ctx, a.account)
		deposit(ctx, a.account, a.amount)
		supply = increaseSupply(supply, a.amount)

		runtime.Notify("Transfer", mint, a.account, a.amount)
	}

	storage.Put(ctx, ledgerconst.SupplyKey, supply)

	runtime.Log("storage ledger contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(nefFile, manifest []byte, data any) {
	common.UpdateContract(nefFile, manifest, data)
}

// Symbol is a NEP-17 standard method that returns SLT token symbol.
func Symbol() string {
	return token.Symbol
}

// Decimals is a NEP-17 standard method that returns precision of token
// balances.
func Decimals() int {
	return token.Decimals
}

// TotalSupply is a NEP-17 standard method that returns total amount of
// tokens held by all accounts.
func TotalSupply() int {
	ctx := storage.GetReadOnlyContext()
	return getSupply(ctx)
}

// BalanceOf is a NEP-17 standard method that returns token balance of the
// specified account. Unregistered accounts have zero balance, use
// StorageBalanceOf to check registration.
func BalanceOf(account interop.Hash160) int {
	checkAccount(account)

	ctx := storage.GetReadOnlyContext()
	acc, _ := getAccount(ctx, account)

	return acc.Balance
}

// ListAccounts returns iterator over registered accounts. Iterator values
// are structures of the account hash and its deserialized record.
func ListAccounts() iterator.Iterator {
	ctx := storage.GetReadOnlyContext()
	return storage.Find(ctx, []byte{ledgerconst.AccountPrefix}, storage.RemovePrefix|storage.DeserializeValues)
}

// Transfer is a NEP-17 standard method that transfers tokens from one
// account to another. It can be invoked only by the account owner.
//
// Both accounts must be registered, it panics otherwise. If receiver is a
// deployed contract, its onNEP17Payment method is called.
//
// It produces Transfer notification.
func Transfer(from, to interop.Hash160, amount int, data any) bool {
	checkAccount(from)
	checkAccount(to)
	checkAmount(amount)

	if !isUsableAddress(from) {
		runtime.Log("bad script hashes")
		return false
	}

	ctx := storage.GetContext()

	withdraw(ctx, from, amount)
	deposit(ctx, to, amount)

	runtime.Notify("Transfer", from, to, amount)

	if management.GetContract(to) != nil {
		contract.Call(to, "onNEP17Payment", contract.All, from, amount, data)
	}

	return true
}

// Mint increases balance of the registered account and total supply. It
// can be invoked only by the token owner.
//
// It produces Transfer notification.
func Mint(to interop.Hash160, amount int) {
	checkAccount(to)

	ctx := storage.GetContext()

	owner := storage.Get(ctx, ledgerconst.OwnerKey).(interop.Hash160)
	common.CheckOwnerWitness(owner)

	deposit(ctx, to, amount)
	supply := increaseSupply(getSupply(ctx), amount)
	storage.Put(ctx, ledgerconst.SupplyKey, supply)

	var mint interop.Hash160
	runtime.Notify("Transfer", mint, to, amount)
	runtime.Log("assets were minted")
}

// Burn decreases balance of the registered account and total supply. It
// can be invoked only by the account owner.
//
// It produces Transfer notification.
func Burn(from interop.Hash160, amount int) {
	checkAccount(from)
	common.CheckWitness(from)

	ctx := storage.GetContext()

	withdraw(ctx, from, amount)

	supply := getSupply(ctx)
	if supply < amount {
		panic(ledgerconst.ErrNegativeSupply)
	}
	storage.Put(ctx, ledgerconst.SupplyKey, supply-amount)

	var burn interop.Hash160
	runtime.Notify("Transfer", from, burn, amount)
	runtime.Log("assets were burned")
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

func getSupply(ctx storage.Context) int {
	supply := storage.Get(ctx, ledgerconst.SupplyKey)
	if supply != nil {
		return supply.(int)
	}

	return 0
}

func increaseSupply(supply, amount int) int {
	checkAmount(amount)
	if amount > maxBalance()-supply {
		panic(ledgerconst.ErrSupplyOverflow)
	}

	return supply + amount
}

// isUsableAddress checks if the sender is either a correct NEO address or SC address.
func isUsableAddress(addr interop.Hash160) bool {
	if runtime.CheckWitness(addr) {
		return true
	}

	// Check if a smart contract is calling script hash
	callingScriptHash := runtime.GetCallingScriptHash()

	return callingScriptHash.Equals(addr)
}
