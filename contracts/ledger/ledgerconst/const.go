/*
Package ledgerconst contains constants shared by the Storage Ledger contract
and its off-chain clients.
*/
package ledgerconst

const (
	// MaxBalance is the largest amount (2^128-1) an account balance or the
	// total supply can reach. It is decimal because the contract parses it
	// with StdLib.
	MaxBalance = "340282366920938463463374607431768211455"

	// AccountPrefix is a storage key prefix of account records.
	AccountPrefix = 'a'
	// CostUnitKey is a storage key of the measured per-account footprint.
	CostUnitKey = 'u'
	// OwnerKey is a storage key of the token owner account.
	OwnerKey = 'o'
	// SupplyKey is a storage key of the total supply.
	SupplyKey = 's'
)

// Exception messages thrown by the contract. Clients match FAULT exceptions
// against them.
const (
	ErrAlreadyRegistered   = "account is already registered"
	ErrNotRegistered       = "account is not registered"
	ErrBalanceOverflow     = "balance overflow"
	ErrInsufficientBalance = "insufficient balance"
	ErrInsufficientDeposit = "attached deposit is less than the minimum storage balance"
	ErrSupplyOverflow      = "total supply overflow"
	ErrNegativeAmount      = "negative amount"
	ErrNegativeSupply      = "negative supply after burn"
	ErrInvalidAccount      = "invalid account"
	ErrInvalidDepositData  = "invalid storage deposit data"
	ErrOnlyGAS             = "only GAS can be accepted for storage deposit"
	ErrCostUnitMeasured    = "storage cost unit is already measured"
)
