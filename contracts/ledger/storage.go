package ledger

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/gas"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/policy"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/nspcc-dev/storage-ledger/common"
	"github.com/nspcc-dev/storage-ledger/contracts/ledger/ledgerconst"
)

type (
	// Bounds is a range of the storage deposit an account can have.
	// Deposit is a flat fee, so both bounds are equal.
	Bounds struct {
		Min int
		Max int
	}

	// StorageBalance is a storage deposit of the registered account.
	StorageBalance struct {
		// Deposit locked by the account record
		Total int
		// Part of the deposit that can be withdrawn, always zero
		Available int
	}
)

// StorageBalanceBounds returns minimum and maximum storage deposit of an
// account in GAS. The value follows the current storage price of the
// Policy contract.
func StorageBalanceBounds() Bounds {
	ctx := storage.GetReadOnlyContext()
	return bounds(ctx)
}

// StorageBalanceOf returns StorageBalance of the registered account or
// nil if the account is not registered.
func StorageBalanceOf(account interop.Hash160) any {
	checkAccount(account)

	ctx := storage.GetReadOnlyContext()
	if !isRegistered(ctx, account) {
		return nil
	}

	return storageBalance(ctx)
}

// StorageCostUnit returns the number of storage bytes taken by a single
// account record.
func StorageCostUnit() int {
	ctx := storage.GetReadOnlyContext()
	return storageCostUnit(ctx)
}

// OnNEP17Payment is a callback for NEP-17 compatible native GAS contract.
// The payment is a storage deposit for the target account, see package
// documentation for the data format.
//
// An unregistered target is registered if the payment covers the deposit
// and the rest of the payment is refunded to the payer. A payment for the
// registered target is refunded in full.
//
// It produces Registration notification on registration and StorageDeposit
// notification in both cases.
func OnNEP17Payment(from interop.Hash160, amount int, data any) {
	caller := runtime.GetCallingScriptHash()
	if !caller.Equals(gas.Hash) {
		common.AbortWithMessage(ledgerconst.ErrOnlyGAS)
	}

	target := from
	if data != nil {
		if len(data.([]any)) != 2 {
			panic(ledgerconst.ErrInvalidDepositData)
		}

		args := data.(struct {
			target           interop.Hash160
			registrationOnly bool
		})
		if args.target != nil && len(args.target) != 0 {
			target = args.target
		}
	}

	checkAccount(target)

	ctx := storage.GetContext()

	if isRegistered(ctx, target) {
		runtime.Log("account is already registered, refunding deposit")
		common.RefundGAS(from, amount)
	} else {
		cost := bounds(ctx).Min
		if amount < cost {
			panic(ledgerconst.ErrInsufficientDeposit)
		}

		register(ctx, target)
		runtime.Notify("Registration", target, cost)
		runtime.Log("account registered")

		common.RefundGAS(from, amount-cost)
	}

	b := storageBalance(ctx)
	runtime.Notify("StorageDeposit", target, b.Total, b.Available)
}

func bounds(ctx storage.Context) Bounds {
	fee := storageCostUnit(ctx) * policy.GetStoragePrice()

	return Bounds{
		Min: fee,
		Max: fee,
	}
}

func storageBalance(ctx storage.Context) StorageBalance {
	return StorageBalance{
		Total:     bounds(ctx).Min,
		Available: 0,
	}
}
