package ledger

import (
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// DepositData returns data of the GAS transfer which makes it a storage
// deposit for the target account. Nil target means the sender of the
// transfer.
func DepositData(target *util.Uint160, registrationOnly bool) any {
	if target == nil {
		if !registrationOnly {
			return nil
		}
		return []any{nil, registrationOnly}
	}

	return []any{*target, registrationOnly}
}

// StorageDeposit creates a transaction transferring amount of GAS from the
// actor's account to the contract as a storage deposit for the target (see
// DepositData). Any GAS above the required deposit is returned by the
// contract in the same transaction.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) StorageDeposit(target *util.Uint160, registrationOnly bool, amount *big.Int) (util.Uint256, uint32, error) {
	return gas.New(c.actor).Transfer(c.actor.Sender(), c.hash, amount, DepositData(target, registrationOnly))
}

// StorageDepositTransaction is similar to StorageDeposit, but the transaction
// is signed and returned to the caller instead of being sent.
func (c *Contract) StorageDepositTransaction(target *util.Uint160, registrationOnly bool, amount *big.Int) (*transaction.Transaction, error) {
	return gas.New(c.actor).TransferTransaction(c.actor.Sender(), c.hash, amount, DepositData(target, registrationOnly))
}
