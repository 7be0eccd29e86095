package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nspcc-dev/storage-ledger/common"
	"github.com/nspcc-dev/storage-ledger/contracts/ledger/ledgerconst"
)

// Errors of the contract calls. Use ParseFault to get them from the failed
// invocation.
var (
	ErrAlreadyRegistered   = errors.New(ledgerconst.ErrAlreadyRegistered)
	ErrNotRegistered       = errors.New(ledgerconst.ErrNotRegistered)
	ErrBalanceOverflow     = errors.New(ledgerconst.ErrBalanceOverflow)
	ErrInsufficientBalance = errors.New(ledgerconst.ErrInsufficientBalance)
	ErrInsufficientDeposit = errors.New(ledgerconst.ErrInsufficientDeposit)
	ErrSupplyOverflow      = errors.New(ledgerconst.ErrSupplyOverflow)
	ErrInvalidAccount      = errors.New(ledgerconst.ErrInvalidAccount)
	ErrOnlyGAS             = errors.New(ledgerconst.ErrOnlyGAS)
	ErrInvalidDepositData  = errors.New(ledgerconst.ErrInvalidDepositData)
	ErrNegativeAmount      = errors.New(ledgerconst.ErrNegativeAmount)
	ErrNegativeSupply      = errors.New(ledgerconst.ErrNegativeSupply)
	ErrCostUnitMeasured    = errors.New(ledgerconst.ErrCostUnitMeasured)

	ErrOwnerWitnessFailed     = errors.New(common.ErrOwnerWitnessFailed)
	ErrCommitteeWitnessFailed = errors.New(common.ErrCommitteeWitnessFailed)
	ErrWitnessFailed          = errors.New(common.ErrWitnessFailed)
)

// Messages containing other ones go first.
var knownFaults = []error{
	ErrAlreadyRegistered,
	ErrNotRegistered,
	ErrBalanceOverflow,
	ErrInsufficientBalance,
	ErrInsufficientDeposit,
	ErrSupplyOverflow,
	ErrInvalidAccount,
	ErrOnlyGAS,
	ErrInvalidDepositData,
	ErrNegativeAmount,
	ErrNegativeSupply,
	ErrCostUnitMeasured,
	ErrOwnerWitnessFailed,
	ErrCommitteeWitnessFailed,
	ErrWitnessFailed,
}

// ParseFault matches the FAULT exception (or an error carrying it) against
// the contract errors. It returns the error wrapping matched one or the
// original error if nothing matched. Nil error is returned as is.
func ParseFault(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	for _, known := range knownFaults {
		if strings.Contains(msg, known.Error()) {
			return fmt.Errorf("%w: %w", known, err)
		}
	}

	return err
}
