// Package ledger contains RPC wrappers for Storage Ledger contract.
package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/nep17"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// LedgerBounds is a contract-specific ledger.Bounds type used by its methods.
type LedgerBounds struct {
	Min *big.Int
	Max *big.Int
}

// LedgerStorageBalance is a contract-specific ledger.StorageBalance type used by its methods.
type LedgerStorageBalance struct {
	Total     *big.Int
	Available *big.Int
}

// RegistrationEvent represents "Registration" event emitted by the contract.
type RegistrationEvent struct {
	Account util.Uint160
	Deposit *big.Int
}

// StorageDepositEvent represents "StorageDeposit" event emitted by the contract.
type StorageDepositEvent struct {
	Account   util.Uint160
	Total     *big.Int
	Available *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	nep17.Invoker

	CallAndExpandIterator(contract util.Uint160, method string, maxItems int, params ...any) (*result.Invoke, error)
	TerminateSession(sessionID uuid.UUID) error
	TraverseIterator(sessionID uuid.UUID, iterator *result.Iterator, num int) ([]stackitem.Item, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	nep17.Actor

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	Sender() util.Uint160
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	nep17.TokenReader
	invoker Invoker
	hash    util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	nep17.TokenWriter
	actor Actor
	hash  util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{*nep17.NewReader(invoker, hash), invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	var nep17t = nep17.New(actor, hash)
	return &Contract{ContractReader{nep17t.TokenReader, actor, hash}, nep17t.TokenWriter, actor, hash}
}

// StorageBalanceBounds invokes `storageBalanceBounds` method of contract.
func (c *ContractReader) StorageBalanceBounds() (*LedgerBounds, error) {
	return itemToLedgerBounds(unwrap.Item(c.invoker.Call(c.hash, "storageBalanceBounds")))
}

// StorageBalanceOf invokes `storageBalanceOf` method of contract. It returns
// nil without error if the account is not registered.
func (c *ContractReader) StorageBalanceOf(account util.Uint160) (*LedgerStorageBalance, error) {
	return itemToLedgerStorageBalance(unwrap.Item(c.invoker.Call(c.hash, "storageBalanceOf", account)))
}

// StorageCostUnit invokes `storageCostUnit` method of contract.
func (c *ContractReader) StorageCostUnit() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "storageCostUnit"))
}

// ListAccounts invokes `listAccounts` method of contract.
func (c *ContractReader) ListAccounts() (uuid.UUID, result.Iterator, error) {
	return unwrap.SessionIterator(c.invoker.Call(c.hash, "listAccounts"))
}

// ListAccountsExpanded is similar to ListAccounts (uses the same contract
// method), but can be useful if the server used doesn't support sessions and
// doesn't expand iterators. It creates a script that will get the specified
// number of result items from the iterator right in the VM and return them to
// you. It's only limited by VM stack and GAS available for RPC invocations.
func (c *ContractReader) ListAccountsExpanded(_numOfIteratorItems int) ([]stackitem.Item, error) {
	return unwrap.Array(c.invoker.CallAndExpandIterator(c.hash, "listAccounts", _numOfIteratorItems))
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// Burn creates a transaction invoking `burn` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Burn(from util.Uint160, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "burn", from, amount)
}

// BurnTransaction creates a transaction invoking `burn` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) BurnTransaction(from util.Uint160, amount *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "burn", from, amount)
}

// Mint creates a transaction invoking `mint` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Mint(to util.Uint160, amount *big.Int) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "mint", to, amount)
}

// MintTransaction creates a transaction invoking `mint` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) MintTransaction(to util.Uint160, amount *big.Int) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "mint", to, amount)
}

// Update creates a transaction invoking `update` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) Update(script []byte, manifest []byte, data any) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "update", script, manifest, data)
}

// UpdateTransaction creates a transaction invoking `update` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) UpdateTransaction(script []byte, manifest []byte, data any) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "update", script, manifest, data)
}

// UpdateUnsigned creates a transaction invoking `update` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) UpdateUnsigned(script []byte, manifest []byte, data any) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "update", nil, script, manifest, data)
}

// itemToLedgerBounds converts stack item into *LedgerBounds.
func itemToLedgerBounds(item stackitem.Item, err error) (*LedgerBounds, error) {
	if err != nil {
		return nil, err
	}
	var res = new(LedgerBounds)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of LedgerBounds from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *LedgerBounds) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err   error
	)
	index++
	res.Min, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Min: %w", err)
	}

	index++
	res.Max, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Max: %w", err)
	}

	return nil
}

// itemToLedgerStorageBalance converts stack item into *LedgerStorageBalance.
// Null item is converted to nil.
func itemToLedgerStorageBalance(item stackitem.Item, err error) (*LedgerStorageBalance, error) {
	if err != nil {
		return nil, err
	}
	if _, ok := item.(stackitem.Null); ok {
		return nil, nil
	}
	var res = new(LedgerStorageBalance)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of LedgerStorageBalance from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *LedgerStorageBalance) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err   error
	)
	index++
	res.Total, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Total: %w", err)
	}

	index++
	res.Available, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Available: %w", err)
	}

	return nil
}

// RegistrationEventsFromApplicationLog retrieves a set of all events with
// "Registration" name emitted by the given contract from the provided
// [result.ApplicationLog].
func RegistrationEventsFromApplicationLog(log *result.ApplicationLog, contract util.Uint160) ([]*RegistrationEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*RegistrationEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "Registration" || !e.ScriptHash.Equals(contract) {
				continue
			}
			event := new(RegistrationEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize RegistrationEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to RegistrationEvent or
// returns an error if it's not possible to do to so.
func (e *RegistrationEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err   error
	)
	index++
	e.Account, err = itemToUint160(arr[index])
	if err != nil {
		return fmt.Errorf("field Account: %w", err)
	}

	index++
	e.Deposit, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Deposit: %w", err)
	}

	return nil
}

// StorageDepositEventsFromApplicationLog retrieves a set of all events with
// "StorageDeposit" name emitted by the given contract from the provided
// [result.ApplicationLog].
func StorageDepositEventsFromApplicationLog(log *result.ApplicationLog, contract util.Uint160) ([]*StorageDepositEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*StorageDepositEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "StorageDeposit" || !e.ScriptHash.Equals(contract) {
				continue
			}
			event := new(StorageDepositEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize StorageDepositEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to StorageDepositEvent or
// returns an error if it's not possible to do to so.
func (e *StorageDepositEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err   error
	)
	index++
	e.Account, err = itemToUint160(arr[index])
	if err != nil {
		return fmt.Errorf("field Account: %w", err)
	}

	index++
	e.Total, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Total: %w", err)
	}

	index++
	e.Available, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Available: %w", err)
	}

	return nil
}

func itemToUint160(item stackitem.Item) (util.Uint160, error) {
	b, err := item.TryBytes()
	if err != nil {
		return util.Uint160{}, err
	}
	u, err := util.Uint160DecodeBytesBE(b)
	if err != nil {
		return util.Uint160{}, err
	}
	return u, nil
}
