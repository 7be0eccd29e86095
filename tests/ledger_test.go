package tests

import (
	"bytes"
	"encoding/json"
	"math/big"
	"path"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/neo-go/pkg/core/native/nativenames"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/storage-ledger/common"
	"github.com/nspcc-dev/storage-ledger/contracts/ledger/ledgerconst"
	"github.com/nspcc-dev/storage-ledger/tests/dump"
	"github.com/stretchr/testify/require"
)

const ledgerPath = "../contracts/ledger"

// probeAccount mirrors the identifier used by the contract to measure
// the size of an account record.
var probeAccount = util.Uint160{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

type allocation struct {
	account util.Uint160
	amount  any
}

type ledgerEnv struct {
	e      *neotest.Executor
	c      *neotest.Contract
	ledger *neotest.ContractInvoker
	gas    util.Uint160
}

func ledgerDeployData(owner util.Uint160, allocs ...allocation) []any {
	list := make([]any, 0, len(allocs))
	for _, a := range allocs {
		list = append(list, []any{a.account, a.amount})
	}

	return []any{owner, list}
}

func newLedgerEnv(t *testing.T, allocs ...allocation) ledgerEnv {
	e := newExecutor(t)

	c := neotest.CompileFile(t, e.CommitteeHash, ledgerPath, path.Join(ledgerPath, "config.yml"))
	e.DeployContract(t, c, ledgerDeployData(e.CommitteeHash, allocs...))

	return ledgerEnv{
		e:      e,
		c:      c,
		ledger: e.CommitteeInvoker(c.Hash),
		gas:    e.NativeHash(t, nativenames.Gas),
	}
}

// expectedCostUnit returns the size of the stored empty account record.
func expectedCostUnit(t *testing.T) int64 {
	value, err := stackitem.Serialize(stackitem.NewStruct([]stackitem.Item{stackitem.Make(0)}))
	require.NoError(t, err)

	return int64(1 + util.Uint160Size + len(value))
}

func (env ledgerEnv) deposit(t *testing.T, payer neotest.Signer, amount int64, data any) util.Uint256 {
	inv := env.e.NewInvoker(env.gas, payer)
	return inv.Invoke(t, true, "transfer", payer.ScriptHash(), env.c.Hash, amount, data)
}

func (env ledgerEnv) contractGAS() int64 {
	return env.e.Chain.GetUtilityTokenBalance(env.c.Hash).Int64()
}

func (env ledgerEnv) bounds(t *testing.T) (int64, int64) {
	s, err := env.ledger.TestInvoke(t, "storageBalanceBounds")
	require.NoError(t, err)

	return structInts(t, s.Pop().Item())
}

func (env ledgerEnv) storageBalance(t *testing.T, acc util.Uint160) (int64, int64, bool) {
	s, err := env.ledger.TestInvoke(t, "storageBalanceOf", acc)
	require.NoError(t, err)

	item := s.Pop().Item()
	if _, ok := item.(stackitem.Null); ok {
		return 0, 0, false
	}

	total, available := structInts(t, item)
	return total, available, true
}

func structInts(t *testing.T, item stackitem.Item) (int64, int64) {
	fields, ok := item.Value().([]stackitem.Item)
	require.True(t, ok)
	require.Len(t, fields, 2)

	a, err := fields[0].TryInteger()
	require.NoError(t, err)
	b, err := fields[1].TryInteger()
	require.NoError(t, err)

	return a.Int64(), b.Int64()
}

// refunds returns amounts of GAS sent by the contract in the transaction.
func (env ledgerEnv) refunds(t *testing.T, h util.Uint256) []int64 {
	var res []int64
	for _, ev := range env.events(t, h, env.gas, "Transfer") {
		from, err := ev[0].TryBytes()
		if err != nil || !bytes.Equal(from, env.c.Hash.BytesBE()) {
			continue
		}

		amount, err := ev[2].TryInteger()
		require.NoError(t, err)
		res = append(res, amount.Int64())
	}

	return res
}

func (env ledgerEnv) events(t *testing.T, h util.Uint256, contract util.Uint160, name string) [][]stackitem.Item {
	aer := env.e.GetTxExecResult(t, h)

	var res [][]stackitem.Item
	for _, ev := range aer.Events {
		if ev.ScriptHash.Equals(contract) && ev.Name == name {
			res = append(res, ev.Item.Value().([]stackitem.Item))
		}
	}

	return res
}

func TestLedger_Calibration(t *testing.T) {
	env := newLedgerEnv(t)

	unit := expectedCostUnit(t)
	env.ledger.Invoke(t, unit, "storageCostUnit")

	// probe record does not survive deployment
	_, _, ok := env.storageBalance(t, probeAccount)
	require.False(t, ok)
	env.ledger.Invoke(t, 0, "balanceOf", probeAccount)

	env.ledger.Invoke(t, 0, "totalSupply")
}

func TestLedger_Bounds(t *testing.T) {
	env := newLedgerEnv(t)
	unit := expectedCostUnit(t)

	minB, maxB := env.bounds(t)
	require.Equal(t, unit*env.e.Chain.GetStoragePrice(), minB)
	require.Equal(t, minB, maxB)

	t.Run("follows storage price", func(t *testing.T) {
		price := env.e.Chain.GetStoragePrice() * 2
		policy := env.e.CommitteeInvoker(env.e.NativeHash(t, nativenames.Policy))
		policy.Invoke(t, stackitem.Null{}, "setStoragePrice", price)

		minB, maxB := env.bounds(t)
		require.Equal(t, unit*price, minB)
		require.Equal(t, unit*price, maxB)
	})
}

func TestLedger_StorageBalanceOf(t *testing.T) {
	acc := util.Uint160{1, 2, 3}
	env := newLedgerEnv(t, allocation{account: acc, amount: 10})

	minB, _ := env.bounds(t)

	total, available, ok := env.storageBalance(t, acc)
	require.True(t, ok)
	require.Equal(t, minB, total)
	require.Equal(t, int64(0), available)

	env.ledger.Invoke(t, stackitem.Null{}, "storageBalanceOf", util.Uint160{3, 2, 1})
	env.ledger.InvokeFail(t, ledgerconst.ErrInvalidAccount, "storageBalanceOf", []byte{1, 2, 3})
}

func TestLedger_StorageDeposit(t *testing.T) {
	env := newLedgerEnv(t)
	cost, _ := env.bounds(t)

	t.Run("not enough", func(t *testing.T) {
		acc := env.e.NewAccount(t)
		inv := env.e.NewInvoker(env.gas, acc)

		inv.InvokeFail(t, ledgerconst.ErrInsufficientDeposit, "transfer",
			acc.ScriptHash(), env.c.Hash, cost-1, nil)

		_, _, ok := env.storageBalance(t, acc.ScriptHash())
		require.False(t, ok)
		require.Equal(t, int64(0), env.contractGAS())
	})

	t.Run("exact", func(t *testing.T) {
		acc := env.e.NewAccount(t)
		before := env.contractGAS()

		h := env.deposit(t, acc, cost, nil)
		require.Empty(t, env.refunds(t, h))
		require.Equal(t, before+cost, env.contractGAS())

		reg := env.events(t, h, env.c.Hash, "Registration")
		require.Len(t, reg, 1)
		require.Equal(t, acc.ScriptHash().BytesBE(), reg[0][0].Value())
		require.Equal(t, big.NewInt(cost), reg[0][1].Value())

		sd := env.events(t, h, env.c.Hash, "StorageDeposit")
		require.Len(t, sd, 1)
		require.Equal(t, big.NewInt(cost), sd[0][1].Value())
		require.Equal(t, big.NewInt(0), sd[0][2].Value())

		total, available, ok := env.storageBalance(t, acc.ScriptHash())
		require.True(t, ok)
		require.Equal(t, cost, total)
		require.Equal(t, int64(0), available)
		env.ledger.Invoke(t, 0, "balanceOf", acc.ScriptHash())
	})

	t.Run("excess is refunded", func(t *testing.T) {
		acc := env.e.NewAccount(t)
		before := env.contractGAS()

		h := env.deposit(t, acc, cost+12345, nil)
		require.Equal(t, []int64{12345}, env.refunds(t, h))
		require.Equal(t, before+cost, env.contractGAS())

		_, _, ok := env.storageBalance(t, acc.ScriptHash())
		require.True(t, ok)
	})

	t.Run("registered account", func(t *testing.T) {
		acc := env.e.NewAccount(t)
		env.deposit(t, acc, cost, nil)
		before := env.contractGAS()

		h := env.deposit(t, acc, cost*3, nil)
		require.Equal(t, []int64{cost * 3}, env.refunds(t, h))
		require.Equal(t, before, env.contractGAS())
		require.Empty(t, env.events(t, h, env.c.Hash, "Registration"))

		sd := env.events(t, h, env.c.Hash, "StorageDeposit")
		require.Len(t, sd, 1)
		require.Equal(t, big.NewInt(cost), sd[0][1].Value())

		t.Run("zero amount", func(t *testing.T) {
			h := env.deposit(t, acc, 0, nil)
			require.Empty(t, env.refunds(t, h))
			require.Equal(t, before, env.contractGAS())
		})
	})

	t.Run("for another account", func(t *testing.T) {
		payer := env.e.NewAccount(t)
		target := util.Uint160{0xde, 0xad}

		h := env.deposit(t, payer, cost+1, []any{target, false})
		require.Equal(t, []int64{1}, env.refunds(t, h))

		_, _, ok := env.storageBalance(t, target)
		require.True(t, ok)
		_, _, ok = env.storageBalance(t, payer.ScriptHash())
		require.False(t, ok)

		t.Run("registration only flag", func(t *testing.T) {
			h := env.deposit(t, payer, cost, []any{target, true})
			require.Equal(t, []int64{cost}, env.refunds(t, h))
		})

		t.Run("empty target", func(t *testing.T) {
			h := env.deposit(t, payer, cost, []any{nil, true})
			require.Empty(t, env.refunds(t, h))

			_, _, ok := env.storageBalance(t, payer.ScriptHash())
			require.True(t, ok)
		})

		t.Run("invalid target", func(t *testing.T) {
			inv := env.e.NewInvoker(env.gas, payer)
			inv.InvokeFail(t, ledgerconst.ErrInvalidAccount, "transfer",
				payer.ScriptHash(), env.c.Hash, cost, []any{[]byte{1, 2, 3}, false})
		})

		t.Run("malformed data", func(t *testing.T) {
			inv := env.e.NewInvoker(env.gas, payer)
			for _, data := range []any{
				[]any{},
				[]any{target},
				[]any{target, false, 1},
			} {
				inv.InvokeFail(t, ledgerconst.ErrInvalidDepositData, "transfer",
					payer.ScriptHash(), env.c.Hash, cost, data)
			}
		})
	})

	t.Run("not GAS", func(t *testing.T) {
		acc := env.e.NewAccount(t)
		inv := env.e.NewInvoker(env.c.Hash, acc)

		inv.InvokeFail(t, ledgerconst.ErrOnlyGAS, "onNEP17Payment", acc.ScriptHash(), cost, nil)
	})
}

func TestLedger_DeployAllocations(t *testing.T) {
	a, b := util.Uint160{1}, util.Uint160{2}

	env := newLedgerEnv(t,
		allocation{account: a, amount: 100},
		allocation{account: b, amount: 0},
	)

	env.ledger.Invoke(t, 100, "balanceOf", a)
	env.ledger.Invoke(t, 0, "balanceOf", b)
	env.ledger.Invoke(t, 100, "totalSupply")

	t.Run("duplicate account", func(t *testing.T) {
		e := newExecutor(t)
		c := neotest.CompileFile(t, e.CommitteeHash, ledgerPath, path.Join(ledgerPath, "config.yml"))

		e.DeployContractCheckFAULT(t, c, ledgerDeployData(e.CommitteeHash,
			allocation{account: a, amount: 1},
			allocation{account: a, amount: 2},
		), ledgerconst.ErrAlreadyRegistered)
	})

	t.Run("probe account", func(t *testing.T) {
		e := newExecutor(t)
		c := neotest.CompileFile(t, e.CommitteeHash, ledgerPath, path.Join(ledgerPath, "config.yml"))

		e.DeployContract(t, c, ledgerDeployData(e.CommitteeHash,
			allocation{account: probeAccount, amount: 1}))
		e.CommitteeInvoker(c.Hash).Invoke(t, 1, "balanceOf", probeAccount)
	})
}

func TestLedger_Mint(t *testing.T) {
	maxBalance, ok := new(big.Int).SetString(ledgerconst.MaxBalance, 10)
	require.True(t, ok)

	a, b := util.Uint160{1}, util.Uint160{2}
	env := newLedgerEnv(t,
		allocation{account: a, amount: maxBalance},
		allocation{account: b, amount: 0},
	)

	acc := env.e.NewAccount(t)
	env.ledger.WithSigners(acc).InvokeFail(t, common.ErrOwnerWitnessFailed, "mint", b, 1)

	env.ledger.InvokeFail(t, ledgerconst.ErrBalanceOverflow, "mint", a, 1)
	env.ledger.Invoke(t, maxBalance, "balanceOf", a)

	env.ledger.InvokeFail(t, ledgerconst.ErrNotRegistered, "mint", util.Uint160{3}, 1)
	env.ledger.Invoke(t, stackitem.Null{}, "storageBalanceOf", util.Uint160{3})
	env.ledger.Invoke(t, 0, "balanceOf", util.Uint160{3})
	env.ledger.InvokeFail(t, ledgerconst.ErrNegativeAmount, "mint", b, -1)

	// balance of b fits, but total supply does not
	env.ledger.InvokeFail(t, ledgerconst.ErrSupplyOverflow, "mint", b, 1)
	env.ledger.Invoke(t, 0, "balanceOf", b)
	env.ledger.Invoke(t, maxBalance, "totalSupply")
}

func TestLedger_TransferBurn(t *testing.T) {
	env := newLedgerEnv(t)
	cost, _ := env.bounds(t)

	alice, bob := env.e.NewAccount(t), env.e.NewAccount(t)
	env.deposit(t, alice, cost, nil)
	env.deposit(t, bob, cost, nil)

	env.ledger.Invoke(t, stackitem.Null{}, "mint", alice.ScriptHash(), 1000)

	aliceInv := env.ledger.WithSigners(alice)

	h := aliceInv.Invoke(t, true, "transfer", alice.ScriptHash(), bob.ScriptHash(), 300, nil)
	tr := env.events(t, h, env.c.Hash, "Transfer")
	require.Len(t, tr, 1)
	require.Equal(t, big.NewInt(300), tr[0][2].Value())

	env.ledger.Invoke(t, 700, "balanceOf", alice.ScriptHash())
	env.ledger.Invoke(t, 300, "balanceOf", bob.ScriptHash())

	t.Run("no witness", func(t *testing.T) {
		env.ledger.WithSigners(bob).Invoke(t, false, "transfer",
			alice.ScriptHash(), bob.ScriptHash(), 1, nil)
		env.ledger.Invoke(t, 700, "balanceOf", alice.ScriptHash())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		aliceInv.InvokeFail(t, ledgerconst.ErrInsufficientBalance, "transfer",
			alice.ScriptHash(), bob.ScriptHash(), 701, nil)
	})

	t.Run("unregistered receiver", func(t *testing.T) {
		aliceInv.InvokeFail(t, ledgerconst.ErrNotRegistered, "transfer",
			alice.ScriptHash(), util.Uint160{9}, 1, nil)
		env.ledger.Invoke(t, 700, "balanceOf", alice.ScriptHash())
	})

	t.Run("negative amount", func(t *testing.T) {
		aliceInv.InvokeFail(t, ledgerconst.ErrNegativeAmount, "transfer",
			alice.ScriptHash(), bob.ScriptHash(), -1, nil)
	})

	t.Run("burn", func(t *testing.T) {
		env.ledger.WithSigners(bob).InvokeFail(t, common.ErrWitnessFailed, "burn", alice.ScriptHash(), 1)
		aliceInv.InvokeFail(t, ledgerconst.ErrInsufficientBalance, "burn", alice.ScriptHash(), 701)

		aliceInv.Invoke(t, stackitem.Null{}, "burn", alice.ScriptHash(), 200)
		env.ledger.Invoke(t, 500, "balanceOf", alice.ScriptHash())
		env.ledger.Invoke(t, 800, "totalSupply")
	})
}

func TestLedger_Update(t *testing.T) {
	env := newLedgerEnv(t)

	rawManifest, err := json.Marshal(env.c.Manifest)
	require.NoError(t, err)
	rawNef, err := env.c.NEF.Bytes()
	require.NoError(t, err)

	acc := env.e.NewAccount(t)
	env.ledger.WithSigners(acc).InvokeFail(t, common.ErrCommitteeWitnessFailed, "update",
		rawNef, rawManifest, nil)

	env.ledger.InvokeFail(t, common.ErrAlreadyUpdated, "update", rawNef, rawManifest, nil)

	env.ledger.Invoke(t, common.Version, "version")
	env.ledger.Invoke(t, expectedCostUnit(t), "storageCostUnit")
}

func TestLedger_ContractState(t *testing.T) {
	env := newLedgerEnv(t)

	cs := env.e.Chain.GetContractState(env.c.Hash)
	require.NotNil(t, cs)
	require.Equal(t, []string{"NEP-17"}, cs.Manifest.SupportedStandards)

	for _, m := range []string{"storageBalanceBounds", "storageBalanceOf", "storageCostUnit", "balanceOf"} {
		md := cs.Manifest.ABI.GetMethod(m, -1)
		require.NotNil(t, md, m)
		require.True(t, md.Safe, m)
	}
}

func TestLedger_Dump(t *testing.T) {
	a := util.Uint160{1}
	env := newLedgerEnv(t, allocation{account: a, amount: 100})
	cost, _ := env.bounds(t)

	acc := env.e.NewAccount(t)
	env.deposit(t, acc, cost, nil)
	env.ledger.Invoke(t, stackitem.Null{}, "mint", acc.ScriptHash(), 5)

	cs := env.e.Chain.GetContractState(env.c.Hash)
	require.NotNil(t, cs)

	accountKey := func(h util.Uint160) []byte {
		return append([]byte{ledgerconst.AccountPrefix}, h.BytesBE()...)
	}

	var items []dump.Item
	for _, key := range [][]byte{
		{ledgerconst.CostUnitKey},
		{ledgerconst.OwnerKey},
		{ledgerconst.SupplyKey},
		accountKey(a),
		accountKey(acc.ScriptHash()),
		accountKey(probeAccount),
	} {
		if v := env.e.Chain.GetStorageItem(cs.ID, key); v != nil {
			items = append(items, dump.Item{Key: key, Value: v})
		}
	}

	l, err := dump.Decode(*cs, items)
	require.NoError(t, err)
	require.NoError(t, l.Check())

	require.Equal(t, expectedCostUnit(t), l.CostUnit)
	require.Equal(t, env.e.CommitteeHash, l.Owner)
	require.EqualValues(t, 105, l.Supply.Int64())
	require.Len(t, l.Accounts, 2)

	b, ok := l.Balance(acc.ScriptHash())
	require.True(t, ok)
	require.EqualValues(t, 5, b.Int64())
}

func TestLedger_ListAccounts(t *testing.T) {
	a, b := util.Uint160{1}, util.Uint160{2}
	env := newLedgerEnv(t,
		allocation{account: a, amount: 10},
		allocation{account: b, amount: 20},
	)

	s, err := env.ledger.TestInvoke(t, "listAccounts")
	require.NoError(t, err)

	items := iteratorToArray(s.Pop().Value().(*storage.Iterator))
	require.Len(t, items, 2)

	balances := make(map[util.Uint160]int64)
	for _, item := range items {
		kv := item.Value().([]stackitem.Item)
		require.Len(t, kv, 2)

		rawHash, err := kv[0].TryBytes()
		require.NoError(t, err)
		h, err := util.Uint160DecodeBytesBE(rawHash)
		require.NoError(t, err)

		record := kv[1].Value().([]stackitem.Item)
		balance, err := record[0].TryInteger()
		require.NoError(t, err)

		balances[h] = balance.Int64()
	}

	require.Equal(t, map[util.Uint160]int64{a: 10, b: 20}, balances)
}
