package migration

import (
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/config"
	"github.com/nspcc-dev/neo-go/pkg/core"
	"github.com/nspcc-dev/neo-go/pkg/core/dao"
	"github.com/nspcc-dev/neo-go/pkg/core/native"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/storage-ledger/tests/dump"
	"github.com/stretchr/testify/require"
)

// Contract provides part of Neo blockchain services related to the Storage
// Ledger contract being tested. Initial state of the contract is restored from
// the dump, then the contract can be updated to the executable compiled from
// the local sources.
//
// Contract instances must be constructed using NewContract.
type Contract struct {
	id int32

	exec *neotest.Executor

	invoker *neotest.ContractInvoker

	bNEF      []byte
	jManifest []byte
}

// ContractOptions groups various options of NewContract.
type ContractOptions struct {
	// Path to the directory containing source code of the Storage Ledger
	// contract. Defaults to the current directory.
	SourceCodeDir string
}

// NewContract constructs Contract from the ledger dump. The chain contains
// the dumped contract state and all its storage items.
func NewContract(tb testing.TB, l *dump.Ledger, opts ContractOptions) *Contract {
	lowLevelStore := storage.NewMemoryStore()
	cachedStore := storage.NewMemCachedStore(lowLevelStore) // mem-cached store has sweeter interface
	_dao := dao.NewSimple(lowLevelStore, false)

	nativeContracts := native.NewContracts(config.ProtocolConfiguration{})

	err := nativeContracts.Management.InitializeCache(0, _dao)
	require.NoError(tb, err)

	st := l.State
	st.UpdateCounter = 0 // contract could be dumped as already updated

	err = native.PutContractState(_dao, &st)
	require.NoError(tb, err)

	for _, item := range l.Items {
		storageKey := make([]byte, 5+len(item.Key))
		storageKey[0] = byte(_dao.Version.StoragePrefix)
		binary.LittleEndian.PutUint32(storageKey[1:], uint32(st.ID))
		copy(storageKey[5:], item.Key)

		cachedStore.Put(storageKey, item.Value)
	}

	_, err = _dao.PersistSync()
	require.NoError(tb, err)

	_, err = cachedStore.PersistSync()
	require.NoError(tb, err)

	useDefaultConfig := func(*config.Blockchain) {}
	var blockChain *core.Blockchain

	{ // FIXME: hack area, track neo-go#2926
		// contracts embedded in the blockchain the moment before are not visible unless
		// the blockchain is run twice. At the same time, in order not to clear the
		// storage, method Close is overridden.
		var run bool // otherwise on tb.Cleanup will panic which is not critical, but not pleasant either
		blockChain, _ = chain.NewSingleWithCustomConfigAndStore(tb, useDefaultConfig, nopCloseStore{lowLevelStore}, run)
		go blockChain.Run()
		blockChain.Close()
	}

	blockChain, committee := chain.NewSingleWithCustomConfigAndStore(tb, useDefaultConfig, lowLevelStore, true)

	exec := neotest.NewExecutor(tb, blockChain, committee, committee)

	if opts.SourceCodeDir == "" {
		opts.SourceCodeDir = "."
	}

	ctr := neotest.CompileFile(tb, exec.CommitteeHash, opts.SourceCodeDir, filepath.Join(opts.SourceCodeDir, "config.yml"))

	bNEF, err := ctr.NEF.Bytes()
	require.NoError(tb, err)

	jManifest, err := json.Marshal(ctr.Manifest)
	require.NoError(tb, err)

	return &Contract{
		id:        st.ID,
		exec:      exec,
		invoker:   exec.NewInvoker(exec.ContractHash(tb, st.ID), committee),
		bNEF:      bNEF,
		jManifest: jManifest,
	}
}

func (x *Contract) checkUpdate(tb testing.TB, faultException string, data any) {
	const updateMethod = "update"

	if faultException != "" {
		x.invoker.InvokeFail(tb, faultException, updateMethod, x.bNEF, x.jManifest, data)
		return
	}

	var noResult stackitem.Null
	x.invoker.Invoke(tb, noResult, updateMethod, x.bNEF, x.jManifest, data)
}

// CheckUpdateSuccess tests that contract update with given data succeeds.
// Contract executable is compiled from source code (see NewContract).
func (x *Contract) CheckUpdateSuccess(tb testing.TB, data any) {
	x.checkUpdate(tb, "", data)
}

// CheckUpdateFail tests that contract update with given data fails with exact
// fault exception.
func (x *Contract) CheckUpdateFail(tb testing.TB, faultException string, data any) {
	x.checkUpdate(tb, faultException, data)
}

// Call tests that calling the contract method with optional arguments succeeds
// and result contains single value. Call doesn't change the chain state, so
// only safe methods should be used.
func (x *Contract) Call(tb testing.TB, method string, args ...any) stackitem.Item {
	vmStack, err := x.invoker.TestInvoke(tb, method, args...)
	require.NoError(tb, err, "method '%s'", method)

	// FIXME: temp hack
	res, err := unwrap.Item(&result.Invoke{
		State: vmstate.Halt.String(),
		Stack: vmStack.ToArray(),
	}, nil)
	require.NoError(tb, err)

	return res
}

// GetStorageItem returns value stored in the tested contract by key.
func (x *Contract) GetStorageItem(key []byte) []byte {
	return x.exec.Chain.GetStorageItem(x.id, key)
}
