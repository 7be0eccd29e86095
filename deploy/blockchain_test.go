package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/config/netmode"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
)

type testCall struct {
	contract util.Uint160
	method   string
}

// testBlockchain is an in-memory Blockchain accepting every transaction.
// Contract calls and scripts passed for the test invocation are recorded.
type testBlockchain struct {
	contracts map[util.Uint160]*state.Contract
	// returned by 'version' method of any contract
	version int64

	calls   []testCall
	scripts [][]byte
	sent    []*transaction.Transaction
}

func newTestBlockchain() *testBlockchain {
	return &testBlockchain{contracts: make(map[util.Uint160]*state.Contract)}
}

func (x *testBlockchain) halt(script []byte, items ...stackitem.Item) *result.Invoke {
	return &result.Invoke{
		State:       vmstate.Halt.String(),
		GasConsumed: 1,
		Script:      script,
		Stack:       items,
	}
}

func (x *testBlockchain) GetContractStateByHash(h util.Uint160) (*state.Contract, error) {
	if cs, ok := x.contracts[h]; ok {
		return cs, nil
	}
	return nil, fmt.Errorf("Unknown contract: %s", h.StringLE())
}

func (x *testBlockchain) InvokeContractVerify(util.Uint160, []smartcontract.Parameter, []transaction.Signer, ...transaction.Witness) (*result.Invoke, error) {
	return nil, errors.New("not supported")
}

func (x *testBlockchain) InvokeFunction(contract util.Uint160, operation string, _ []smartcontract.Parameter, _ []transaction.Signer) (*result.Invoke, error) {
	x.calls = append(x.calls, testCall{contract: contract, method: operation})

	if operation == "version" {
		return x.halt(nil, stackitem.Make(x.version)), nil
	}

	return x.halt([]byte{byte(opcode.RET)}), nil
}

func (x *testBlockchain) InvokeScript(script []byte, _ []transaction.Signer) (*result.Invoke, error) {
	x.scripts = append(x.scripts, script)
	return x.halt(script), nil
}

func (x *testBlockchain) CalculateNetworkFee(*transaction.Transaction) (int64, error) {
	return 1, nil
}

func (x *testBlockchain) GetBlockCount() (uint32, error) {
	return 1, nil
}

func (x *testBlockchain) GetVersion() (*result.Version, error) {
	return &result.Version{
		Protocol: result.Protocol{
			Network:              netmode.UnitTestNet,
			MillisecondsPerBlock: 10,
			ValidatorsCount:      1,
		},
	}, nil
}

func (x *testBlockchain) SendRawTransaction(tx *transaction.Transaction) (util.Uint256, error) {
	x.sent = append(x.sent, tx)
	return tx.Hash(), nil
}

func (x *testBlockchain) TerminateSession(uuid.UUID) (bool, error) {
	return false, nil
}

func (x *testBlockchain) TraverseIterator(_, _ uuid.UUID, _ int) ([]stackitem.Item, error) {
	return nil, nil
}

func (x *testBlockchain) Context() context.Context {
	return context.Background()
}

func (x *testBlockchain) GetApplicationLog(h util.Uint256, _ *trigger.Type) (*result.ApplicationLog, error) {
	return &result.ApplicationLog{
		Container:     h,
		IsTransaction: true,
		Executions: []state.Execution{{
			Trigger: trigger.Application,
			VMState: vmstate.Halt,
		}},
	}, nil
}

// called returns true if the method of the contract was invoked.
func (x *testBlockchain) called(contract util.Uint160, method string) bool {
	for _, c := range x.calls {
		if c.contract == contract && c.method == method {
			return true
		}
	}
	return false
}

func (x *testBlockchain) setDeployed(h util.Uint160, version int64) {
	x.contracts[h] = &state.Contract{ContractBase: state.ContractBase{ID: 1, Hash: h}}
	x.version = version
}
