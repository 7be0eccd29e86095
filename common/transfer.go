package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/gas"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
)

// RefundGAS transfers amount of GAS from the executing contract back to
// the receiver. Non-positive amounts are skipped. A refused transfer is
// logged and does not abort the invocation, the result is returned to
// the caller instead.
func RefundGAS(to interop.Hash160, amount int) bool {
	if amount <= 0 {
		return true
	}

	ok := gas.Transfer(runtime.GetExecutingScriptHash(), to, amount, nil)
	if !ok {
		runtime.Log("refund of " + std.Itoa(amount, 10) + " GAS was refused")
	}

	return ok
}

// AbortWithMessage calls `runtime.Log` with passed message
// and panics with it, so that the message becomes the FAULT exception.
func AbortWithMessage(msg string) {
	runtime.Log(msg)
	panic(msg)
}
