package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
)

// ErrCommitteeWitnessFailed appears when the contract update is not
// signed by the committee.
const ErrCommitteeWitnessFailed = "committee witness check failed"

// HasUpdateAccess returns true if contract can be updated.
func HasUpdateAccess() bool {
	return runtime.CheckWitness(CommitteeAddress())
}

// UpdateContract checks update access and replaces executing contract
// NEF and manifest. Current version is appended to the data so that
// `_deploy` of the new code can check it with CheckVersion.
func UpdateContract(nefFile, manifest []byte, data any) {
	if !HasUpdateAccess() {
		panic(ErrCommitteeWitnessFailed)
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, nefFile, manifest, AppendVersion(data))
	runtime.Log("updated contract")
}
