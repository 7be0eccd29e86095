/*
Package contracts provides access to compiled Storage Ledger contract files.

Contract is compiled with neo-go into a directory which contains NEF and
manifest files:

	<dir>/contract.nef
	<dir>/manifest.json
*/
package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
)

const (
	nefName      = "contract.nef"
	manifestName = "manifest.json"

	// LedgerName is a manifest name of the Storage Ledger contract.
	LedgerName = "Storage Ledger"
)

// Contract groups information about compiled Neo contract.
type Contract struct {
	NEF      nef.File
	Manifest manifest.Manifest
}

var (
	errInvalidNEF      = errors.New("invalid NEF")
	errInvalidManifest = errors.New("invalid manifest")
	errUnexpectedName  = errors.New("unexpected contract name")
)

// ReadLedger reads compiled Storage Ledger contract from the directory.
func ReadLedger(dir string) (Contract, error) {
	return readLedger(os.DirFS(dir))
}

// readLedger same as ReadLedger but allows to override source fs.FS.
func readLedger(_fs fs.FS) (Contract, error) {
	c, err := readContract(_fs)
	if err != nil {
		return c, err
	}

	if c.Manifest.Name != LedgerName {
		return c, fmt.Errorf("%w: %s", errUnexpectedName, c.Manifest.Name)
	}

	return c, nil
}

func readContract(_fs fs.FS) (Contract, error) {
	var c Contract

	fNEF, err := _fs.Open(nefName)
	if err != nil {
		return c, fmt.Errorf("open NEF: %w", err)
	}
	defer fNEF.Close()

	fManifest, err := _fs.Open(manifestName)
	if err != nil {
		return c, fmt.Errorf("open manifest: %w", err)
	}
	defer fManifest.Close()

	bReader := io.NewBinReaderFromIO(fNEF)
	c.NEF.DecodeBinary(bReader)
	if bReader.Err != nil {
		return c, fmt.Errorf("%w: %w", errInvalidNEF, bReader.Err)
	}

	err = json.NewDecoder(fManifest).Decode(&c.Manifest)
	if err != nil {
		return c, fmt.Errorf("%w: %w", errInvalidManifest, err)
	}

	return c, nil
}
