package dump

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
)

const (
	// word separator used in dump file naming
	sep = "-"

	ledgerFileSuffix   = "ledger.json"
	accountsFileSuffix = "accounts.csv"
)

// ID is a unique identifier of the dump.
type ID struct {
	// Label of the dump source (e.g. testnet, mainnet).
	Label string
	// Blockchain height at which the state was pulled.
	Block uint32
}

// String returns hyphen-separated ID fields.
func (x ID) String() string {
	return x.Label + sep + strconv.FormatUint(uint64(x.Block), 10)
}

// decodes ID from the dump file name.
func (x *ID) decodeFileName(s string) error {
	ss := strings.Split(s, sep)
	if len(ss) < 3 {
		return fmt.Errorf("expected '%s'-separated string with at least 3 items", sep)
	}

	n, err := strconv.ParseUint(ss[len(ss)-2], 10, 32)
	if err != nil {
		return fmt.Errorf("decode block number from '%s': %w", ss[len(ss)-2], err)
	}

	x.Label = strings.Join(ss[:len(ss)-2], sep)
	x.Block = uint32(n)

	return nil
}

func (x ID) path(dir, suffix string) string {
	return filepath.Join(dir, x.String()+sep+suffix)
}

// ledgerFile is a JSON-encoded dump of the contract.
type ledgerFile struct {
	State state.Contract `json:"state"`
	Items []Item         `json:"storage"`
}

// Write saves the ledger into the directory. It fails if the dump with the
// same ID already exists.
func Write(dir string, id ID, l *Ledger) error {
	ledgerPath := id.path(dir, ledgerFileSuffix)
	accountsPath := id.path(dir, accountsFileSuffix)

	for _, p := range []string{ledgerPath, accountsPath} {
		if err := checkFileNotExists(p); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(ledgerFile{State: l.State, Items: l.Items}, "", " ")
	if err != nil {
		return fmt.Errorf("encode ledger to JSON: %w", err)
	}

	err = os.WriteFile(ledgerPath, data, 0600)
	if err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}

	f, err := os.OpenFile(accountsPath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, acc := range l.Accounts {
		err = w.Write([]string{address.Uint160ToString(acc.Hash), acc.Balance.String()})
		if err != nil {
			return fmt.Errorf("write account as CSV data: %w", err)
		}
	}

	w.Flush()

	if err = w.Error(); err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Read reads and decodes the ledger dump with the given ID.
func Read(dir string, id ID) (*Ledger, error) {
	data, err := os.ReadFile(id.path(dir, ledgerFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	var lf ledgerFile

	err = json.Unmarshal(data, &lf)
	if err != nil {
		return nil, fmt.Errorf("decode ledger from JSON: %w", err)
	}

	return Decode(lf.State, lf.Items)
}

// List returns IDs of all dumps in the directory ordered by label and
// block. Missing directory has no dumps.
func List(dir string) ([]ID, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dump directory: %w", err)
	}

	var ids []ID

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sep+ledgerFileSuffix) {
			continue
		}

		var id ID
		if err := id.decodeFileName(e.Name()); err != nil {
			return nil, fmt.Errorf("decode dump ID from file name '%s': %w", e.Name(), err)
		}

		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Label != ids[j].Label {
			return ids[i].Label < ids[j].Label
		}
		return ids[i].Block < ids[j].Block
	})

	return ids, nil
}

// checkFileNotExists checks that there is no file at the specified path.
func checkFileNotExists(p string) error {
	_, err := os.Stat(p)
	if !os.IsNotExist(err) {
		if err == nil {
			err = os.ErrExist
		}
		return fmt.Errorf("file '%s' absence check failed: %w", p, err)
	}
	return nil
}
