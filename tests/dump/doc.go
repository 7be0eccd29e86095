/*
Package dump provides I/O operations for collected states of the Storage
Ledger contract.

A dump captures the contract state and its raw storage at some block, so
that the ledger can be inspected offline and reproduced in tests. Raw items
are decoded into a Ledger: the measured storage cost unit, the owner, the
total supply and the balance sheet of registered accounts.

Dumps are stored in the file system using human-readable encoding:

	'<label>-<block>-ledger.json': contract state and base64 storage items
	'<label>-<block>-accounts.csv': 'address,balance' of registered accounts

The CSV file is informational and is not read back.
*/
package dump
