/*
Package migration provides framework to test migration of the Storage Ledger
contract.

The ledger keeps balances and storage deposits of the accounts, so contract
updates must preserve every record. The package restores the contract from the
dump (see package dump) in the test blockchain, updates it to the executable
compiled from the local sources and gives access to the resulting state.
*/
package migration
