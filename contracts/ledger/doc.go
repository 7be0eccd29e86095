/*
Package ledger implements Storage Ledger contract.

Storage Ledger is a NEP-17 compatible token ledger where every account has to
stake a storage deposit before it can hold a balance. The deposit covers the
contract storage used by the account record. It is paid in GAS and equals the
size of one account record (measured once at deployment) multiplied by the
current storage price of the native Policy contract. Any GAS attached above
the deposit is refunded to the payer in the same transaction.

Registration is done with a regular GAS transfer to the contract. Transfer
data is either empty (the payer registers itself) or an array of the target
account and a registration-only flag:

	[target Hash160 | null, registrationOnly Boolean]

The flag is accepted for compatibility and has no effect: the deposit is a
flat fee, so a deposit for an already registered account is always refunded
in full. Arrays of other length are rejected.

# Contract notifications

Transfer notification. This is a NEP-17 standard notification.

	Transfer:
	  - name: from
	    type: Hash160
	  - name: to
	    type: Hash160
	  - name: amount
	    type: Integer

Registration notification. This notification is produced when an account
pays its storage deposit and becomes registered.

	Registration:
	  - name: account
	    type: Hash160
	  - name: deposit
	    type: Integer

StorageDeposit notification. This notification is produced on every storage
deposit and carries the resulting storage balance of the target account.

	StorageDeposit:
	  - name: account
	    type: Hash160
	  - name: total
	    type: Integer
	  - name: available
	    type: Integer
*/
package ledger

/*
Contract storage model.

# Summary
Key-value storage format:
  - 'u' -> int
    size in bytes of the longest possible account record, measured at deploy
  - 'o' -> interop.Hash160
    token owner allowed to mint new tokens
  - 's' -> int
    total supply
  - a<interop.Hash160> -> std.Serialize(account)
    balance sheet of all registered accounts

# Accounting
Presence of an account record is the registration state of the account.
Records are never removed, so an account can not be unregistered.
*/
