package types

import "math/big"

// Account tracks the spendable balance held by an address on the catalog
// ledger. Payments into the catalog debit the payer account and credit the
// catalog vault; withdrawals and distributions move value back out.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return &clone
}
