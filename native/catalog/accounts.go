package catalog

import "lukechampine.com/blake3"

// ModuleVault is the well-known ledger account that escrows every fee the
// catalog collects until withdrawal, distribution or liquidation.
var ModuleVault = moduleAddress("catalog/module/vault")

func moduleAddress(label string) [20]byte {
	sum := blake3.Sum256([]byte(label))
	var out [20]byte
	copy(out[:], sum[12:])
	return out
}
