package catalog

import (
	"errors"
	"math/big"
	"testing"
)

// seedPremiumActivity publishes one item per author and records premium views
// directly on the ledger records, funding the pool with the given credit.
func seedPremiumActivity(t *testing.T, engine *Engine, directory *ManagerDirectory, state *mockState, credit int64, views map[[20]byte]uint64) {
	t.Helper()
	i := byte(0xA0)
	var total uint64
	for author, count := range views {
		mustPublish(t, engine, directory, addr(i), author, "item", 1, string([]byte{i}))
		stored := state.authors[author]
		stored.PremiumViews = count
		total += count
		i++
	}
	state.pool.PremiumCredit = big.NewInt(credit)
	state.pool.PremiumViews = total
	state.setAccount(vaultAddr, credit)
}

func TestDistributeTooEarly(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	state.pool.LastDistribution = 900
	engine.SetNowFunc(func() int64 { return 1_000 })

	if err := engine.DistributePremiumCredits(); !errors.Is(err, ErrTooEarly) {
		t.Fatalf("expected too early, got %v", err)
	}
}

func TestDistributeNothingToDistribute(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	engine.SetNowFunc(func() int64 { return 10_000 })

	if err := engine.DistributePremiumCredits(); !errors.Is(err, ErrNothingToDistribute) {
		t.Fatalf("expected nothing to distribute, got %v", err)
	}
}

func TestDistributeProRataExact(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	engine.SetNowFunc(func() int64 { return 10_000 })

	alice, bob := addr(0x01), addr(0x02)
	seedPremiumActivity(t, engine, directory, state, 300, map[[20]byte]uint64{
		alice: 2,
		bob:   1,
	})

	if err := engine.DistributePremiumCredits(); err != nil {
		t.Fatalf("distribution failed: %v", err)
	}
	if got := state.balance(alice); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("alice share mismatch: %s", got)
	}
	if got := state.balance(bob); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("bob share mismatch: %s", got)
	}
	if state.pool.PremiumCredit.Sign() != 0 || state.pool.PremiumViews != 0 {
		t.Fatalf("pool must reset after distribution: %+v", state.pool)
	}
	if state.pool.LastDistribution != 10_000 {
		t.Fatalf("last distribution timestamp mismatch: %d", state.pool.LastDistribution)
	}
	if state.authors[alice].PremiumViews != 0 || state.authors[bob].PremiumViews != 0 {
		t.Fatalf("author premium views must reset after distribution")
	}
}

func TestDistributeFloorsSharesAndForfeitsDust(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	engine.SetNowFunc(func() int64 { return 10_000 })

	alice, bob := addr(0x01), addr(0x02)
	seedPremiumActivity(t, engine, directory, state, 100, map[[20]byte]uint64{
		alice: 2,
		bob:   1,
	})

	if err := engine.DistributePremiumCredits(); err != nil {
		t.Fatalf("distribution failed: %v", err)
	}
	if got := state.balance(alice); got.Cmp(big.NewInt(66)) != 0 {
		t.Fatalf("alice share mismatch: %s", got)
	}
	if got := state.balance(bob); got.Cmp(big.NewInt(33)) != 0 {
		t.Fatalf("bob share mismatch: %s", got)
	}
	// The single unit of dust is forfeited to the vault, not carried into the
	// next pool.
	if got := state.balance(vaultAddr); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("forfeited dust must stay in the vault, got %s", got)
	}
	if state.pool.PremiumCredit.Sign() != 0 {
		t.Fatalf("pool credit must reset even when dust remains")
	}
}

func TestDistributeSkipsAuthorsWithoutPremiumViews(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	engine.SetNowFunc(func() int64 { return 10_000 })

	alice, bob := addr(0x01), addr(0x02)
	seedPremiumActivity(t, engine, directory, state, 100, map[[20]byte]uint64{
		alice: 4,
		bob:   0,
	})

	if err := engine.DistributePremiumCredits(); err != nil {
		t.Fatalf("distribution failed: %v", err)
	}
	if got := state.balance(alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("alice should take the whole pool, got %s", got)
	}
	if got := state.balance(bob); got.Sign() != 0 {
		t.Fatalf("bob had no premium views and must receive nothing, got %s", got)
	}
}

func TestCloseCatalogNonOwner(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)

	alice := addr(0x01)
	seedPremiumActivity(t, engine, directory, state, 100, map[[20]byte]uint64{alice: 1})

	if err := engine.CloseCatalog(addr(0x66)); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if closed, _ := state.CatalogClosed(); closed {
		t.Fatalf("rejected close must not seal the ledger")
	}
	if state.balance(alice).Sign() != 0 {
		t.Fatalf("rejected close must not liquidate")
	}
}

func TestCloseCatalogLiquidatesAndSealsLedger(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	engine.SetNowFunc(func() int64 { return 10_000 })
	emitter := &captureEmitter{}
	engine.SetEmitter(emitter)

	alice, bob := addr(0x01), addr(0x02)
	seedPremiumActivity(t, engine, directory, state, 100, map[[20]byte]uint64{
		alice: 2,
		bob:   1,
	})
	// Outstanding pay-per-view credit below the withdrawal threshold still
	// pays out at liquidation.
	state.authors[alice].ContentCredit = big.NewInt(20)
	state.authors[alice].ContentViews = 2
	state.setAccount(vaultAddr, 120)

	if err := engine.CloseCatalog(ownerAddr); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if got := state.balance(alice); got.Cmp(big.NewInt(86)) != 0 {
		t.Fatalf("alice liquidation mismatch: %s", got)
	}
	if got := state.balance(bob); got.Cmp(big.NewInt(33)) != 0 {
		t.Fatalf("bob liquidation mismatch: %s", got)
	}
	// 120 - 86 - 33 leaves one unit of dust for the owner.
	if got := state.balance(ownerAddr); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("residual must reach the owner, got %s", got)
	}
	if got := state.balance(vaultAddr); got.Sign() != 0 {
		t.Fatalf("vault must be empty after close, got %s", got)
	}
	if closed, _ := state.CatalogClosed(); !closed {
		t.Fatalf("ledger must be sealed after close")
	}
	last := emitter.captured[len(emitter.captured)-1]
	if last.EventType() != EventTypeCatalogClosed {
		t.Fatalf("expected terminal close event, got %s", last.EventType())
	}

	// Every operation, queries included, is rejected afterwards.
	if _, err := engine.Publish(alice, addr(0xF0)); !errors.Is(err, ErrCatalogClosed) {
		t.Fatalf("publish after close: got %v", err)
	}
	if err := engine.GetContent(bob, bob, addr(0xA0), big.NewInt(10)); !errors.Is(err, ErrCatalogClosed) {
		t.Fatalf("get content after close: got %v", err)
	}
	if _, err := engine.BuyPremium(bob, big.NewInt(50)); !errors.Is(err, ErrCatalogClosed) {
		t.Fatalf("buy premium after close: got %v", err)
	}
	if _, err := engine.Withdraw(alice); !errors.Is(err, ErrCatalogClosed) {
		t.Fatalf("withdraw after close: got %v", err)
	}
	if err := engine.DistributePremiumCredits(); !errors.Is(err, ErrCatalogClosed) {
		t.Fatalf("distribute after close: got %v", err)
	}
	if err := engine.CloseCatalog(ownerAddr); !errors.Is(err, ErrCatalogClosed) {
		t.Fatalf("second close: got %v", err)
	}
	if _, err := engine.ContentList(); !errors.Is(err, ErrCatalogClosed) {
		t.Fatalf("content list after close: got %v", err)
	}
	if _, err := engine.SetContentFee(ownerAddr, big.NewInt(1)); !errors.Is(err, ErrCatalogClosed) {
		t.Fatalf("setter after close: got %v", err)
	}
}

func TestCloseCatalogEmptyLedger(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)

	if err := engine.CloseCatalog(ownerAddr); err != nil {
		t.Fatalf("closing an empty catalog failed: %v", err)
	}
	if closed, _ := state.CatalogClosed(); !closed {
		t.Fatalf("empty close must still seal the ledger")
	}
}
