package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"catalogchain/core/types"
	"catalogchain/native/catalog"
	"catalogchain/storage"
)

func newTestState(t *testing.T) *CatalogState {
	t.Helper()
	return NewCatalogState(storage.NewMemDB())
}

func ref20(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestParamsRoundTrip(t *testing.T) {
	s := newTestState(t)

	_, ok, err := s.CatalogParamsGet()
	require.NoError(t, err)
	require.False(t, ok)

	params := &catalog.Params{
		ContentFee:              big.NewInt(10),
		ContentPeriod:           3600,
		PremiumFee:              big.NewInt(500),
		PremiumPeriod:           86400,
		PremiumWithdrawalPeriod: 7200,
		PayableViews:            25,
	}
	require.NoError(t, s.CatalogParamsPut(params))

	loaded, ok, err := s.CatalogParamsGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, params, loaded)
}

func TestContentRoundTripAndIndexOrder(t *testing.T) {
	s := newTestState(t)

	first := &catalog.ContentInfo{
		Ref:         ref20(0x01),
		Author:      ref20(0xAA),
		Title:       "first",
		Genre:       3,
		Fingerprint: catalog.Fingerprint([]byte("first-body")),
		PublishedAt: 1_700_000_000,
	}
	second := &catalog.ContentInfo{
		Ref:         ref20(0x02),
		Author:      ref20(0xAB),
		Title:       "second",
		Genre:       5,
		Fingerprint: catalog.Fingerprint([]byte("second-body")),
		PublishedAt: 1_700_000_100,
	}
	require.NoError(t, s.CatalogContentPut(first))
	require.NoError(t, s.CatalogContentPut(second))

	loaded, ok, err := s.CatalogContentGet(first.Ref)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first, loaded)

	refs, err := s.CatalogContentList()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{first.Ref, second.Ref}, refs)

	// Updating an existing record must not duplicate the index entry.
	first.Views = 7
	require.NoError(t, s.CatalogContentPut(first))
	refs, err = s.CatalogContentList()
	require.NoError(t, err)
	require.Len(t, refs, 2)

	loaded, _, err = s.CatalogContentGet(first.Ref)
	require.NoError(t, err)
	require.Equal(t, uint64(7), loaded.Views)
}

func TestAuthorRoundTripAndIndex(t *testing.T) {
	s := newTestState(t)

	author := &catalog.AuthorInfo{
		Address:       ref20(0xAA),
		ContentCredit: big.NewInt(120),
		ContentViews:  12,
		PremiumViews:  4,
		Registered:    true,
	}
	require.NoError(t, s.CatalogAuthorPut(author))

	loaded, ok, err := s.CatalogAuthorGet(author.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, author, loaded)

	author.ContentViews = 13
	require.NoError(t, s.CatalogAuthorPut(author))
	addrs, err := s.CatalogAuthorList()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{author.Address}, addrs)
}

func TestFingerprintRoundTrip(t *testing.T) {
	s := newTestState(t)
	fp := catalog.Fingerprint([]byte("payload"))

	_, ok, err := s.CatalogFingerprintGet(fp)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.CatalogFingerprintPut(fp, ref20(0x01)))
	ref, ok, err := s.CatalogFingerprintGet(fp)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ref20(0x01), ref)
}

func TestSubscriptionRoundTrip(t *testing.T) {
	s := newTestState(t)
	sub := &catalog.Subscription{Account: ref20(0x10), ExpiresAt: 1_800_000_000}
	require.NoError(t, s.CatalogSubscriptionPut(sub))

	loaded, ok, err := s.CatalogSubscriptionGet(sub.Account)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sub, loaded)
}

func TestPoolDefaultsToEmpty(t *testing.T) {
	s := newTestState(t)

	pool, err := s.CatalogPoolGet()
	require.NoError(t, err)
	require.Zero(t, pool.PremiumCredit.Sign())
	require.Zero(t, pool.PremiumViews)

	pool.PremiumCredit = big.NewInt(900)
	pool.PremiumViews = 3
	pool.LastDistribution = 1_700_000_000
	require.NoError(t, s.CatalogPoolPut(pool))

	loaded, err := s.CatalogPoolGet()
	require.NoError(t, err)
	require.Equal(t, pool, loaded)
}

func TestClosedFlag(t *testing.T) {
	s := newTestState(t)

	closed, err := s.CatalogClosed()
	require.NoError(t, err)
	require.False(t, closed)

	require.NoError(t, s.CatalogSetClosed())
	closed, err = s.CatalogClosed()
	require.NoError(t, err)
	require.True(t, closed)
}

func TestAccountsAbsentUntilWritten(t *testing.T) {
	s := newTestState(t)
	addr := ref20(0x42)

	acc, err := s.GetAccount(addr[:])
	require.NoError(t, err)
	require.Nil(t, acc)

	require.NoError(t, s.PutAccount(addr[:], &types.Account{Nonce: 2, Balance: big.NewInt(77)}))
	acc, err = s.GetAccount(addr[:])
	require.NoError(t, err)
	require.Equal(t, uint64(2), acc.Nonce)
	require.Zero(t, acc.Balance.Cmp(big.NewInt(77)))
}

func TestRevertRestoresOverwrittenRecords(t *testing.T) {
	s := newTestState(t)
	addr := ref20(0x42)
	require.NoError(t, s.PutAccount(addr[:], &types.Account{Balance: big.NewInt(100)}))
	s.Finalize()

	id := s.Snapshot()
	require.NoError(t, s.PutAccount(addr[:], &types.Account{Balance: big.NewInt(40)}))
	s.RevertToSnapshot(id)

	acc, err := s.GetAccount(addr[:])
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Cmp(big.NewInt(100)))
}

func TestRevertDeletesFreshInserts(t *testing.T) {
	s := newTestState(t)

	id := s.Snapshot()
	content := &catalog.ContentInfo{
		Ref:         ref20(0x01),
		Author:      ref20(0xAA),
		Title:       "ephemeral",
		Fingerprint: catalog.Fingerprint([]byte("ephemeral")),
	}
	require.NoError(t, s.CatalogContentPut(content))
	s.RevertToSnapshot(id)

	_, ok, err := s.CatalogContentGet(content.Ref)
	require.NoError(t, err)
	require.False(t, ok)

	refs, err := s.CatalogContentList()
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestRevertUnwindsNestedSnapshots(t *testing.T) {
	s := newTestState(t)
	addr := ref20(0x42)
	require.NoError(t, s.PutAccount(addr[:], &types.Account{Balance: big.NewInt(10)}))
	s.Finalize()

	outer := s.Snapshot()
	require.NoError(t, s.PutAccount(addr[:], &types.Account{Balance: big.NewInt(20)}))
	inner := s.Snapshot()
	require.NoError(t, s.PutAccount(addr[:], &types.Account{Balance: big.NewInt(30)}))

	s.RevertToSnapshot(inner)
	acc, err := s.GetAccount(addr[:])
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Cmp(big.NewInt(20)))

	s.RevertToSnapshot(outer)
	acc, err = s.GetAccount(addr[:])
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Cmp(big.NewInt(10)))
}

func TestFinalizeKeepsCommittedWrites(t *testing.T) {
	s := newTestState(t)
	addr := ref20(0x42)

	s.Snapshot()
	require.NoError(t, s.PutAccount(addr[:], &types.Account{Balance: big.NewInt(55)}))
	s.Finalize()

	// A stale snapshot id must be a no-op after finalize.
	s.RevertToSnapshot(0)
	acc, err := s.GetAccount(addr[:])
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Cmp(big.NewInt(55)))
}

// readFaultDB turns every read into a backend failure.
type readFaultDB struct {
	storage.Database
	fail bool
}

func (db *readFaultDB) Get(key []byte) ([]byte, error) {
	if db.fail {
		return nil, errors.New("disk read failed")
	}
	return db.Database.Get(key)
}

func TestBackendReadFailureSurfaces(t *testing.T) {
	db := &readFaultDB{Database: storage.NewMemDB()}
	s := NewCatalogState(db)
	db.fail = true

	// A faulty read must never pass for key absence: that would let a broken
	// backend defeat the publish-once and closed-catalog gates.
	_, err := s.CatalogClosed()
	require.Error(t, err)

	_, _, err = s.CatalogFingerprintGet(catalog.Fingerprint([]byte("payload")))
	require.Error(t, err)

	_, _, err = s.CatalogParamsGet()
	require.Error(t, err)

	addr := ref20(0x42)
	_, err = s.GetAccount(addr[:])
	require.Error(t, err)

	// Writes journal the previous value first, so they fail too.
	err = s.PutAccount(addr[:], &types.Account{Balance: big.NewInt(1)})
	require.Error(t, err)

	db.fail = false
	closed, err := s.CatalogClosed()
	require.NoError(t, err)
	require.False(t, closed)
}
