package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"catalogchain/core/types"
	"catalogchain/native/catalog"
	"catalogchain/storage"
)

var (
	catalogParamsKey       = []byte("catalog/params")
	catalogPoolKey         = []byte("catalog/pool")
	catalogClosedKey       = []byte("catalog/closed")
	catalogContentIndexKey = []byte("catalog/content-index")
	catalogAuthorIndexKey  = []byte("catalog/author-index")

	catalogContentPrefix      = []byte("catalog/content/")
	catalogAuthorPrefix       = []byte("catalog/author/")
	catalogFingerprintPrefix  = []byte("catalog/fingerprint/")
	catalogSubscriptionPrefix = []byte("catalog/subscription/")
	catalogAccountPrefix      = []byte("catalog/account/")
)

func prefixedKey(prefix []byte, suffix []byte) []byte {
	buf := make([]byte, 0, len(prefix)+len(suffix))
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return ethcrypto.Keccak256(buf)
}

type journalEntry struct {
	key     []byte
	prev    []byte
	existed bool
}

// CatalogState persists the catalog ledger over a key-value backend. Records
// are RLP encoded under keccak-derived keys. Writes are journaled so an
// in-flight operation can be rolled back when an external collaborator call
// fails mid-transaction.
type CatalogState struct {
	db        storage.Database
	journal   []journalEntry
	snapshots []int
}

// NewCatalogState wraps the supplied database.
func NewCatalogState(db storage.Database) *CatalogState {
	return &CatalogState{db: db}
}

// get distinguishes key absence from backend failure; a faulty read must
// surface instead of reading as "not found".
func (s *CatalogState) get(key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: read record: %w", err)
	}
	return value, value != nil, nil
}

func (s *CatalogState) put(key []byte, value []byte) error {
	prev, existed, err := s.get(key)
	if err != nil {
		return err
	}
	s.journal = append(s.journal, journalEntry{key: key, prev: prev, existed: existed})
	return s.db.Put(key, value)
}

// Snapshot marks the current journal position and returns its identifier.
func (s *CatalogState) Snapshot() int {
	s.snapshots = append(s.snapshots, len(s.journal))
	return len(s.snapshots) - 1
}

// RevertToSnapshot undoes every write recorded after the snapshot was taken.
func (s *CatalogState) RevertToSnapshot(id int) {
	if id < 0 || id >= len(s.snapshots) {
		return
	}
	mark := s.snapshots[id]
	for i := len(s.journal) - 1; i >= mark; i-- {
		entry := s.journal[i]
		if entry.existed {
			_ = s.db.Put(entry.key, entry.prev)
		} else {
			_ = s.db.Delete(entry.key)
		}
	}
	s.journal = s.journal[:mark]
	s.snapshots = s.snapshots[:id]
}

// Finalize discards the journal once an operation has fully committed.
func (s *CatalogState) Finalize() {
	s.journal = s.journal[:0]
	s.snapshots = s.snapshots[:0]
}

func (s *CatalogState) loadRecord(key []byte, out interface{}) (bool, error) {
	raw, ok, err := s.get(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (s *CatalogState) storeRecord(key []byte, record interface{}) error {
	raw, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return s.put(key, raw)
}

// --- stored record layouts (RLP) ---

type storedParams struct {
	ContentFee              *big.Int
	ContentPeriod           uint64
	PremiumFee              *big.Int
	PremiumPeriod           uint64
	PremiumWithdrawalPeriod uint64
	PayableViews            uint64
}

type storedContent struct {
	Ref         [20]byte
	Author      [20]byte
	Title       string
	Genre       uint64
	Fingerprint [32]byte
	Views       uint64
	PublishedAt uint64
}

type storedAuthor struct {
	Address       [20]byte
	ContentCredit *big.Int
	ContentViews  uint64
	PremiumViews  uint64
	Registered    bool
}

type storedSubscription struct {
	Account   [20]byte
	ExpiresAt uint64
}

type storedPool struct {
	PremiumCredit    *big.Int
	PremiumViews     uint64
	LastDistribution uint64
}

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// --- catalog.State implementation ---

func (s *CatalogState) CatalogParamsGet() (*catalog.Params, bool, error) {
	var stored storedParams
	ok, err := s.loadRecord(ethcrypto.Keccak256(catalogParamsKey), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &catalog.Params{
		ContentFee:              bigOrZero(stored.ContentFee),
		ContentPeriod:           int64(stored.ContentPeriod),
		PremiumFee:              bigOrZero(stored.PremiumFee),
		PremiumPeriod:           int64(stored.PremiumPeriod),
		PremiumWithdrawalPeriod: int64(stored.PremiumWithdrawalPeriod),
		PayableViews:            stored.PayableViews,
	}, true, nil
}

func (s *CatalogState) CatalogParamsPut(params *catalog.Params) error {
	if params == nil {
		return fmt.Errorf("state: nil params")
	}
	stored := storedParams{
		ContentFee:              bigOrZero(params.ContentFee),
		ContentPeriod:           uint64(params.ContentPeriod),
		PremiumFee:              bigOrZero(params.PremiumFee),
		PremiumPeriod:           uint64(params.PremiumPeriod),
		PremiumWithdrawalPeriod: uint64(params.PremiumWithdrawalPeriod),
		PayableViews:            params.PayableViews,
	}
	return s.storeRecord(ethcrypto.Keccak256(catalogParamsKey), &stored)
}

func (s *CatalogState) CatalogContentGet(ref [20]byte) (*catalog.ContentInfo, bool, error) {
	var stored storedContent
	ok, err := s.loadRecord(prefixedKey(catalogContentPrefix, ref[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &catalog.ContentInfo{
		Ref:         stored.Ref,
		Author:      stored.Author,
		Title:       stored.Title,
		Genre:       stored.Genre,
		Fingerprint: stored.Fingerprint,
		Views:       stored.Views,
		PublishedAt: int64(stored.PublishedAt),
	}, true, nil
}

func (s *CatalogState) CatalogContentPut(content *catalog.ContentInfo) error {
	if content == nil {
		return fmt.Errorf("state: nil content")
	}
	_, existed, err := s.CatalogContentGet(content.Ref)
	if err != nil {
		return err
	}
	stored := storedContent{
		Ref:         content.Ref,
		Author:      content.Author,
		Title:       content.Title,
		Genre:       content.Genre,
		Fingerprint: content.Fingerprint,
		Views:       content.Views,
		PublishedAt: uint64(content.PublishedAt),
	}
	if err := s.storeRecord(prefixedKey(catalogContentPrefix, content.Ref[:]), &stored); err != nil {
		return err
	}
	if !existed {
		return s.appendIndex(catalogContentIndexKey, content.Ref)
	}
	return nil
}

func (s *CatalogState) CatalogContentList() ([][20]byte, error) {
	return s.loadIndex(catalogContentIndexKey)
}

func (s *CatalogState) CatalogAuthorGet(addr [20]byte) (*catalog.AuthorInfo, bool, error) {
	var stored storedAuthor
	ok, err := s.loadRecord(prefixedKey(catalogAuthorPrefix, addr[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &catalog.AuthorInfo{
		Address:       stored.Address,
		ContentCredit: bigOrZero(stored.ContentCredit),
		ContentViews:  stored.ContentViews,
		PremiumViews:  stored.PremiumViews,
		Registered:    stored.Registered,
	}, true, nil
}

func (s *CatalogState) CatalogAuthorPut(author *catalog.AuthorInfo) error {
	if author == nil {
		return fmt.Errorf("state: nil author")
	}
	_, existed, err := s.CatalogAuthorGet(author.Address)
	if err != nil {
		return err
	}
	stored := storedAuthor{
		Address:       author.Address,
		ContentCredit: bigOrZero(author.ContentCredit),
		ContentViews:  author.ContentViews,
		PremiumViews:  author.PremiumViews,
		Registered:    author.Registered,
	}
	if err := s.storeRecord(prefixedKey(catalogAuthorPrefix, author.Address[:]), &stored); err != nil {
		return err
	}
	if !existed {
		return s.appendIndex(catalogAuthorIndexKey, author.Address)
	}
	return nil
}

func (s *CatalogState) CatalogAuthorList() ([][20]byte, error) {
	return s.loadIndex(catalogAuthorIndexKey)
}

func (s *CatalogState) CatalogFingerprintGet(fp [32]byte) ([20]byte, bool, error) {
	var ref [20]byte
	raw, ok, err := s.get(prefixedKey(catalogFingerprintPrefix, fp[:]))
	if err != nil {
		return ref, false, err
	}
	if !ok || len(raw) != len(ref) {
		return ref, false, nil
	}
	copy(ref[:], raw)
	return ref, true, nil
}

func (s *CatalogState) CatalogFingerprintPut(fp [32]byte, ref [20]byte) error {
	return s.put(prefixedKey(catalogFingerprintPrefix, fp[:]), append([]byte(nil), ref[:]...))
}

func (s *CatalogState) CatalogSubscriptionGet(addr [20]byte) (*catalog.Subscription, bool, error) {
	var stored storedSubscription
	ok, err := s.loadRecord(prefixedKey(catalogSubscriptionPrefix, addr[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &catalog.Subscription{
		Account:   stored.Account,
		ExpiresAt: int64(stored.ExpiresAt),
	}, true, nil
}

func (s *CatalogState) CatalogSubscriptionPut(sub *catalog.Subscription) error {
	if sub == nil {
		return fmt.Errorf("state: nil subscription")
	}
	stored := storedSubscription{Account: sub.Account, ExpiresAt: uint64(sub.ExpiresAt)}
	return s.storeRecord(prefixedKey(catalogSubscriptionPrefix, sub.Account[:]), &stored)
}

func (s *CatalogState) CatalogPoolGet() (*catalog.Pool, error) {
	var stored storedPool
	ok, err := s.loadRecord(ethcrypto.Keccak256(catalogPoolKey), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &catalog.Pool{PremiumCredit: big.NewInt(0)}, nil
	}
	return &catalog.Pool{
		PremiumCredit:    bigOrZero(stored.PremiumCredit),
		PremiumViews:     stored.PremiumViews,
		LastDistribution: int64(stored.LastDistribution),
	}, nil
}

func (s *CatalogState) CatalogPoolPut(pool *catalog.Pool) error {
	if pool == nil {
		return fmt.Errorf("state: nil pool")
	}
	stored := storedPool{
		PremiumCredit:    bigOrZero(pool.PremiumCredit),
		PremiumViews:     pool.PremiumViews,
		LastDistribution: uint64(pool.LastDistribution),
	}
	return s.storeRecord(ethcrypto.Keccak256(catalogPoolKey), &stored)
}

func (s *CatalogState) CatalogClosed() (bool, error) {
	raw, ok, err := s.get(ethcrypto.Keccak256(catalogClosedKey))
	if err != nil {
		return false, err
	}
	return ok && len(raw) == 1 && raw[0] == 1, nil
}

func (s *CatalogState) CatalogSetClosed() error {
	return s.put(ethcrypto.Keccak256(catalogClosedKey), []byte{1})
}

func (s *CatalogState) GetAccount(addr []byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := s.loadRecord(prefixedKey(catalogAccountPrefix, addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &types.Account{Nonce: stored.Nonce, Balance: bigOrZero(stored.Balance)}, nil
}

func (s *CatalogState) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	stored := storedAccount{Nonce: account.Nonce, Balance: bigOrZero(account.Balance)}
	return s.storeRecord(prefixedKey(catalogAccountPrefix, addr), &stored)
}

// --- ordered indexes ---

func (s *CatalogState) loadIndex(key []byte) ([][20]byte, error) {
	var entries [][20]byte
	ok, err := s.loadRecord(ethcrypto.Keccak256(key), &entries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return entries, nil
}

func (s *CatalogState) appendIndex(key []byte, entry [20]byte) error {
	entries, err := s.loadIndex(key)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return s.storeRecord(ethcrypto.Keccak256(key), entries)
}
