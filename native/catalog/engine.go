package catalog

import (
	"fmt"
	"math/big"
	"time"

	"catalogchain/core/events"
	"catalogchain/core/types"
)

// State describes the persistence the catalog engine needs from the
// surrounding ledger. Implementations must support snapshot/revert so a
// failed external collaborator call rolls back the whole operation.
type State interface {
	CatalogParamsGet() (*Params, bool, error)
	CatalogParamsPut(params *Params) error
	CatalogAuthorGet(addr [20]byte) (*AuthorInfo, bool, error)
	CatalogAuthorPut(author *AuthorInfo) error
	CatalogAuthorList() ([][20]byte, error)
	CatalogContentGet(ref [20]byte) (*ContentInfo, bool, error)
	CatalogContentPut(content *ContentInfo) error
	CatalogContentList() ([][20]byte, error)
	CatalogFingerprintGet(fp [32]byte) ([20]byte, bool, error)
	CatalogFingerprintPut(fp [32]byte, ref [20]byte) error
	CatalogSubscriptionGet(addr [20]byte) (*Subscription, bool, error)
	CatalogSubscriptionPut(sub *Subscription) error
	CatalogPoolGet() (*Pool, error)
	CatalogPoolPut(pool *Pool) error
	CatalogClosed() (bool, error)
	CatalogSetClosed() error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// Engine wires the catalog state machine with persistence, the content
// manager collaborators and event emission. It is not safe for concurrent
// use; the surrounding execution environment serializes operations.
type Engine struct {
	state    State
	emitter  events.Emitter
	resolver ManagerResolver
	nowFn    func() int64
	owner    [20]byte
	vault    [20]byte
}

// NewEngine constructs a catalog engine. The owner identity is fixed for the
// lifetime of the engine and cannot be reassigned.
func NewEngine(owner [20]byte) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		owner:   owner,
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetResolver configures the content manager lookup.
func (e *Engine) SetResolver(resolver ManagerResolver) { e.resolver = resolver }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetVault configures the account that holds collected fees until payout.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// Owner returns the fixed owner identity.
func (e *Engine) Owner() [20]byte { return e.owner }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// guard performs the common per-operation checks: configured state and the
// terminal closed flag.
func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	closed, err := e.state.CatalogClosed()
	if err != nil {
		return err
	}
	if closed {
		return ErrCatalogClosed
	}
	return nil
}

func (e *Engine) params() (*Params, error) {
	params, ok, err := e.state.CatalogParamsGet()
	if err != nil {
		return nil, err
	}
	if !ok || params == nil {
		return nil, ErrInvalidParams
	}
	return params.Normalize(), nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func newAuthor(addr [20]byte) *AuthorInfo {
	return &AuthorInfo{
		Address:       addr,
		ContentCredit: big.NewInt(0),
		Registered:    true,
	}
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// transfer moves value between two ledger accounts.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = ensureAccount(toAcc)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// payout moves vault credit to a recipient, failing loudly if the vault does
// not cover the amount. Pool and author accounting guarantee it always does.
func (e *Engine) payout(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if isZeroAddress(e.vault) {
		return errVaultNotSet
	}
	if err := e.transfer(e.vault, to, amount); err != nil {
		if err == ErrInsufficientFunds {
			return errVaultUnderfunded
		}
		return err
	}
	return nil
}

// Publish registers the content guarded by the manager behind ref. The caller
// must be the author the manager reports; both the reference and the content
// fingerprint are deduplicated system-wide. Publication is irreversible.
func (e *Engine) Publish(caller [20]byte, ref [20]byte) (*ContentInfo, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if e.resolver == nil {
		return nil, ErrManagerNotFound
	}
	manager, ok := e.resolver.Manager(ref)
	if !ok {
		return nil, ErrManagerNotFound
	}
	info, err := manager.Info()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalCallFailed, err)
	}
	if caller != info.Author {
		return nil, ErrPermissionDenied
	}
	// The manager could lie about its own reference, so both dedup keys are
	// checked independently.
	if _, exists, err := e.state.CatalogContentGet(ref); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateContent
	}
	if _, exists, err := e.state.CatalogFingerprintGet(info.Fingerprint); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateContent
	}
	author, ok, err := e.state.CatalogAuthorGet(info.Author)
	if err != nil {
		return nil, err
	}
	if !ok || author == nil || !author.Registered {
		author = newAuthor(info.Author)
		if err := e.state.CatalogAuthorPut(author); err != nil {
			return nil, err
		}
		e.emit(AuthorRegisteredEvent(hexAddr(info.Author)))
	}
	content := &ContentInfo{
		Ref:         ref,
		Author:      info.Author,
		Title:       info.Title,
		Genre:       info.Genre,
		Fingerprint: info.Fingerprint,
		Views:       0,
		PublishedAt: e.now(),
	}
	if err := e.state.CatalogContentPut(content); err != nil {
		return nil, err
	}
	if err := e.state.CatalogFingerprintPut(info.Fingerprint, ref); err != nil {
		return nil, err
	}
	e.emit(ContentPublishedEvent(hexAddr(ref), hexAddr(info.Author), info.Title, info.Genre))
	return content.Clone(), nil
}

// GetContent sells a single pay-per-view access grant. The payer must send
// exactly the configured content fee; the grant runs for the configured
// content period from now. The view and credit bookkeeping is committed
// before the collaborator call and rolled back if that call fails.
func (e *Engine) GetContent(payer [20]byte, recipient [20]byte, ref [20]byte, value *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	if value == nil || value.Cmp(params.ContentFee) != 0 {
		return ErrWrongValue
	}
	content, ok, err := e.state.CatalogContentGet(ref)
	if err != nil {
		return err
	}
	if !ok || content == nil {
		return ErrContentNotFound
	}
	if e.resolver == nil {
		return ErrManagerNotFound
	}
	manager, ok := e.resolver.Manager(ref)
	if !ok {
		return ErrManagerNotFound
	}
	if isZeroAddress(e.vault) {
		return errVaultNotSet
	}
	until := e.now() + params.ContentPeriod

	snapshot := e.state.Snapshot()
	if err := e.transfer(payer, e.vault, value); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	content.Views++
	if err := e.state.CatalogContentPut(content); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	if err := e.recordPayPerView(content.Author, value, params.PayableViews); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	// Effects before interaction: a reentrant collaborator observes the
	// already-updated counters and cannot double-spend.
	if err := manager.GrantAccess(recipient, until); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return fmt.Errorf("%w: %v", ErrExternalCallFailed, err)
	}
	e.emit(ContentGrantedEvent(hexAddr(ref), hexAddr(recipient), until, false))
	return nil
}

// recordPayPerView accrues a pay-per-view payment for the author and raises
// the advisory CreditAvailable signal once the threshold is met.
func (e *Engine) recordPayPerView(authorAddr [20]byte, fee *big.Int, payableViews uint64) error {
	author, ok, err := e.state.CatalogAuthorGet(authorAddr)
	if err != nil {
		return err
	}
	if !ok || author == nil {
		return ErrUnregistered
	}
	author.ContentViews++
	author.ContentCredit = new(big.Int).Add(newBigInt(author.ContentCredit), fee)
	if err := e.state.CatalogAuthorPut(author); err != nil {
		return err
	}
	if author.ContentViews >= payableViews {
		e.emit(CreditAvailableEvent(hexAddr(authorAddr), author.ContentCredit.String(), author.ContentViews))
	}
	return nil
}

// GetContentPremium grants access under an active premium subscription. No
// fee changes hands here; the grant runs until the subscription expiry.
func (e *Engine) GetContentPremium(consumer [20]byte, ref [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	now := e.now()
	sub, ok, err := e.state.CatalogSubscriptionGet(consumer)
	if err != nil {
		return err
	}
	if !ok || sub == nil || sub.ExpiresAt < now {
		return ErrSubscriptionExpired
	}
	content, ok, err := e.state.CatalogContentGet(ref)
	if err != nil {
		return err
	}
	if !ok || content == nil {
		return ErrContentNotFound
	}
	if e.resolver == nil {
		return ErrManagerNotFound
	}
	manager, ok := e.resolver.Manager(ref)
	if !ok {
		return ErrManagerNotFound
	}

	snapshot := e.state.Snapshot()
	content.Views++
	if err := e.state.CatalogContentPut(content); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	author, ok, err := e.state.CatalogAuthorGet(content.Author)
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	if !ok || author == nil {
		e.state.RevertToSnapshot(snapshot)
		return ErrUnregistered
	}
	author.PremiumViews++
	if err := e.state.CatalogAuthorPut(author); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	pool, err := e.state.CatalogPoolGet()
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	pool.PremiumViews++
	if err := e.state.CatalogPoolPut(pool); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	if err := manager.GrantAccess(consumer, sub.ExpiresAt); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return fmt.Errorf("%w: %v", ErrExternalCallFailed, err)
	}
	e.emit(ContentGrantedEvent(hexAddr(ref), hexAddr(consumer), sub.ExpiresAt, true))
	return nil
}

// BuyPremium purchases or renews a premium subscription for exactly the
// configured premium fee. Renewing an active subscription extends from the
// stored expiry, never from now alone.
func (e *Engine) BuyPremium(payer [20]byte, value *big.Int) (*Subscription, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	if value == nil || value.Cmp(params.PremiumFee) != 0 {
		return nil, ErrWrongValue
	}
	if isZeroAddress(e.vault) {
		return nil, errVaultNotSet
	}
	if err := e.transfer(payer, e.vault, value); err != nil {
		return nil, err
	}
	now := e.now()
	sub, ok, err := e.state.CatalogSubscriptionGet(payer)
	if err != nil {
		return nil, err
	}
	start := now
	if ok && sub != nil && sub.ExpiresAt > start {
		start = sub.ExpiresAt
	}
	sub = &Subscription{Account: payer, ExpiresAt: start + params.PremiumPeriod}
	if err := e.state.CatalogSubscriptionPut(sub); err != nil {
		return nil, err
	}
	pool, err := e.state.CatalogPoolGet()
	if err != nil {
		return nil, err
	}
	pool.PremiumCredit = new(big.Int).Add(newBigInt(pool.PremiumCredit), value)
	if err := e.state.CatalogPoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(SubscriptionPurchasedEvent(hexAddr(payer), sub.ExpiresAt))
	return sub.Clone(), nil
}

// IsPremium reports whether the account holds an unexpired subscription.
func (e *Engine) IsPremium(account [20]byte) (bool, error) {
	if err := e.guard(); err != nil {
		return false, err
	}
	sub, ok, err := e.state.CatalogSubscriptionGet(account)
	if err != nil {
		return false, err
	}
	return ok && sub != nil && sub.ExpiresAt >= e.now(), nil
}

// Withdraw pays out the caller's accrued pay-per-view credit once the payable
// view threshold is reached. Credit and views are zeroed before the transfer
// so a reentrant caller cannot collect twice.
func (e *Engine) Withdraw(caller [20]byte) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	author, ok, err := e.state.CatalogAuthorGet(caller)
	if err != nil {
		return nil, err
	}
	if !ok || author == nil || !author.Registered {
		return nil, ErrUnregistered
	}
	if author.ContentViews < params.PayableViews {
		return nil, ErrThresholdNotReached
	}
	amount := newBigInt(author.ContentCredit)
	author.ContentCredit = big.NewInt(0)
	author.ContentViews = 0
	if err := e.state.CatalogAuthorPut(author); err != nil {
		return nil, err
	}
	if err := e.payout(caller, amount); err != nil {
		return nil, err
	}
	e.emit(CreditTransferredEvent(hexAddr(caller), amount.String(), "withdraw"))
	return amount, nil
}

// DistributePremiumCredits splits the pooled premium credit among all authors
// with outstanding premium views, proportionally to their share of the total.
// Anyone may trigger it once the withdrawal period has elapsed. Shares are
// floored; the forfeited remainder stays in the vault until the catalog is
// closed.
func (e *Engine) DistributePremiumCredits() error {
	if err := e.guard(); err != nil {
		return err
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	now := e.now()
	pool, err := e.state.CatalogPoolGet()
	if err != nil {
		return err
	}
	if now < pool.LastDistribution+params.PremiumWithdrawalPeriod {
		return ErrTooEarly
	}
	if pool.PremiumViews == 0 {
		return ErrNothingToDistribute
	}
	credit := newBigInt(pool.PremiumCredit)
	totalViews := new(big.Int).SetUint64(pool.PremiumViews)
	authors, err := e.state.CatalogAuthorList()
	if err != nil {
		return err
	}
	for _, addr := range authors {
		author, ok, err := e.state.CatalogAuthorGet(addr)
		if err != nil {
			return err
		}
		if !ok || author == nil || author.PremiumViews == 0 {
			continue
		}
		share := new(big.Int).Mul(credit, new(big.Int).SetUint64(author.PremiumViews))
		share = share.Div(share, totalViews)
		author.PremiumViews = 0
		if err := e.state.CatalogAuthorPut(author); err != nil {
			return err
		}
		if err := e.payout(addr, share); err != nil {
			return err
		}
		e.emit(CreditTransferredEvent(hexAddr(addr), share.String(), "premium"))
	}
	pool.PremiumCredit = big.NewInt(0)
	pool.PremiumViews = 0
	pool.LastDistribution = now
	return e.state.CatalogPoolPut(pool)
}

// CloseCatalog liquidates the ledger. Each author receives their outstanding
// pay-per-view credit plus a proportional cut of the remaining premium pool,
// ignoring the distribution time gate. Whatever the vault still holds after
// the pass, including rounding dust, goes to the owner. The catalog then
// rejects every further operation.
func (e *Engine) CloseCatalog(caller [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	if caller != e.owner {
		return ErrPermissionDenied
	}
	if isZeroAddress(e.vault) {
		return errVaultNotSet
	}
	pool, err := e.state.CatalogPoolGet()
	if err != nil {
		return err
	}
	credit := newBigInt(pool.PremiumCredit)
	var totalViews *big.Int
	if pool.PremiumViews > 0 {
		totalViews = new(big.Int).SetUint64(pool.PremiumViews)
	}
	authors, err := e.state.CatalogAuthorList()
	if err != nil {
		return err
	}
	for _, addr := range authors {
		author, ok, err := e.state.CatalogAuthorGet(addr)
		if err != nil {
			return err
		}
		if !ok || author == nil {
			continue
		}
		payout := newBigInt(author.ContentCredit)
		if totalViews != nil && author.PremiumViews > 0 {
			share := new(big.Int).Mul(credit, new(big.Int).SetUint64(author.PremiumViews))
			share = share.Div(share, totalViews)
			payout = payout.Add(payout, share)
		}
		author.ContentCredit = big.NewInt(0)
		author.ContentViews = 0
		author.PremiumViews = 0
		if err := e.state.CatalogAuthorPut(author); err != nil {
			return err
		}
		if err := e.payout(addr, payout); err != nil {
			return err
		}
		if payout.Sign() > 0 {
			e.emit(CreditTransferredEvent(hexAddr(addr), payout.String(), "liquidation"))
		}
	}
	vaultAcc, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return err
	}
	vaultAcc = ensureAccount(vaultAcc)
	residual := newBigInt(vaultAcc.Balance)
	if residual.Sign() > 0 {
		if err := e.transfer(e.vault, e.owner, residual); err != nil {
			return err
		}
		e.emit(CreditTransferredEvent(hexAddr(e.owner), residual.String(), "residual"))
	}
	pool.PremiumCredit = big.NewInt(0)
	pool.PremiumViews = 0
	pool.LastDistribution = e.now()
	if err := e.state.CatalogPoolPut(pool); err != nil {
		return err
	}
	if err := e.state.CatalogSetClosed(); err != nil {
		return err
	}
	e.emit(CatalogClosedEvent(hexAddr(e.owner), residual.String()))
	return nil
}
