package catalog

import "math/big"

// AuthorInfo maintains the per-author revenue accounting. A record is created
// lazily on the author's first publication and survives until the catalog is
// closed.
type AuthorInfo struct {
	Address       [20]byte `json:"address"`
	ContentCredit *big.Int `json:"contentCredit"`
	ContentViews  uint64   `json:"contentViews"`
	PremiumViews  uint64   `json:"premiumViews"`
	Registered    bool     `json:"registered"`
}

// Clone returns a deep copy of the author record.
func (a *AuthorInfo) Clone() *AuthorInfo {
	if a == nil {
		return nil
	}
	clone := *a
	if a.ContentCredit != nil {
		clone.ContentCredit = new(big.Int).Set(a.ContentCredit)
	}
	return &clone
}

// ContentInfo describes a published piece of content. All fields except the
// view counter are immutable after publication.
type ContentInfo struct {
	Ref         [20]byte `json:"ref"`
	Author      [20]byte `json:"author"`
	Title       string   `json:"title"`
	Genre       uint64   `json:"genre"`
	Fingerprint [32]byte `json:"fingerprint"`
	Views       uint64   `json:"views"`
	PublishedAt int64    `json:"publishedAt"`
}

// Clone returns a copy of the content record.
func (c *ContentInfo) Clone() *ContentInfo {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Subscription records a consumer's premium access window. A lapsed record is
// kept around; renewal extends from the later of the stored expiry and now so
// buying early never burns paid-for time.
type Subscription struct {
	Account   [20]byte `json:"account"`
	ExpiresAt int64    `json:"expiresAt"`
}

// Clone returns a copy of the subscription record.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Pool holds the global premium revenue accumulator shared by all authors.
// PremiumViews always equals the sum of every registered author's premium view
// counter outside of an in-progress distribution.
type Pool struct {
	PremiumCredit    *big.Int `json:"premiumCredit"`
	PremiumViews     uint64   `json:"premiumViews"`
	LastDistribution int64    `json:"lastDistribution"`
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PremiumCredit != nil {
		clone.PremiumCredit = new(big.Int).Set(p.PremiumCredit)
	}
	return &clone
}

// Params bundles the owner-tunable catalog configuration.
type Params struct {
	ContentFee              *big.Int `json:"contentFee"`
	ContentPeriod           int64    `json:"contentPeriod"`
	PremiumFee              *big.Int `json:"premiumFee"`
	PremiumPeriod           int64    `json:"premiumPeriod"`
	PremiumWithdrawalPeriod int64    `json:"premiumWithdrawalPeriod"`
	PayableViews            uint64   `json:"payableViews"`
}

// Clone returns a deep copy of the parameter set.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	if p.ContentFee != nil {
		clone.ContentFee = new(big.Int).Set(p.ContentFee)
	}
	if p.PremiumFee != nil {
		clone.PremiumFee = new(big.Int).Set(p.PremiumFee)
	}
	return &clone
}

// Normalize replaces nil big.Int fields with zero values.
func (p *Params) Normalize() *Params {
	if p == nil {
		return nil
	}
	if p.ContentFee == nil {
		p.ContentFee = big.NewInt(0)
	}
	if p.PremiumFee == nil {
		p.PremiumFee = big.NewInt(0)
	}
	return p
}
