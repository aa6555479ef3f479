package catalog

import "errors"

var (
	ErrPermissionDenied    = errors.New("catalog: permission denied")
	ErrWrongValue          = errors.New("catalog: wrong payment value")
	ErrDuplicateContent    = errors.New("catalog: content already published")
	ErrContentNotFound     = errors.New("catalog: content not found")
	ErrUnregistered        = errors.New("catalog: author not registered")
	ErrThresholdNotReached = errors.New("catalog: payable view threshold not reached")
	ErrSubscriptionExpired = errors.New("catalog: premium subscription expired")
	ErrTooEarly            = errors.New("catalog: distribution period not elapsed")
	ErrNothingToDistribute = errors.New("catalog: no premium views to distribute")
	ErrExternalCallFailed  = errors.New("catalog: content manager call failed")
	ErrCatalogClosed       = errors.New("catalog: catalog closed")
	ErrManagerNotFound     = errors.New("catalog: content manager not found")
	ErrInsufficientFunds   = errors.New("catalog: insufficient balance")
	ErrInvalidParams       = errors.New("catalog: invalid parameters")
	errNilState            = errors.New("catalog: state not configured")
	errVaultNotSet         = errors.New("catalog: vault not configured")
	errVaultUnderfunded    = errors.New("catalog: vault underfunded")
)
