package catalog

import "math/big"

// Owner-only configuration setters. Every knob persists in state so a restart
// picks up the last configured values.

func (e *Engine) updateParams(caller [20]byte, mutate func(*Params) error) (*Params, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if caller != e.owner {
		return nil, ErrPermissionDenied
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	if err := mutate(params); err != nil {
		return nil, err
	}
	if err := e.state.CatalogParamsPut(params); err != nil {
		return nil, err
	}
	return params.Clone(), nil
}

// InitParams seeds the parameter set at genesis. It refuses to overwrite an
// existing set so node restarts keep owner-tuned values.
func (e *Engine) InitParams(params *Params) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if params == nil {
		return ErrInvalidParams
	}
	if _, ok, err := e.state.CatalogParamsGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	return e.state.CatalogParamsPut(params.Clone().Normalize())
}

// Params returns the current parameter set.
func (e *Engine) Params() (*Params, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	return params.Clone(), nil
}

// SetContentFee updates the exact pay-per-view price.
func (e *Engine) SetContentFee(caller [20]byte, fee *big.Int) (*Params, error) {
	return e.updateParams(caller, func(p *Params) error {
		if fee == nil || fee.Sign() < 0 {
			return ErrInvalidParams
		}
		p.ContentFee = new(big.Int).Set(fee)
		return nil
	})
}

// SetContentPeriod updates the pay-per-view grant duration in seconds.
func (e *Engine) SetContentPeriod(caller [20]byte, period int64) (*Params, error) {
	return e.updateParams(caller, func(p *Params) error {
		if period <= 0 {
			return ErrInvalidParams
		}
		p.ContentPeriod = period
		return nil
	})
}

// SetPremiumFee updates the exact premium subscription price.
func (e *Engine) SetPremiumFee(caller [20]byte, fee *big.Int) (*Params, error) {
	return e.updateParams(caller, func(p *Params) error {
		if fee == nil || fee.Sign() < 0 {
			return ErrInvalidParams
		}
		p.PremiumFee = new(big.Int).Set(fee)
		return nil
	})
}

// SetPremiumPeriod updates the subscription extension granted per purchase.
func (e *Engine) SetPremiumPeriod(caller [20]byte, period int64) (*Params, error) {
	return e.updateParams(caller, func(p *Params) error {
		if period <= 0 {
			return ErrInvalidParams
		}
		p.PremiumPeriod = period
		return nil
	})
}

// SetPremiumWithdrawalPeriod updates the minimum interval between premium
// credit distributions.
func (e *Engine) SetPremiumWithdrawalPeriod(caller [20]byte, period int64) (*Params, error) {
	return e.updateParams(caller, func(p *Params) error {
		if period <= 0 {
			return ErrInvalidParams
		}
		p.PremiumWithdrawalPeriod = period
		return nil
	})
}

// SetPayableViews updates the view threshold gating author withdrawals.
func (e *Engine) SetPayableViews(caller [20]byte, views uint64) (*Params, error) {
	return e.updateParams(caller, func(p *Params) error {
		if views == 0 {
			return ErrInvalidParams
		}
		p.PayableViews = views
		return nil
	})
}
