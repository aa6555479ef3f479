package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"catalogchain/core/types"
	"catalogchain/crypto"
	"catalogchain/native/catalog"
)

type publishParams struct {
	Caller string `json:"caller"`
	Ref    string `json:"ref"`
}

type getContentParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient,omitempty"`
	Ref       string `json:"ref"`
	Value     string `json:"value"`
}

type getContentPremiumParams struct {
	Caller string `json:"caller"`
	Ref    string `json:"ref"`
}

type buyPremiumParams struct {
	Caller string `json:"caller"`
	Value  string `json:"value"`
}

type accountParams struct {
	Account string `json:"account"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type countParams struct {
	Count int `json:"count"`
}

type genreParams struct {
	Genre uint64 `json:"genre"`
}

type authorParams struct {
	Author string `json:"author"`
}

type setParamParams struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

type registerManagerParams struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}

type contentResult struct {
	Ref         string `json:"ref"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Genre       uint64 `json:"genre"`
	Views       uint64 `json:"views"`
	PublishedAt int64  `json:"publishedAt"`
}

type subscriptionResult struct {
	Account   string `json:"account"`
	ExpiresAt int64  `json:"expiresAt"`
}

type authorResult struct {
	Address       string `json:"address"`
	ContentCredit string `json:"contentCredit"`
	ContentViews  uint64 `json:"contentViews"`
	PremiumViews  uint64 `json:"premiumViews"`
}

type statisticsResult struct {
	Refs  []string `json:"refs"`
	Views []uint64 `json:"views"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type paramsResult struct {
	ContentFee              string `json:"contentFee"`
	ContentPeriod           int64  `json:"contentPeriod"`
	PremiumFee              string `json:"premiumFee"`
	PremiumPeriod           int64  `json:"premiumPeriod"`
	PremiumWithdrawalPeriod int64  `json:"premiumWithdrawalPeriod"`
	PayableViews            uint64 `json:"payableViews"`
}

type eventResult struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func decodeBech32(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	return addr.Fixed(), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.CatalogPrefix, addr[:]).String()
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func formatContent(content *catalog.ContentInfo) contentResult {
	return contentResult{
		Ref:         formatAddress(content.Ref),
		Author:      formatAddress(content.Author),
		Title:       content.Title,
		Genre:       content.Genre,
		Views:       content.Views,
		PublishedAt: content.PublishedAt,
	}
}

func formatRefs(refs [][20]byte) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = formatAddress(ref)
	}
	return out
}

func (s *Server) handlePublish(w http.ResponseWriter, req *RPCRequest) {
	var params publishParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	ref, err := decodeBech32(params.Ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid content ref", err.Error())
		return
	}
	var content *catalog.ContentInfo
	err = s.withLedger(func() error {
		var engineErr error
		content, engineErr = s.engine.Publish(caller, ref)
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatContent(content))
}

func (s *Server) handleGetContent(w http.ResponseWriter, req *RPCRequest) {
	var params getContentParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	recipient := caller
	if strings.TrimSpace(params.Recipient) != "" {
		if recipient, err = decodeBech32(params.Recipient); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
			return
		}
	}
	ref, err := decodeBech32(params.Ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid content ref", err.Error())
		return
	}
	value, err := parseAmount(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	err = s.withLedger(func() error {
		return s.engine.GetContent(caller, recipient, ref, value)
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetContentPremium(w http.ResponseWriter, req *RPCRequest) {
	var params getContentPremiumParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	ref, err := decodeBech32(params.Ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid content ref", err.Error())
		return
	}
	err = s.withLedger(func() error {
		return s.engine.GetContentPremium(caller, ref)
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleBuyPremium(w http.ResponseWriter, req *RPCRequest) {
	var params buyPremiumParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	value, err := parseAmount(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var sub *catalog.Subscription
	err = s.withLedger(func() error {
		var engineErr error
		sub, engineErr = s.engine.BuyPremium(caller, value)
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, subscriptionResult{Account: formatAddress(sub.Account), ExpiresAt: sub.ExpiresAt})
}

func (s *Server) handleIsPremium(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	account, err := decodeBech32(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address", err.Error())
		return
	}
	var premium bool
	err = s.withLedger(func() error {
		var engineErr error
		premium, engineErr = s.engine.IsPremium(account)
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, premium)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	var amount *big.Int
	err = s.withLedger(func() error {
		var engineErr error
		amount, engineErr = s.engine.Withdraw(caller)
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amount.String())
}

func (s *Server) handleDistribute(w http.ResponseWriter, req *RPCRequest) {
	err := s.withLedger(func() error {
		return s.engine.DistributePremiumCredits()
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleClose(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	err = s.withLedger(func() error {
		return s.engine.CloseCatalog(caller)
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleContentList(w http.ResponseWriter, req *RPCRequest) {
	var refs [][20]byte
	err := s.withLedger(func() error {
		var engineErr error
		refs, engineErr = s.engine.ContentList()
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatRefs(refs))
}

func (s *Server) handleStatistics(w http.ResponseWriter, req *RPCRequest) {
	var refs [][20]byte
	var views []uint64
	err := s.withLedger(func() error {
		var engineErr error
		refs, views, engineErr = s.engine.Statistics()
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, statisticsResult{Refs: formatRefs(refs), Views: views})
}

func (s *Server) handleNewContentList(w http.ResponseWriter, req *RPCRequest) {
	var params countParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	var refs [][20]byte
	err := s.withLedger(func() error {
		var engineErr error
		refs, engineErr = s.engine.NewContentList(params.Count)
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatRefs(refs))
}

func (s *Server) contentQuery(w http.ResponseWriter, req *RPCRequest, query func() (*catalog.ContentInfo, bool, error)) {
	var content *catalog.ContentInfo
	var found bool
	err := s.withLedger(func() error {
		var engineErr error
		content, found, engineErr = query()
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	if !found {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, formatContent(content))
}

func (s *Server) handleLatestByGenre(w http.ResponseWriter, req *RPCRequest) {
	var params genreParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	s.contentQuery(w, req, func() (*catalog.ContentInfo, bool, error) {
		return s.engine.LatestByGenre(params.Genre)
	})
}

func (s *Server) handleLatestByAuthor(w http.ResponseWriter, req *RPCRequest) {
	var params authorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	author, err := decodeBech32(params.Author)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid author address", err.Error())
		return
	}
	s.contentQuery(w, req, func() (*catalog.ContentInfo, bool, error) {
		return s.engine.LatestByAuthor(author)
	})
}

func (s *Server) handleMostPopularByGenre(w http.ResponseWriter, req *RPCRequest) {
	var params genreParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	s.contentQuery(w, req, func() (*catalog.ContentInfo, bool, error) {
		return s.engine.MostPopularByGenre(params.Genre)
	})
}

func (s *Server) handleMostPopularByAuthor(w http.ResponseWriter, req *RPCRequest) {
	var params authorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	author, err := decodeBech32(params.Author)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid author address", err.Error())
		return
	}
	s.contentQuery(w, req, func() (*catalog.ContentInfo, bool, error) {
		return s.engine.MostPopularByAuthor(author)
	})
}

func (s *Server) handleGetAuthor(w http.ResponseWriter, req *RPCRequest) {
	var params authorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	addr, err := decodeBech32(params.Author)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid author address", err.Error())
		return
	}
	var author *catalog.AuthorInfo
	var found bool
	err = s.withLedger(func() error {
		var engineErr error
		author, found, engineErr = s.engine.Author(addr)
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	if !found {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, authorResult{
		Address:       formatAddress(author.Address),
		ContentCredit: author.ContentCredit.String(),
		ContentViews:  author.ContentViews,
		PremiumViews:  author.PremiumViews,
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	account, err := decodeBech32(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address", err.Error())
		return
	}
	var acc *types.Account
	err = s.withLedger(func() error {
		var stateErr error
		acc, stateErr = s.ledger.GetAccount(account[:])
		return stateErr
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	result := balanceResult{Address: params.Account, Balance: "0"}
	if acc != nil {
		result.Balance = acc.Balance.String()
		result.Nonce = acc.Nonce
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetParams(w http.ResponseWriter, req *RPCRequest) {
	var params *catalog.Params
	err := s.withLedger(func() error {
		var engineErr error
		params, engineErr = s.engine.Params()
		return engineErr
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, paramsResult{
		ContentFee:              params.ContentFee.String(),
		ContentPeriod:           params.ContentPeriod,
		PremiumFee:              params.PremiumFee.String(),
		PremiumPeriod:           params.PremiumPeriod,
		PremiumWithdrawalPeriod: params.PremiumWithdrawalPeriod,
		PayableViews:            params.PayableViews,
	})
}

func (s *Server) handleSetParam(w http.ResponseWriter, req *RPCRequest) {
	var params setParamParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	err = s.withLedger(func() error {
		switch params.Name {
		case "contentFee":
			amount, parseErr := parseAmount(params.Value)
			if parseErr != nil {
				return parseErr
			}
			_, engineErr := s.engine.SetContentFee(caller, amount)
			return engineErr
		case "contentPeriod":
			period, parseErr := parsePeriod(params.Value)
			if parseErr != nil {
				return parseErr
			}
			_, engineErr := s.engine.SetContentPeriod(caller, period)
			return engineErr
		case "premiumFee":
			amount, parseErr := parseAmount(params.Value)
			if parseErr != nil {
				return parseErr
			}
			_, engineErr := s.engine.SetPremiumFee(caller, amount)
			return engineErr
		case "premiumPeriod":
			period, parseErr := parsePeriod(params.Value)
			if parseErr != nil {
				return parseErr
			}
			_, engineErr := s.engine.SetPremiumPeriod(caller, period)
			return engineErr
		case "premiumWithdrawalPeriod":
			period, parseErr := parsePeriod(params.Value)
			if parseErr != nil {
				return parseErr
			}
			_, engineErr := s.engine.SetPremiumWithdrawalPeriod(caller, period)
			return engineErr
		case "payableViews":
			views, parseErr := parsePeriod(params.Value)
			if parseErr != nil || views < 0 {
				return fmt.Errorf("invalid payableViews %q", params.Value)
			}
			_, engineErr := s.engine.SetPayableViews(caller, uint64(views))
			return engineErr
		default:
			return fmt.Errorf("unknown parameter %q", params.Name)
		}
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func parsePeriod(value string) (int64, error) {
	period, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || !period.IsInt64() {
		return 0, fmt.Errorf("invalid numeric value %q", value)
	}
	return period.Int64(), nil
}

func (s *Server) handleRegisterManager(w http.ResponseWriter, req *RPCRequest) {
	var params registerManagerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	ref, err := decodeBech32(params.Ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid content ref", err.Error())
		return
	}
	manager, err := NewHTTPManager(params.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid manager url", err.Error())
		return
	}
	// A published ref has sold grants routed through its manager; rebinding it
	// would redirect future grants to an arbitrary endpoint.
	err = s.withLedger(func() error {
		if _, published, engineErr := s.engine.Content(ref); engineErr != nil {
			return engineErr
		} else if published {
			return fmt.Errorf("content %s already published", params.Ref)
		}
		s.directory.Register(ref, manager)
		return nil
	})
	if err != nil {
		rejectionCounter.WithLabelValues(req.Method).Inc()
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, req *RPCRequest) {
	count := 0
	if len(req.Params) == 1 {
		var params countParams
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
			return
		}
		count = params.Count
	}
	recent := s.recorder.Recent(count)
	results := make([]eventResult, 0, len(recent))
	for _, evt := range recent {
		payload, ok := evt.(interface{ Event() *types.Event })
		if !ok {
			results = append(results, eventResult{Type: evt.EventType()})
			continue
		}
		raw := payload.Event()
		results = append(results, eventResult{Type: raw.Type, Attributes: raw.Attributes})
	}
	writeResult(w, req.ID, results)
}
