package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catalogchain/core/events"
	"catalogchain/core/state"
	"catalogchain/native/catalog"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeModuleError    = -32010
)

// Server exposes the catalog engine over JSON-RPC 2.0. A single mutex
// serializes every operation against the shared ledger, matching the
// one-call-in-flight execution model the engine assumes.
type Server struct {
	mu        sync.Mutex
	engine    *catalog.Engine
	ledger    *state.CatalogState
	directory *catalog.ManagerDirectory
	recorder  *events.Recorder
}

// NewServer wires the RPC surface around an engine and its state.
func NewServer(engine *catalog.Engine, ledger *state.CatalogState, directory *catalog.ManagerDirectory, recorder *events.Recorder) *Server {
	return &Server{
		engine:    engine,
		ledger:    ledger,
		directory: directory,
		recorder:  recorder,
	}
}

// Start serves the RPC endpoint and prometheus metrics until the listener
// fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("starting JSON-RPC server on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// withLedger runs fn under the ledger lock as a single transaction: every
// write is rolled back when fn errors, whatever the failure point, and the
// journal is discarded once the operation has fully committed.
func (s *Server) withLedger(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return fn()
	}
	snapshot := s.ledger.Snapshot()
	err := fn()
	if err != nil {
		s.ledger.RevertToSnapshot(snapshot)
	}
	s.ledger.Finalize()
	return err
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeModuleError reports a catalog engine rejection with the sentinel
// message as the error payload.
func writeModuleError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, catalog.ErrCatalogClosed) {
		status = http.StatusGone
	}
	writeError(w, status, id, codeModuleError, "operation rejected", err.Error())
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	requestCounter.WithLabelValues(req.Method).Inc()

	switch req.Method {
	case "catalog_publish":
		s.handlePublish(w, req)
	case "catalog_getContent":
		s.handleGetContent(w, req)
	case "catalog_getContentPremium":
		s.handleGetContentPremium(w, req)
	case "catalog_buyPremium":
		s.handleBuyPremium(w, req)
	case "catalog_isPremium":
		s.handleIsPremium(w, req)
	case "catalog_withdraw":
		s.handleWithdraw(w, req)
	case "catalog_distributePremiumCredits":
		s.handleDistribute(w, req)
	case "catalog_close":
		s.handleClose(w, req)
	case "catalog_getContentList":
		s.handleContentList(w, req)
	case "catalog_getStatistics":
		s.handleStatistics(w, req)
	case "catalog_getNewContentList":
		s.handleNewContentList(w, req)
	case "catalog_getLatestByGenre":
		s.handleLatestByGenre(w, req)
	case "catalog_getLatestByAuthor":
		s.handleLatestByAuthor(w, req)
	case "catalog_getMostPopularByGenre":
		s.handleMostPopularByGenre(w, req)
	case "catalog_getMostPopularByAuthor":
		s.handleMostPopularByAuthor(w, req)
	case "catalog_getAuthor":
		s.handleGetAuthor(w, req)
	case "catalog_getBalance":
		s.handleGetBalance(w, req)
	case "catalog_getParams":
		s.handleGetParams(w, req)
	case "catalog_setParam":
		s.handleSetParam(w, req)
	case "catalog_registerManager":
		s.handleRegisterManager(w, req)
	case "catalog_recentEvents":
		s.handleRecentEvents(w, req)
	default:
		unknownCounter.Inc()
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method", req.Method)
	}
}

// decodeParams unmarshals the single expected parameter object.
func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}
