// Package rpc exposes the venue over JSON-RPC 2.0 on HTTP, with health and
// Prometheus endpoints alongside.
package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"otcmarket/crypto"
	"otcmarket/native/common"
	"otcmarket/native/ledger"
	"otcmarket/native/market"
	"otcmarket/native/premarket"
	"otcmarket/native/referral"
	"otcmarket/observability/metrics"
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
	codeNotFound       = -32022
	codeForbidden      = -32023
	codeConflict       = -32024
)

// Server routes JSON-RPC calls to the venue engines.
type Server struct {
	engine   *premarket.Engine
	delivery *premarket.Delivery
	markets  *market.Registry
	referral *referral.Engine
	funds    *ledger.Ledger
	logger   *slog.Logger
}

// NewServer wires a server over the supplied engines.
func NewServer(engine *premarket.Engine, delivery *premarket.Delivery, markets *market.Registry, ref *referral.Engine, funds *ledger.Ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   engine,
		delivery: delivery,
		markets:  markets,
		referral: ref,
		funds:    funds,
		logger:   logger,
	}
}

// Router builds the HTTP mux: JSON-RPC at /, health and metrics alongside.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("rpc listening", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
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

type handlerFunc func(w http.ResponseWriter, req *RPCRequest)

func (s *Server) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"premarket_createOffer":    s.handleCreateOffer,
		"premarket_createTaker":    s.handleCreateTaker,
		"premarket_listOffer":      s.handleListOffer,
		"premarket_closeOffer":     s.handleCloseOffer,
		"premarket_relistOffer":    s.handleRelistOffer,
		"premarket_abortAskOffer":  s.handleAbortAskOffer,
		"premarket_abortBidTaker":  s.handleAbortBidTaker,
		"premarket_settleAskMaker": s.handleSettleAskMaker,
		"premarket_settleAskTaker": s.handleSettleAskTaker,
		"premarket_closeBidTaker":  s.handleCloseBidTaker,
		"premarket_getOffer":       s.handleGetOffer,
		"premarket_getStock":       s.handleGetStock,
		"market_create":            s.handleMarketCreate,
		"market_setStatus":         s.handleMarketSetStatus,
		"market_publishSettlement": s.handleMarketPublishSettlement,
		"market_registerToken":     s.handleMarketRegisterToken,
		"market_get":               s.handleMarketGet,
		"market_getByName":         s.handleMarketGetByName,
		"referral_registerCode":    s.handleReferralRegisterCode,
		"referral_bindCode":        s.handleReferralBindCode,
		"referral_setFeeOverride":  s.handleReferralSetFeeOverride,
		"ledger_balance":           s.handleLedgerBalance,
		"ledger_withdraw":          s.handleLedgerWithdraw,
		"ledger_withdrawable":      s.handleLedgerWithdrawable,
		"ledger_escrowBalance":     s.handleLedgerEscrowBalance,
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	requestID := uuid.NewString()
	logger := s.logger.With("requestId", requestID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "unable to read request body", err.Error())
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
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
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, ok := s.handlers()[req.Method]
	if !ok {
		metrics.Premarket().ObserveRPC(req.Method, "unknown")
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	handler(recorder, req)

	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
	}
	metrics.Premarket().ObserveRPC(req.Method, outcome)
	logger.Info("rpc handled", "method", req.Method, "status", recorder.status)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// --- parameter decoding helpers ---

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddr(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseID(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("expected %d byte identifier", len(out))
	}
	copy(out[:], raw)
	return out, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func encodeID(id [32]byte) string {
	return hex.EncodeToString(id[:])
}

func encodeAddr(addr [20]byte) string {
	return crypto.NewAddress(crypto.OTCPrefix, addr[:]).String()
}

// writeDomainError maps engine sentinels onto RPC error codes.
func writeDomainError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, premarket.ErrUnauthorized),
		errors.Is(err, market.ErrUnauthorized),
		errors.Is(err, referral.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeForbidden, err.Error(), nil)
	case errors.Is(err, premarket.ErrOfferNotFound),
		errors.Is(err, premarket.ErrStockNotFound),
		errors.Is(err, market.ErrMarketNotFound),
		errors.Is(err, referral.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, id, codeNotFound, err.Error(), nil)
	case errors.Is(err, premarket.ErrInvalidAmount),
		errors.Is(err, premarket.ErrInvalidPrice),
		errors.Is(err, premarket.ErrInvalidRatio),
		errors.Is(err, premarket.ErrInvalidMarket),
		errors.Is(err, premarket.ErrTokenNotRegistered),
		errors.Is(err, premarket.ErrProtectedRequired),
		errors.Is(err, market.ErrInvalidParams),
		errors.Is(err, market.ErrInvalidToken),
		errors.Is(err, market.ErrInvalidName),
		errors.Is(err, referral.ErrInvalidSplit),
		errors.Is(err, referral.ErrInvalidCode),
		errors.Is(err, referral.ErrInvalidRate),
		errors.Is(err, ledger.ErrInvalidBucket),
		errors.Is(err, ledger.ErrInvalidToken),
		errors.Is(err, ledger.ErrNegativeAmount):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, common.ErrModulePaused),
		errors.Is(err, premarket.ErrInvalidState),
		errors.Is(err, premarket.ErrMarketNotOnline),
		errors.Is(err, premarket.ErrMarketSettling),
		errors.Is(err, premarket.ErrMarketNotSettleable),
		errors.Is(err, premarket.ErrOfferNotListed),
		errors.Is(err, premarket.ErrNotEnoughRemaining),
		errors.Is(err, premarket.ErrExceedsFilled),
		errors.Is(err, premarket.ErrInsufficientPayment),
		errors.Is(err, premarket.ErrAlreadySettled),
		errors.Is(err, premarket.ErrNotFullyDelivered),
		errors.Is(err, market.ErrMarketExists),
		errors.Is(err, market.ErrTokenExists),
		errors.Is(err, market.ErrInvalidStatus),
		errors.Is(err, referral.ErrCodeExists),
		errors.Is(err, referral.ErrSelfReferral),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientEscrow):
		writeError(w, http.StatusConflict, id, codeConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}
