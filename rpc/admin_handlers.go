package rpc

import (
	"net/http"
	"strings"

	"otcmarket/native/ledger"
	"otcmarket/native/market"
)

type marketCreateParams struct {
	Caller     string `json:"caller"`
	Name       string `json:"name"`
	FixedRatio bool   `json:"fixedRatio"`
}

type marketStatusParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

type marketSettlementParams struct {
	Caller           string `json:"caller"`
	ID               string `json:"id"`
	Token            string `json:"token"`
	TokenPerPoint    string `json:"tokenPerPoint"`
	TGE              int64  `json:"tge"`
	SettlementPeriod int64  `json:"settlementPeriod"`
}

type tokenParams struct {
	Caller string `json:"caller"`
	Symbol string `json:"symbol"`
}

type marketNameParams struct {
	Name string `json:"name"`
}

type referralRegisterParams struct {
	Referrer     string `json:"referrer"`
	Code         string `json:"code"`
	ReferrerBps  uint32 `json:"referrerBps"`
	AuthorityBps uint32 `json:"authorityBps"`
}

type referralBindParams struct {
	User string `json:"user"`
	Code string `json:"code"`
}

type feeOverrideParams struct {
	Caller string `json:"caller"`
	User   string `json:"user"`
	Bps    uint32 `json:"bps"`
}

type balanceParams struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Bucket  string `json:"bucket"`
}

type withdrawParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Bucket string `json:"bucket"`
	Amount string `json:"amount"`
}

type withdrawableParams struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

type escrowBalanceParams struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type marketJSON struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	FixedRatio       bool   `json:"fixedRatio"`
	SettlementToken  string `json:"settlementToken,omitempty"`
	TokenPerPoint    string `json:"tokenPerPoint"`
	TGE              int64  `json:"tge"`
	SettlementPeriod int64  `json:"settlementPeriod"`
	CreatedAt        int64  `json:"createdAt"`
}

func marketToJSON(m *market.MarketPlace) *marketJSON {
	if m == nil {
		return nil
	}
	return &marketJSON{
		ID:               encodeID(m.ID),
		Name:             m.Name,
		Status:           m.Status.String(),
		FixedRatio:       m.FixedRatio,
		SettlementToken:  m.SettlementToken,
		TokenPerPoint:    formatBig(m.TokenPerPoint),
		TGE:              m.TGE,
		SettlementPeriod: m.SettlementPeriod,
		CreatedAt:        m.CreatedAt,
	}
}

func (s *Server) handleMarketCreate(w http.ResponseWriter, req *RPCRequest) {
	var params marketCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	mkt, err := s.markets.CreateMarket(caller, params.Name, params.FixedRatio)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, marketToJSON(mkt))
}

func (s *Server) handleMarketSetStatus(w http.ResponseWriter, req *RPCRequest) {
	var params marketStatusParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid market id", err.Error())
		return
	}
	var status market.Status
	switch strings.ToLower(strings.TrimSpace(params.Status)) {
	case "online":
		status = market.StatusOnline
	case "offline":
		status = market.StatusOffline
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "status must be online or offline", nil)
		return
	}
	if err := s.markets.SetStatus(caller, id, status); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketPublishSettlement(w http.ResponseWriter, req *RPCRequest) {
	var params marketSettlementParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid market id", err.Error())
		return
	}
	tokenPerPoint, err := parseAmount(params.TokenPerPoint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tokenPerPoint", err.Error())
		return
	}
	if err := s.markets.PublishSettlement(caller, id, params.Token, tokenPerPoint, params.TGE, params.SettlementPeriod); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketRegisterToken(w http.ResponseWriter, req *RPCRequest) {
	var params tokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.markets.RegisterToken(caller, params.Symbol); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketGet(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid market id", err.Error())
		return
	}
	mkt, err := s.markets.Get(id)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, marketToJSON(mkt))
}

func (s *Server) handleMarketGetByName(w http.ResponseWriter, req *RPCRequest) {
	var params marketNameParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	mkt, err := s.markets.GetByName(params.Name)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, marketToJSON(mkt))
}

func (s *Server) handleReferralRegisterCode(w http.ResponseWriter, req *RPCRequest) {
	var params referralRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	referrer, err := parseAddr(params.Referrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid referrer address", err.Error())
		return
	}
	info, err := s.referral.RegisterCode(referrer, params.Code, params.ReferrerBps, params.AuthorityBps)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"code":         info.Code,
		"referrer":     encodeAddr(info.Referrer),
		"referrerBps":  info.ReferrerBps,
		"authorityBps": info.AuthorityBps,
	})
}

func (s *Server) handleReferralBindCode(w http.ResponseWriter, req *RPCRequest) {
	var params referralBindParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	user, err := parseAddr(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return
	}
	if err := s.referral.BindCode(user, params.Code); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleReferralSetFeeOverride(w http.ResponseWriter, req *RPCRequest) {
	var params feeOverrideParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	user, err := parseAddr(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return
	}
	if err := s.referral.SetFeeOverride(caller, user, params.Bps); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleLedgerBalance(w http.ResponseWriter, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddr(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	bucket := ledger.Bucket(strings.ToLower(strings.TrimSpace(params.Bucket)))
	if bucket == "" {
		bucket = ledger.BucketAvailable
	}
	balance, err := s.funds.Balance(addr, params.Token, bucket)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address": params.Address,
		"token":   params.Token,
		"bucket":  string(bucket),
		"balance": formatBig(balance),
	})
}

func (s *Server) handleLedgerWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	bucket := ledger.Bucket(strings.ToLower(strings.TrimSpace(params.Bucket)))
	if err := s.funds.Withdraw(caller, params.Token, bucket, amount); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleLedgerWithdrawable(w http.ResponseWriter, req *RPCRequest) {
	var params withdrawableParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddr(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	total, err := s.funds.Withdrawable(addr, params.Token)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address": params.Address,
		"token":   params.Token,
		"amount":  formatBig(total),
	})
}

func (s *Server) handleLedgerEscrowBalance(w http.ResponseWriter, req *RPCRequest) {
	var params escrowBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid escrow id", err.Error())
		return
	}
	balance, err := s.funds.EscrowBalance(id, params.Token)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"id":      params.ID,
		"token":   params.Token,
		"balance": formatBig(balance),
	})
}
