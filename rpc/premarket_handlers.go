package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"otcmarket/native/premarket"
	"otcmarket/observability/metrics"
)

type createOfferParams struct {
	Caller             string `json:"caller"`
	Market             string `json:"market"`
	Token              string `json:"token"`
	Points             string `json:"points"`
	UnitPrice          string `json:"unitPrice"`
	CollateralRatioBps uint32 `json:"collateralRatioBps"`
	TaxBps             uint32 `json:"taxBps"`
	OfferType          string `json:"offerType"`
	SettleType         string `json:"settleType"`
	Payment            string `json:"payment"`
}

type createTakerParams struct {
	Caller  string `json:"caller"`
	Offer   string `json:"offer"`
	Points  string `json:"points"`
	Payment string `json:"payment"`
}

type listOfferParams struct {
	Caller             string `json:"caller"`
	Stock              string `json:"stock"`
	UnitPrice          string `json:"unitPrice"`
	CollateralRatioBps uint32 `json:"collateralRatioBps"`
	Payment            string `json:"payment"`
}

type stockOfferParams struct {
	Caller string `json:"caller"`
	Stock  string `json:"stock"`
	Offer  string `json:"offer"`
}

type relistOfferParams struct {
	Caller  string `json:"caller"`
	Stock   string `json:"stock"`
	Offer   string `json:"offer"`
	Payment string `json:"payment"`
}

type settleMakerParams struct {
	Caller string `json:"caller"`
	Offer  string `json:"offer"`
	Points string `json:"points"`
}

type settleTakerParams struct {
	Caller string `json:"caller"`
	Stock  string `json:"stock"`
	Points string `json:"points"`
}

type closeBidParams struct {
	Caller string `json:"caller"`
	Stock  string `json:"stock"`
}

type idParams struct {
	ID string `json:"id"`
}

type offerJSON struct {
	ID                 string `json:"id"`
	Maker              string `json:"maker"`
	Market             string `json:"market"`
	Token              string `json:"token"`
	Points             string `json:"points"`
	UnitPrice          string `json:"unitPrice"`
	CollateralRatioBps uint32 `json:"collateralRatioBps"`
	TaxBps             uint32 `json:"taxBps"`
	OfferType          string `json:"offerType"`
	SettleType         string `json:"settleType"`
	Remaining          string `json:"remaining"`
	SettledPoints      string `json:"settledPoints"`
	Status             string `json:"status"`
	OriginStock        string `json:"originStock,omitempty"`
	MakerStock         string `json:"makerStock,omitempty"`
	CreatedAt          int64  `json:"createdAt"`
}

type stockJSON struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	Offer           string `json:"offer"`
	Market          string `json:"market"`
	Points          string `json:"points"`
	Price           string `json:"price"`
	StockType       string `json:"stockType"`
	SettleType      string `json:"settleType"`
	Status          string `json:"status"`
	Maker           bool   `json:"maker"`
	ListedOffer     string `json:"listedOffer,omitempty"`
	Notional        string `json:"notional"`
	Collateral      string `json:"collateral"`
	Fee             string `json:"fee"`
	ReferrerCut     string `json:"referrerCut"`
	AuthorityCut    string `json:"authorityCut"`
	Referrer        string `json:"referrer,omitempty"`
	DeliveredPoints string `json:"deliveredPoints"`
	ClaimableValue  string `json:"claimableValue"`
	Claimed         bool   `json:"claimed"`
	CreatedAt       int64  `json:"createdAt"`
}

func formatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func offerToJSON(o *premarket.Offer) *offerJSON {
	if o == nil {
		return nil
	}
	out := &offerJSON{
		ID:                 encodeID(o.ID),
		Maker:              encodeAddr(o.Maker),
		Market:             encodeID(o.MarketID),
		Token:              o.CollateralToken,
		Points:             formatBig(o.Points),
		UnitPrice:          formatBig(o.UnitPrice),
		CollateralRatioBps: o.CollateralRatioBps,
		TaxBps:             o.TaxBps,
		OfferType:          o.OfferType.String(),
		SettleType:         o.SettleType.String(),
		Remaining:          formatBig(o.Remaining),
		SettledPoints:      formatBig(o.SettledPoints),
		Status:             o.Status.String(),
		CreatedAt:          o.CreatedAt,
	}
	if o.OriginStock != ([32]byte{}) {
		out.OriginStock = encodeID(o.OriginStock)
	}
	if o.MakerStock != ([32]byte{}) {
		out.MakerStock = encodeID(o.MakerStock)
	}
	return out
}

func stockToJSON(s *premarket.Stock) *stockJSON {
	if s == nil {
		return nil
	}
	out := &stockJSON{
		ID:              encodeID(s.ID),
		Owner:           encodeAddr(s.Owner),
		Offer:           encodeID(s.OfferID),
		Market:          encodeID(s.MarketID),
		Points:          formatBig(s.Points),
		Price:           formatBig(s.Price),
		StockType:       s.StockType.String(),
		SettleType:      s.SettleType.String(),
		Status:          s.Status.String(),
		Maker:           s.Maker,
		Notional:        formatBig(s.Notional),
		Collateral:      formatBig(s.Collateral),
		Fee:             formatBig(s.Fee),
		ReferrerCut:     formatBig(s.ReferrerCut),
		AuthorityCut:    formatBig(s.AuthorityCut),
		DeliveredPoints: formatBig(s.DeliveredPoints),
		ClaimableValue:  formatBig(s.ClaimableValue),
		Claimed:         s.Claimed,
		CreatedAt:       s.CreatedAt,
	}
	if s.ListedOffer != ([32]byte{}) {
		out.ListedOffer = encodeID(s.ListedOffer)
	}
	if s.HasReferrer {
		out.Referrer = encodeAddr(s.Referrer)
	}
	return out
}

func parseOfferType(value string) (premarket.OfferType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ask":
		return premarket.OfferAsk, true
	case "bid":
		return premarket.OfferBid, true
	default:
		return 0, false
	}
}

func parseSettleType(value string) (premarket.SettleType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "turbo":
		return premarket.SettleTurbo, true
	case "protected":
		return premarket.SettleProtected, true
	default:
		return 0, false
	}
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, req *RPCRequest) {
	var params createOfferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	marketID, err := parseID(params.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid market id", err.Error())
		return
	}
	points, err := parseAmount(params.Points)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid points", err.Error())
		return
	}
	price, err := parseAmount(params.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid unit price", err.Error())
		return
	}
	payment, err := parseAmount(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}
	offerType, ok := parseOfferType(params.OfferType)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "offerType must be ask or bid", nil)
		return
	}
	settleType, ok := parseSettleType(params.SettleType)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "settleType must be turbo or protected", nil)
		return
	}

	offer, stock, err := s.engine.CreateOffer(caller, premarket.CreateOfferParams{
		MarketID:           marketID,
		CollateralToken:    params.Token,
		Points:             points,
		UnitPrice:          price,
		CollateralRatioBps: params.CollateralRatioBps,
		TaxBps:             params.TaxBps,
		OfferType:          offerType,
		SettleType:         settleType,
	}, payment)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	metrics.Premarket().ObserveOfferCreated(offer.OfferType.String(), offer.SettleType.String())
	writeResult(w, req.ID, map[string]interface{}{
		"offer": offerToJSON(offer),
		"stock": stockToJSON(stock),
	})
}

func (s *Server) handleCreateTaker(w http.ResponseWriter, req *RPCRequest) {
	var params createTakerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	offerID, err := parseID(params.Offer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid offer id", err.Error())
		return
	}
	points, err := parseAmount(params.Points)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid points", err.Error())
		return
	}
	payment, err := parseAmount(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}

	stock, err := s.engine.CreateTaker(caller, offerID, points, payment)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	metrics.Premarket().ObserveTakerFilled()
	writeResult(w, req.ID, stockToJSON(stock))
}

func (s *Server) handleListOffer(w http.ResponseWriter, req *RPCRequest) {
	var params listOfferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	stockID, err := parseID(params.Stock)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid stock id", err.Error())
		return
	}
	price, err := parseAmount(params.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid unit price", err.Error())
		return
	}
	payment, err := parseAmount(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}

	offer, err := s.engine.ListOffer(caller, stockID, price, params.CollateralRatioBps, payment)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	metrics.Premarket().ObserveRelist()
	writeResult(w, req.ID, offerToJSON(offer))
}

func (s *Server) handleCloseOffer(w http.ResponseWriter, req *RPCRequest) {
	s.handleStockOfferOp(w, req, func(caller [20]byte, stockID, offerID [32]byte) error {
		return s.engine.CloseOffer(caller, stockID, offerID)
	}, "")
}

func (s *Server) handleRelistOffer(w http.ResponseWriter, req *RPCRequest) {
	var params relistOfferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	stockID, err := parseID(params.Stock)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid stock id", err.Error())
		return
	}
	offerID, err := parseID(params.Offer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid offer id", err.Error())
		return
	}
	payment, err := parseAmount(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}

	if err := s.engine.RelistOffer(caller, stockID, offerID, payment); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	metrics.Premarket().ObserveRelist()
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAbortAskOffer(w http.ResponseWriter, req *RPCRequest) {
	s.handleStockOfferOp(w, req, func(caller [20]byte, stockID, offerID [32]byte) error {
		return s.engine.AbortAskOffer(caller, stockID, offerID)
	}, "maker")
}

func (s *Server) handleAbortBidTaker(w http.ResponseWriter, req *RPCRequest) {
	s.handleStockOfferOp(w, req, func(caller [20]byte, stockID, offerID [32]byte) error {
		return s.engine.AbortBidTaker(caller, stockID, offerID)
	}, "taker")
}

func (s *Server) handleStockOfferOp(w http.ResponseWriter, req *RPCRequest, op func([20]byte, [32]byte, [32]byte) error, abortActor string) {
	var params stockOfferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	stockID, err := parseID(params.Stock)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid stock id", err.Error())
		return
	}
	offerID, err := parseID(params.Offer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid offer id", err.Error())
		return
	}

	if err := op(caller, stockID, offerID); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	if abortActor != "" {
		metrics.Premarket().ObserveAbort(abortActor)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSettleAskMaker(w http.ResponseWriter, req *RPCRequest) {
	var params settleMakerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	offerID, err := parseID(params.Offer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid offer id", err.Error())
		return
	}
	points, err := parseAmount(params.Points)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid points", err.Error())
		return
	}

	if err := s.delivery.SettleAskMaker(caller, offerID, points); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	metrics.Premarket().ObserveSettlement("askMaker")
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSettleAskTaker(w http.ResponseWriter, req *RPCRequest) {
	var params settleTakerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	stockID, err := parseID(params.Stock)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid stock id", err.Error())
		return
	}
	points, err := parseAmount(params.Points)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid points", err.Error())
		return
	}

	if err := s.delivery.SettleAskTaker(caller, stockID, points); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	metrics.Premarket().ObserveSettlement("askTaker")
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleCloseBidTaker(w http.ResponseWriter, req *RPCRequest) {
	var params closeBidParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	stockID, err := parseID(params.Stock)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid stock id", err.Error())
		return
	}

	if err := s.delivery.CloseBidTaker(caller, stockID); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	metrics.Premarket().ObserveSettlement("closeBid")
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleGetOffer(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid offer id", err.Error())
		return
	}
	offer, err := s.engine.GetOffer(id)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, offerToJSON(offer))
}

func (s *Server) handleGetStock(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid stock id", err.Error())
		return
	}
	stock, err := s.engine.GetStock(id)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stockToJSON(stock))
}
