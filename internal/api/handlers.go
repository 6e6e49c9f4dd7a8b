package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/launch"
	"launch-curve-engine/internal/token"
)

// curveResponse is the JSON view of a curve plus derived pricing.
type curveResponse struct {
	ID                 string   `json:"id"`
	OwnerType          string   `json:"ownerType"`
	OwnerID            string   `json:"ownerId"`
	Status             string   `json:"status"`
	Supply             int64    `json:"supply"`
	ReserveLamports    int64    `json:"reserveLamports"`
	BasePrice          string   `json:"basePrice"`
	PriceLamports      int64    `json:"priceLamports"`
	MarketCapLamports  int64    `json:"marketCapLamports"`
	TokenMint          string   `json:"tokenMint,omitempty"`
	LaunchTxRef        string   `json:"launchTxRef,omitempty"`
	CreatedAt          int64    `json:"createdAt"`
	FrozenAt           int64    `json:"frozenAt,omitempty"`
	LaunchedAt         int64    `json:"launchedAt,omitempty"`
	LaunchReady        bool     `json:"launchReady"`
	LaunchBlockReasons []string `json:"launchBlockReasons,omitempty"`
}

func (s *Server) curveView(c *domain.Curve, holderCount int) (*curveResponse, error) {
	shape, err := s.baseShape.WithBasePrice(c.BasePrice)
	if err != nil {
		return nil, err
	}
	readiness := s.gate.Check(c, holderCount)

	return &curveResponse{
		ID:                 c.ID,
		OwnerType:          string(c.OwnerType),
		OwnerID:            c.OwnerID,
		Status:             string(c.Status),
		Supply:             c.Supply,
		ReserveLamports:    c.ReserveLamports,
		BasePrice:          c.BasePrice,
		PriceLamports:      shape.PriceLamports(c.Supply),
		MarketCapLamports:  shape.MarketCapLamports(c.Supply),
		TokenMint:          c.TokenMint,
		LaunchTxRef:        c.LaunchTxRef,
		CreatedAt:          c.CreatedAt,
		FrozenAt:           c.FrozenAt,
		LaunchedAt:         c.LaunchedAt,
		LaunchReady:        readiness.Ready,
		LaunchBlockReasons: readiness.Reasons,
	}, nil
}

func (s *Server) respondCurve(w http.ResponseWriter, r *http.Request, status int, c *domain.Curve) {
	count, err := s.holders.CountActive(r.Context(), c.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view, err := s.curveView(c, count)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, view)
}

// POST /curve/create
func (s *Server) handleCreateCurve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerType string `json:"ownerType"`
		OwnerID   string `json:"ownerId"`
		BasePrice string `json:"basePrice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body")
		return
	}

	ownerType := domain.OwnerType(req.OwnerType)
	if !ownerType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_input", "ownerType must be user or project")
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "ownerId required")
		return
	}

	basePrice := req.BasePrice
	if basePrice == "" {
		basePrice = s.cfg.BasePriceSOL
	}
	if _, err := s.baseShape.WithBasePrice(basePrice); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "basePrice is not a positive decimal")
		return
	}

	c := &domain.Curve{
		ID:        uuid.NewString(),
		OwnerType: ownerType,
		OwnerID:   req.OwnerID,
		Status:    domain.CurveStatusActive,
		BasePrice: basePrice,
		CreatedAt: s.now(),
	}
	if err := s.curves.Insert(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Printf("[api] curve created id=%s owner=%s/%s", c.ID, c.OwnerType, c.OwnerID)
	s.respondCurve(w, r, http.StatusCreated, c)
}

// GET /curve/owner?ownerType=&ownerId=
func (s *Server) handleGetByOwner(w http.ResponseWriter, r *http.Request) {
	ownerType := domain.OwnerType(r.URL.Query().Get("ownerType"))
	ownerID := r.URL.Query().Get("ownerId")
	if !ownerType.Valid() || ownerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "ownerType and ownerId required")
		return
	}

	c, err := s.curves.GetByOwner(r.Context(), ownerType, ownerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.respondCurve(w, r, http.StatusOK, c)
}

// GET /curve/{curveID}
func (s *Server) handleGetCurve(w http.ResponseWriter, r *http.Request) {
	c, err := s.curves.GetByID(r.Context(), chi.URLParam(r, "curveID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.respondCurve(w, r, http.StatusOK, c)
}

// GET /curve/{curveID}/holders
func (s *Server) handleHolders(w http.ResponseWriter, r *http.Request) {
	curveID := chi.URLParam(r, "curveID")
	c, err := s.curves.GetByID(r.Context(), curveID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	holders, err := s.holders.ListActive(r.Context(), curveID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type holderView struct {
		UserID           string  `json:"userId"`
		WalletAddress    string  `json:"walletAddress,omitempty"`
		Balance          int64   `json:"balance"`
		InvestedLamports int64   `json:"investedLamports"`
		Percentage       float64 `json:"percentage"`
	}
	views := make([]holderView, len(holders))
	for i, h := range holders {
		views[i] = holderView{
			UserID:           h.UserID,
			WalletAddress:    h.WalletAddress,
			Balance:          h.Balance,
			InvestedLamports: h.InvestedLamports,
		}
		if c.Supply > 0 {
			views[i].Percentage = float64(h.Balance) / float64(c.Supply) * 100
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"curveId": curveID,
		"supply":  c.Supply,
		"holders": views,
	})
}

// GET /curve/{curveID}/trades?limit=
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	curveID := chi.URLParam(r, "curveID")
	if _, err := s.curves.GetByID(r.Context(), curveID); err != nil {
		writeDomainError(w, err)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be 1..500")
			return
		}
		limit = n
	}

	events, err := s.events.ListByCurve(r.Context(), curveID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"curveId": curveID,
		"trades":  events,
	})
}

// GET /curve/{curveID}/quote?direction=&keys=
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	direction := domain.TradeDirection(r.URL.Query().Get("direction"))
	keys, err := strconv.ParseInt(r.URL.Query().Get("keys"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "keys must be an integer")
		return
	}

	q, err := s.ledger.Quote(r.Context(), chi.URLParam(r, "curveID"), direction, keys)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// POST /curve/{curveID}/buy
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	curveID := chi.URLParam(r, "curveID")
	var req struct {
		UserID          string  `json:"userId"`
		Keys            int64   `json:"keys"`
		AmountSol       float64 `json:"amountSol"`
		IsKeysInput     *bool   `json:"isKeysInput"`
		ReferralID      string  `json:"referralId"`
		MaxCostLamports int64   `json:"maxCostLamports"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body")
		return
	}

	keys := req.Keys
	if req.IsKeysInput != nil && !*req.IsKeysInput {
		// Spend-based buy: convert the SOL budget to whole keys first.
		budget := int64(req.AmountSol * float64(domain.LamportsPerSOL))
		n, err := s.ledger.KeysForBudget(r.Context(), curveID, budget)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if n == 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "amountSol buys zero keys")
			return
		}
		keys = n
		if req.MaxCostLamports == 0 {
			req.MaxCostLamports = budget
		}
	}

	res, err := s.ledger.ExecuteBuy(r.Context(), curveID, req.UserID, keys, req.MaxCostLamports, req.ReferralID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.hub.Broadcast(StreamEvent{Type: EventTypeTrade, CurveID: curveID, At: s.now(), Payload: res.Event})
	writeJSON(w, http.StatusOK, res)
}

// POST /curve/{curveID}/sell
func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	curveID := chi.URLParam(r, "curveID")
	var req struct {
		UserID         string `json:"userId"`
		Keys           int64  `json:"keys"`
		MinNetLamports int64  `json:"minNetLamports"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body")
		return
	}

	res, err := s.ledger.ExecuteSell(r.Context(), curveID, req.UserID, req.Keys, req.MinNetLamports)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.hub.Broadcast(StreamEvent{Type: EventTypeTrade, CurveID: curveID, At: s.now(), Payload: res.Event})
	writeJSON(w, http.StatusOK, res)
}

// POST /curve/{curveID}/wallet
// Binds the payout wallet a holder's launch allocation is sent to. The
// holder record only exists after the first buy.
func (s *Server) handleBindWallet(w http.ResponseWriter, r *http.Request) {
	curveID := chi.URLParam(r, "curveID")
	var req struct {
		UserID        string `json:"userId"`
		WalletAddress string `json:"walletAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "userId required")
		return
	}
	if err := token.ValidateWalletAddress(req.WalletAddress); err != nil {
		writeDomainError(w, err)
		return
	}

	h, err := s.holders.Get(r.Context(), curveID, req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.WalletAddress = req.WalletAddress
	if err := s.holders.Upsert(r.Context(), h); err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Printf("[api] wallet bound curve=%s user=%s", curveID, req.UserID)
	writeJSON(w, http.StatusOK, map[string]string{
		"curveId":       curveID,
		"userId":        req.UserID,
		"walletAddress": req.WalletAddress,
	})
}

// POST /curve/{curveID}/freeze
func (s *Server) handleFreeze(w http.ResponseWriter, r *http.Request) {
	curveID := chi.URLParam(r, "curveID")
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body")
		return
	}

	c, err := s.curves.GetByID(r.Context(), curveID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if c.OwnerID != req.UserID {
		writeDomainError(w, launch.ErrNotOwner)
		return
	}

	frozen, err := s.ledger.Freeze(r.Context(), curveID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.hub.Broadcast(StreamEvent{Type: EventTypeFreeze, CurveID: curveID, At: s.now()})
	s.respondCurve(w, r, http.StatusOK, frozen)
}

// POST /curve/{curveID}/launch
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	curveID := chi.URLParam(r, "curveID")
	var req struct {
		UserID      string `json:"userId"`
		TokenName   string `json:"tokenName"`
		TokenSymbol string `json:"tokenSymbol"`
		MetadataRef string `json:"metadataRef"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body")
		return
	}
	if req.TokenName == "" || req.TokenSymbol == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "tokenName and tokenSymbol required")
		return
	}

	res, err := s.orch.Launch(r.Context(), curveID, req.UserID, launch.LaunchParams{
		TokenName:   req.TokenName,
		TokenSymbol: req.TokenSymbol,
		MetadataRef: req.MetadataRef,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.hub.Broadcast(StreamEvent{Type: EventTypeLaunch, CurveID: curveID, At: s.now(), Payload: map[string]interface{}{
		"tokenMint": res.TokenMint,
	}})
	writeJSON(w, http.StatusOK, res)
}

// GET /curve/{curveID}/events (websocket)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	curveID := chi.URLParam(r, "curveID")
	if _, err := s.curves.GetByID(r.Context(), curveID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.hub.ServeWS(w, r, curveID)
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"uptimeSeconds": int64(time.Since(s.started).Seconds()),
	})
}
