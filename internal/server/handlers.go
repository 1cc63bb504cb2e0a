package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/whetstoneresearch/doppler-sub010/internal/auction"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
)

// Handler adapts the auction engine to HTTP.
type Handler struct {
	eng   *auction.Engine
	clock Clock
}

// NewHandler wires an engine to the API. A nil clock defaults to the wall
// clock in unix seconds.
func NewHandler(eng *auction.Engine, clock Clock) *Handler {
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}
	return &Handler{eng: eng, clock: clock}
}

type startRequest struct {
	Caller string `json:"caller"`
}

// StartAuction handles POST /v1/auction/start.
func (h *Handler) StartAuction(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.eng.Start(r.Context(), req.Caller, h.clock()); err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.eng.Snapshot())
}

type placeBidRequest struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Size      int64  `json:"size"`
	Salt      uint64 `json:"salt"`
}

type placeBidResponse struct {
	BidID string `json:"bid_id"`
}

// PlaceBid handles POST /v1/bids.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id, err := h.eng.Place(r.Context(), req.Owner,
		levels.Tick(req.TickLower), levels.Tick(req.TickUpper),
		req.Size, req.Salt, h.clock())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, placeBidResponse{BidID: id.String()})
}

type withdrawRequest struct {
	Owner string `json:"owner"`
	Tick  int32  `json:"tick"`
	Salt  uint64 `json:"salt"`
	Size  int64  `json:"size"`
}

// WithdrawBid handles POST /v1/bids/withdraw.
func (h *Handler) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := h.eng.Withdraw(r.Context(), req.Owner, levels.Tick(req.Tick), req.Salt, req.Size, h.clock())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

type settleResponse struct {
	ClearingTick int32 `json:"clearing_tick"`
	Price        int64 `json:"price"`
	Sold         int64 `json:"sold"`
	Proceeds     int64 `json:"proceeds"`
	Executed     bool  `json:"executed"`
}

// Settle handles POST /v1/settle. Open to any caller once the deadline has
// passed.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	res, err := h.eng.Settle(r.Context(), h.clock())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, settleResponse{
		ClearingTick: int32(res.ClearingTick),
		Price:        res.Price,
		Sold:         res.Sold,
		Proceeds:     res.Proceeds,
		Executed:     res.Executed,
	})
}

type claimRequest struct {
	BidID string `json:"bid_id"`
}

type claimResponse struct {
	BidID  string `json:"bid_id"`
	Payout int64  `json:"payout"`
}

// Claim handles POST /v1/claims.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	id, err := uuid.Parse(req.BidID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "bid_id must be a UUID")
		return
	}

	payout, err := h.eng.Claim(id, h.clock())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, claimResponse{BidID: req.BidID, Payout: payout})
}

type transferRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

type transferResponse struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

// Migrate handles POST /v1/migrate.
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.eng.Migrate(req.Caller, req.Recipient, h.clock()); err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "migrated"})
}

// Recover handles POST /v1/incentives/recover.
func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	amount, err := h.eng.Recover(req.Caller, req.Recipient, h.clock())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, transferResponse{Recipient: req.Recipient, Amount: amount})
}

// Sweep handles POST /v1/incentives/sweep.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	amount, err := h.eng.Sweep(req.Caller, req.Recipient, h.clock())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, transferResponse{Recipient: req.Recipient, Amount: amount})
}

// GetAuction handles GET /v1/auction.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.eng.Snapshot())
}

// GetLevels handles GET /v1/levels.
func (h *Handler) GetLevels(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.eng.Levels())
}

// GetBid handles GET /v1/bids/{bid_id}.
func (h *Handler) GetBid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bid_id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "bid_id must be a UUID")
		return
	}

	view, err := h.eng.Bid(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}
