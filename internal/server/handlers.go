package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"RiskPool/internal/engine"
	"RiskPool/internal/gate"
	"RiskPool/internal/pool"
)

type depositRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type depositResponse struct {
	SharesMinted int64 `json:"shares_minted"`
	PoolBalance  int64 `json:"pool_balance"`
}

type purchaseRequest struct {
	Owner           string `json:"owner"`
	Premium         int64  `json:"premium"`
	MaxPayout       int64  `json:"max_payout"`
	DurationSeconds int64  `json:"duration_seconds"`
	Region          string `json:"region"`
}

type purchaseResponse struct {
	PolicyID uint64 `json:"policy_id"`
}

type withdrawRequest struct {
	Account     string `json:"account"`
	ShareAmount int64  `json:"share_amount"`
}

type withdrawResponse struct {
	AmountPaid  int64 `json:"amount_paid"`
	PoolBalance int64 `json:"pool_balance"`
}

type settleRequest struct {
	PolicyIDs      []uint64 `json:"policy_ids"`
	PayoutRatioBps int64    `json:"payout_ratio_bps"`
}

type settleResponse struct {
	SettledCount int   `json:"settled_count"`
	Skipped      int   `json:"skipped"`
	TotalPaid    int64 `json:"total_paid"`
}

type reserveRatioRequest struct {
	ReserveRatioBps int64 `json:"reserve_ratio_bps"`
}

type poolStateResponse struct {
	PoolBalance     int64 `json:"pool_balance"`
	TotalShares     int64 `json:"total_shares"`
	ReserveRatioBps int64 `json:"reserve_ratio_bps"`
	Paused          bool  `json:"paused"`
	Sequence        int64 `json:"sequence"`
}

type shareBalanceResponse struct {
	Account string `json:"account"`
	Shares  int64  `json:"shares"`
}

type policyResponse struct {
	PolicyID       uint64     `json:"policy_id"`
	Owner          string     `json:"owner"`
	Premium        int64      `json:"premium"`
	MaxPayout      int64      `json:"max_payout"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	Region         string     `json:"region"`
	Status         string     `json:"status"`
	PayoutRatioBps *int64     `json:"payout_ratio_bps,omitempty"`
	Payout         *int64     `json:"payout,omitempty"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	minted, err := s.engine.Deposit(r.Context(), account, req.Amount)
	if err != nil {
		s.writeEngineError(w, "deposit", err)
		return
	}

	writeJSON(w, http.StatusOK, depositResponse{
		SharesMinted: minted,
		PoolBalance:  s.engine.PoolBalance(),
	})
}

func (s *Server) handlePurchasePolicy(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	owner, err := uuid.Parse(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner id")
		return
	}

	id, err := s.engine.PurchasePolicy(
		r.Context(),
		owner,
		req.Premium,
		req.MaxPayout,
		time.Duration(req.DurationSeconds)*time.Second,
		req.Region,
	)
	if err != nil {
		s.writeEngineError(w, "purchase_policy", err)
		return
	}

	writeJSON(w, http.StatusCreated, purchaseResponse{PolicyID: id})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	paid, err := s.engine.Withdraw(r.Context(), account, req.ShareAmount)
	if err != nil {
		s.writeEngineError(w, "withdraw", err)
		return
	}

	writeJSON(w, http.StatusOK, withdrawResponse{
		AmountPaid:  paid,
		PoolBalance: s.engine.PoolBalance(),
	})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.PolicyIDs) == 0 {
		writeError(w, http.StatusBadRequest, "policy_ids must not be empty")
		return
	}

	res, err := s.engine.Settle(r.Context(), caller, req.PolicyIDs, req.PayoutRatioBps)
	if err != nil {
		s.writeEngineError(w, "settle", err)
		return
	}

	writeJSON(w, http.StatusOK, settleResponse{
		SettledCount: res.SettledCount,
		Skipped:      res.Skipped,
		TotalPaid:    res.TotalPaid,
	})
}

func (s *Server) handleSetReserveRatio(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req reserveRatioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.engine.SetReserveRatio(r.Context(), caller, req.ReserveRatioBps); err != nil {
		s.writeEngineError(w, "set_reserve_ratio", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if err := s.engine.Pause(r.Context(), caller); err != nil {
		s.writeEngineError(w, "pause", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if err := s.engine.Unpause(r.Context(), caller); err != nil {
		s.writeEngineError(w, "unpause", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePoolState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, poolStateResponse{
		PoolBalance:     s.engine.PoolBalance(),
		TotalShares:     s.engine.TotalShares(),
		ReserveRatioBps: s.engine.ReserveRatioBps(),
		Paused:          s.engine.Paused(),
		Sequence:        s.engine.Sequence(),
	})
}

func (s *Server) handleShareBalance(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	writeJSON(w, http.StatusOK, shareBalanceResponse{
		Account: account.String(),
		Shares:  s.engine.ShareBalance(account),
	})
}

func (s *Server) handlePolicyByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy id")
		return
	}
	p, found := s.engine.GetPolicy(id)
	if !found {
		writeError(w, http.StatusNotFound, "policy not found")
		return
	}

	resp := policyResponse{
		PolicyID:  p.ID,
		Owner:     p.Owner.String(),
		Premium:   p.Premium,
		MaxPayout: p.MaxPayout,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Region:    p.Region,
		Status:    p.Status.String(),
	}
	if p.Status == pool.StatusSettled {
		ratio, payout := p.PayoutRatioBps, p.Payout
		resp.PayoutRatioBps = &ratio
		resp.Payout = &payout
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePoliciesByOwner(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeError(w, http.StatusServiceUnavailable, "query service unavailable")
		return
	}
	owner, err := uuid.Parse(r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing owner")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.query.PoliciesByOwner(r.Context(), owner, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("policy owner query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRecentSettlements(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeError(w, http.StatusServiceUnavailable, "query service unavailable")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.query.RecentSettlements(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("recent settlements query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// authenticate resolves the bearer token on privileged routes. A reply
// has already been written when ok is false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (gate.Principal, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return gate.Principal{}, false
	}
	caller, err := s.verifier.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return gate.Principal{}, false
	}
	return caller, true
}

func (s *Server) writeEngineError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidDuration),
		errors.Is(err, engine.ErrInvalidRatio):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrPaused):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInsufficientShares),
		errors.Is(err, engine.ErrInsufficientAvailableLiquidity):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrTransferFailed):
		status = http.StatusBadGateway
	default:
		s.logger.Error().Err(err).Str("op", op).Msg("operation failed")
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
