package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPool/internal/engine"
	"RiskPool/internal/gate"
	"RiskPool/internal/observability"
	"RiskPool/internal/transfer"
)

const testSigningKey = "http-test-signing-key"

func newTestServer(t *testing.T, reserveBps int64) (chi.Router, *gate.TokenVerifier) {
	t.Helper()

	eng, err := engine.NewEngine(
		reserveBps,
		transfer.NewMemPort(),
		gate.NewCapabilityGate(),
		nil, nil, nil,
		nil,
		zerolog.Nop(),
	)
	require.NoError(t, err)

	verifier := gate.NewTokenVerifier(testSigningKey, "riskpool-test")
	srv := NewServer(
		":0",
		eng,
		nil,
		verifier,
		observability.NewHealthChecker(),
		nil,
		zerolog.Nop(),
	)
	return srv.Router(), verifier
}

func adminToken(t *testing.T, verifier *gate.TokenVerifier) string {
	t.Helper()
	token, err := verifier.Issue("ops", []string{"settle", "set_reserve_ratio", "pause"}, time.Minute)
	require.NoError(t, err)
	return token
}

func doJSON(router chi.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// --- Deposits ---

func TestHandleDeposit(t *testing.T) {
	router, _ := newTestServer(t, 0)
	account := uuid.New()

	rec := doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: account.String(),
		Amount:  500,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[depositResponse](t, rec)
	assert.Equal(t, int64(500), resp.SharesMinted)
	assert.Equal(t, int64(500), resp.PoolBalance)
}

func TestHandleDeposit_InvalidAmount(t *testing.T) {
	router, _ := newTestServer(t, 0)

	rec := doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: uuid.New().String(),
		Amount:  0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDeposit_BadAccount(t *testing.T) {
	router, _ := newTestServer(t, 0)

	rec := doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: "not-a-uuid",
		Amount:  100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Policies ---

func TestHandlePurchaseAndFetchPolicy(t *testing.T) {
	router, _ := newTestServer(t, 0)
	owner := uuid.New()

	rec := doJSON(router, http.MethodPost, "/v1/policies", "", purchaseRequest{
		Owner:           owner.String(),
		Premium:         50,
		MaxPayout:       1000,
		DurationSeconds: 3600,
		Region:          "gulf-coast",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[purchaseResponse](t, rec)
	assert.Equal(t, uint64(1), created.PolicyID)

	rec = doJSON(router, http.MethodGet, fmt.Sprintf("/v1/policies/%d", created.PolicyID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[policyResponse](t, rec)
	assert.Equal(t, owner.String(), got.Owner)
	assert.Equal(t, int64(1000), got.MaxPayout)
	assert.Equal(t, "Active", got.Status)
	assert.Nil(t, got.Payout)
}

func TestHandlePolicyByID_NotFound(t *testing.T) {
	router, _ := newTestServer(t, 0)

	rec := doJSON(router, http.MethodGet, "/v1/policies/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePoliciesByOwner_NoProjectionDB(t *testing.T) {
	router, _ := newTestServer(t, 0)

	rec := doJSON(router, http.MethodGet, "/v1/policies?owner="+uuid.New().String(), "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// --- Settlement ---

func TestHandleSettle_RequiresToken(t *testing.T) {
	router, verifier := newTestServer(t, 0)

	body := settleRequest{PolicyIDs: []uint64{1}, PayoutRatioBps: 5000}

	rec := doJSON(router, http.MethodPost, "/v1/settlements", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(router, http.MethodPost, "/v1/settlements", "garbage-token", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	readOnly, err := verifier.Issue("reader", nil, time.Minute)
	require.NoError(t, err)
	rec = doJSON(router, http.MethodPost, "/v1/settlements", readOnly, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleSettle_SkipsImmaturePolicy(t *testing.T) {
	router, verifier := newTestServer(t, 0)
	token := adminToken(t, verifier)

	doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: uuid.New().String(), Amount: 1000,
	})
	doJSON(router, http.MethodPost, "/v1/policies", "", purchaseRequest{
		Owner: uuid.New().String(), Premium: 10, MaxPayout: 100,
		DurationSeconds: 3600, Region: "midwest",
	})

	rec := doJSON(router, http.MethodPost, "/v1/settlements", token, settleRequest{
		PolicyIDs: []uint64{1}, PayoutRatioBps: 5000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[settleResponse](t, rec)
	assert.Equal(t, 0, resp.SettledCount)
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, int64(0), resp.TotalPaid)
}

func TestHandleSettle_InvalidRatio(t *testing.T) {
	router, verifier := newTestServer(t, 0)
	token := adminToken(t, verifier)

	rec := doJSON(router, http.MethodPost, "/v1/settlements", token, settleRequest{
		PolicyIDs: []uint64{1}, PayoutRatioBps: 10001,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Withdrawals ---

func TestHandleWithdraw(t *testing.T) {
	router, _ := newTestServer(t, 0)
	account := uuid.New()

	doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: account.String(), Amount: 100,
	})

	rec := doJSON(router, http.MethodPost, "/v1/withdrawals", "", withdrawRequest{
		Account: account.String(), ShareAmount: 40,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[withdrawResponse](t, rec)
	assert.Equal(t, int64(40), resp.AmountPaid)
	assert.Equal(t, int64(60), resp.PoolBalance)
}

func TestHandleWithdraw_FullyReservedPool(t *testing.T) {
	router, _ := newTestServer(t, 10000)
	account := uuid.New()

	doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: account.String(), Amount: 100,
	})

	rec := doJSON(router, http.MethodPost, "/v1/withdrawals", "", withdrawRequest{
		Account: account.String(), ShareAmount: 100,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// --- Admin controls ---

func TestHandlePause_BlocksMutations(t *testing.T) {
	router, verifier := newTestServer(t, 0)
	token := adminToken(t, verifier)
	account := uuid.New()

	rec := doJSON(router, http.MethodPost, "/v1/pause", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: account.String(), Amount: 100,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(router, http.MethodPost, "/v1/unpause", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: account.String(), Amount: 100,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleSetReserveRatio(t *testing.T) {
	router, verifier := newTestServer(t, 0)
	token := adminToken(t, verifier)

	rec := doJSON(router, http.MethodPut, "/v1/reserve-ratio", token, reserveRatioRequest{
		ReserveRatioBps: 2500,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(router, http.MethodGet, "/v1/pool", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[poolStateResponse](t, rec)
	assert.Equal(t, int64(2500), state.ReserveRatioBps)

	rec = doJSON(router, http.MethodPut, "/v1/reserve-ratio", token, reserveRatioRequest{
		ReserveRatioBps: 10001,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Read endpoints ---

func TestHandlePoolState(t *testing.T) {
	router, _ := newTestServer(t, 3000)

	doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: uuid.New().String(), Amount: 250,
	})

	rec := doJSON(router, http.MethodGet, "/v1/pool", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	state := decodeBody[poolStateResponse](t, rec)
	assert.Equal(t, int64(250), state.PoolBalance)
	assert.Equal(t, int64(250), state.TotalShares)
	assert.Equal(t, int64(3000), state.ReserveRatioBps)
	assert.False(t, state.Paused)
}

func TestHandleShareBalance(t *testing.T) {
	router, _ := newTestServer(t, 0)
	account := uuid.New()

	doJSON(router, http.MethodPost, "/v1/deposits", "", depositRequest{
		Account: account.String(), Amount: 75,
	})

	rec := doJSON(router, http.MethodGet, "/v1/accounts/"+account.String()+"/shares", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[shareBalanceResponse](t, rec)
	assert.Equal(t, int64(75), resp.Shares)

	rec = doJSON(router, http.MethodGet, "/v1/accounts/"+uuid.New().String()+"/shares", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[shareBalanceResponse](t, rec)
	assert.Equal(t, int64(0), resp.Shares)
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestServer(t, 0)

	rec := doJSON(router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
