package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/whetstoneresearch/doppler-sub010/internal/auction"
	"github.com/whetstoneresearch/doppler-sub010/internal/custody"
	"github.com/whetstoneresearch/doppler-sub010/internal/levels"
	"github.com/whetstoneresearch/doppler-sub010/internal/market"
)

type testServer struct {
	srv *httptest.Server
	now *atomic.Int64
}

func newTestServer(t *testing.T, limiter *rate.Limiter) *testServer {
	t.Helper()

	cfg := auction.Config{
		AuctionID:         "auc-http",
		Duration:          1000,
		FloorPrice:        100,
		Granularity:       10,
		MinBidSize:        10,
		Allocation:        1000,
		IncentiveShareBps: 1000,
		ClaimWindow:       500,
		Owner:             "owner",
		Migrator:          "migrator",
	}

	vault := custody.NewVault()
	vault.CreditAsset(auction.HolderAuction, cfg.Allocation)
	store := levels.NewStore()
	venue := market.NewBookVenue(store, cfg.FloorPrice, market.SellAsset)

	eng, err := auction.NewEngine(cfg, store, vault, venue, nil, zerolog.Nop(), nil)
	require.NoError(t, err)

	now := &atomic.Int64{}
	h := NewHandler(eng, func() int64 { return now.Load() })
	srv := httptest.NewServer(NewRouter(h, zerolog.Nop(), limiter))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, now: now}
}

func (ts *testServer) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) start(t *testing.T) {
	t.Helper()
	resp := ts.post(t, "/v1/auction/start", map[string]string{"caller": "owner"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestStartRejectsNonOwner(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.post(t, "/v1/auction/start", map[string]string{"caller": "mallory"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPlaceAndFetchBid(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.start(t)

	resp := ts.post(t, "/v1/bids", map[string]any{
		"owner": "alice", "tick_lower": 150, "tick_upper": 160, "size": 500, "salt": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decode[map[string]string](t, resp)
	require.NotEmpty(t, placed["bid_id"])

	resp = ts.get(t, "/v1/bids/"+placed["bid_id"])
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[map[string]any](t, resp)
	assert.Equal(t, "alice", view["owner"])
	assert.Equal(t, float64(150), view["tick"])
	assert.Equal(t, float64(500), view["size"])

	snap := decode[map[string]any](t, ts.get(t, "/v1/auction"))
	assert.Equal(t, float64(500), snap["book_liquidity"])
	assert.Equal(t, float64(1), snap["live_bids"])

	lvls := decode[[]map[string]any](t, ts.get(t, "/v1/levels"))
	require.Len(t, lvls, 1)
	assert.Equal(t, float64(150), lvls[0]["tick"])
}

func TestPlaceBidErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.start(t)

	cases := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{
			"below floor",
			map[string]any{"owner": "a", "tick_lower": 90, "tick_upper": 100, "size": 100, "salt": 1},
			http.StatusBadRequest, "price_below_floor",
		},
		{
			"bad width",
			map[string]any{"owner": "a", "tick_lower": 150, "tick_upper": 180, "size": 100, "salt": 1},
			http.StatusBadRequest, "invalid_width",
		},
		{
			"too small",
			map[string]any{"owner": "a", "tick_lower": 150, "tick_upper": 160, "size": 1, "salt": 1},
			http.StatusBadRequest, "insufficient_size",
		},
		{
			"unknown field",
			map[string]any{"owner": "a", "tick": 150},
			http.StatusBadRequest, "invalid_request",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := ts.post(t, "/v1/bids", tc.body)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			body := decode[map[string]string](t, resp)
			assert.Equal(t, tc.wantCode, body["error"])
		})
	}
}

func TestContentTypeEnforced(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Post(ts.srv.URL+"/v1/bids", "text/plain", bytes.NewBufferString("hi"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSettleClaimFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.start(t)

	resp := ts.post(t, "/v1/bids", map[string]any{
		"owner": "alice", "tick_lower": 150, "tick_upper": 160, "size": 900, "salt": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decode[map[string]string](t, resp)

	// Locked while the estimate would fill the level.
	resp = ts.post(t, "/v1/bids/withdraw", map[string]any{
		"owner": "alice", "tick": 150, "salt": 1, "size": 900,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Not due yet.
	resp = ts.post(t, "/v1/settle", struct{}{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	ts.now.Store(1000)
	resp = ts.post(t, "/v1/settle", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	settled := decode[map[string]any](t, resp)
	assert.Equal(t, float64(150), settled["clearing_tick"])
	assert.Equal(t, float64(900), settled["sold"])
	assert.Equal(t, true, settled["executed"])

	resp = ts.post(t, "/v1/settle", struct{}{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = ts.post(t, "/v1/claims", map[string]string{"bid_id": placed["bid_id"]})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	claimed := decode[map[string]any](t, resp)
	assert.Equal(t, float64(100), claimed["payout"])

	resp = ts.post(t, "/v1/claims", map[string]string{"bid_id": placed["bid_id"]})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "already_claimed", body["error"])
}

func TestMigrateAuthorization(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.start(t)
	ts.now.Store(1000)

	resp := ts.post(t, "/v1/settle", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.post(t, "/v1/migrate", map[string]string{"caller": "owner", "recipient": "pool"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = ts.post(t, "/v1/migrate", map[string]string{"caller": "migrator", "recipient": "pool"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Nobody earned credit: the owner recovers the dead reserve.
	resp = ts.post(t, "/v1/incentives/recover", map[string]string{"caller": "owner", "recipient": "treasury"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recovered := decode[map[string]any](t, resp)
	assert.Equal(t, float64(100), recovered["amount"])
}

func TestBidLookupErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.start(t)

	resp := ts.get(t, "/v1/bids/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = ts.get(t, "/v1/bids/00000000-0000-0000-0000-000000000001")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, rate.NewLimiter(rate.Limit(1), 1))

	resp := ts.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		resp := ts.get(t, "/healthz")
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
		resp.Body.Close()
	}
	assert.True(t, limited, "burst of requests should trip the limiter")
}

func TestSweepWindow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.start(t)
	ts.now.Store(1000)

	resp := ts.post(t, "/v1/settle", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.post(t, "/v1/incentives/sweep", map[string]string{"caller": "owner", "recipient": "treasury"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	ts.now.Store(1501)
	resp = ts.post(t, "/v1/incentives/sweep", map[string]string{"caller": "owner", "recipient": "treasury"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	swept := decode[map[string]any](t, resp)
	assert.Equal(t, float64(100), swept["amount"])
}

func TestWithdrawUnknownBid(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.start(t)

	resp := ts.post(t, "/v1/bids/withdraw", map[string]any{
		"owner": "ghost", "tick": 150, "salt": 9, "size": 100,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "not_found", body["error"])
}
