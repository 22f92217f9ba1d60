package api

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"timeout-exchange-go/internal/config"
	"timeout-exchange-go/internal/database"
	"timeout-exchange-go/internal/exchange"
	"timeout-exchange-go/internal/ledger"
	"timeout-exchange-go/internal/market"
	"timeout-exchange-go/internal/metrics"
	"timeout-exchange-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTest serves a fresh exchange whose market never advances.
func setupTest(t *testing.T, server config.Server) (*Server, *ledger.Ledger) {
	frozen := time.Now()
	cfg := &config.Config{
		Market:   config.DefaultMarket(),
		Stocks:   config.DefaultStocks(),
		Database: config.Database{Driver: "sqlite", DSN: "file::memory:"},
	}

	db, err := database.NewDatabase(cfg)
	require.NoError(t, err)

	l := ledger.New(db, nil, zap.NewNop())
	engine := market.NewEngine(cfg.Market, rand.New(rand.NewSource(1)), zap.NewNop())
	m := metrics.New()
	x := exchange.New(db, engine, l, zap.NewNop(),
		exchange.WithMetrics(m),
		exchange.WithClock(func() time.Time { return frozen }))

	return NewServer(server, x, m, zap.NewNop()), l
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndStatus(t *testing.T) {
	s, _ := setupTest(t, config.Server{})

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]string](t, rec)
	assert.Equal(t, s.uuid, status["uuid"])
	assert.Equal(t, "timeout-exchange", status["name"])
	assert.NotEmpty(t, status["uptime"])
}

func TestMarket(t *testing.T) {
	s, _ := setupTest(t, config.Server{})

	rec := do(t, s, http.MethodGet, "/api/market", "")
	require.Equal(t, http.StatusOK, rec.Code)

	quotes := decode[[]exchange.Quote](t, rec)
	require.Len(t, quotes, 7)
	assert.Equal(t, "JGD", quotes[0].Code)
	assert.Less(t, quotes[0].Bid, quotes[0].Ask)
}

func TestTradeLifecycle(t *testing.T) {
	s, l := setupTest(t, config.Server{})
	require.NoError(t, l.RecordTimeout(context.Background(), 123, 10_000))

	rec := do(t, s, http.MethodPost, "/api/users/123/trades", `{"code":"jgd","shares":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	opened := decode[struct {
		Success bool
		Message string
		Data    exchange.Receipt
	}](t, rec)
	assert.True(t, opened.Success)
	assert.True(t, strings.HasPrefix(opened.Message, "<@123> bought 5 shares of JGD @ "), opened.Message)
	assert.Equal(t, int64(123), opened.Data.Trade.UserID)

	rec = do(t, s, http.MethodGet, "/api/users/123/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[exchange.Portfolio](t, rec)
	require.Len(t, p.Positions, 1)
	assert.Equal(t, "JGD", p.Positions[0].Code)

	path := "/api/users/123/trades/" + jsonNumber(opened.Data.Trade.ID) + "/close"
	rec = do(t, s, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[Response](t, rec)
	assert.Contains(t, closed.Message, "<@123> sold 5 shares of JGD @ ")

	rec = do(t, s, http.MethodPost, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode[Response](t, rec).Success)
}

func TestOrderErrors(t *testing.T) {
	s, l := setupTest(t, config.Server{})
	require.NoError(t, l.RecordTimeout(context.Background(), 1, 100))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"UnknownStock", "/api/users/1/trades", `{"code":"XYZ","shares":1}`, http.StatusNotFound},
		{"ZeroShares", "/api/users/1/trades", `{"code":"JGD","shares":0}`, http.StatusBadRequest},
		{"TooExpensive", "/api/users/1/trades", `{"code":"JGD","shares":50}`, http.StatusPaymentRequired},
		{"BadUser", "/api/users/abc/trades", `{"code":"JGD","shares":1}`, http.StatusBadRequest},
		{"BadBody", "/api/users/1/trades", `{"shares":"many"}`, http.StatusBadRequest},
		{"BadTradeID", "/api/users/1/trades/x/close", "", http.StatusBadRequest},
		{"SelfGift", "/api/users/1/gifts", `{"to":1,"amount":5}`, http.StatusBadRequest},
		{"NegativePurchase", "/api/users/1/purchases", `{"item":"role","cost":-5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[Response](t, rec).Message)
		})
	}
}

func TestEconomyEndpoints(t *testing.T) {
	s, l := setupTest(t, config.Server{})
	ctx := context.Background()

	rec := do(t, s, http.MethodPost, "/api/users/1/timeouts", `{"seconds":100}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, s, http.MethodPost, "/api/users/2/timeouts", `{"seconds":30}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/users/2/timeouts", `{"seconds":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/users/1/gifts", `{"to":2,"amount":20}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "<@1> gifted 20s to <@2>", decode[Response](t, rec).Message)

	rec = do(t, s, http.MethodPost, "/api/users/1/purchases", `{"item":"color","cost":30}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/users/1/bets", `{"target":9,"amount":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, s, http.MethodPost, "/api/users/2/bets", `{"target":8,"amount":30}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/bets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	odds := decode[map[string]ledger.Odds](t, rec)
	assert.InDelta(t, 0.25, odds["9"].Chance, 1e-9)

	rec = do(t, s, http.MethodPost, "/api/bets/settle", `{"winner":9}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 100 - 20 gifted - 30 spent - 10 staked + 40 pool.
	balance, err := l.Balance(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 80, balance, 1e-9)

	rec = do(t, s, http.MethodGet, "/api/users/2/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 30, decode[map[string]float64](t, rec)["balance"], 1e-9)

	rec = do(t, s, http.MethodGet, "/api/leaderboard?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]models.User](t, rec)
	require.Len(t, users, 2)
	assert.Equal(t, int64(2), users[0].ID, "two timeouts rank above one")

	rec = do(t, s, http.MethodGet, "/api/leaderboard?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitPerUser(t *testing.T) {
	s, l := setupTest(t, config.Server{RateLimit: 0.001, RateLimitBurst: 1})
	require.NoError(t, l.RecordTimeout(context.Background(), 1, 10_000))

	order := `{"code":"JGD","shares":1}`
	assert.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/users/1/trades", order).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodPost, "/api/users/1/trades", order).Code)

	// Other users have their own bucket; reads are never limited.
	assert.NotEqual(t, http.StatusTooManyRequests, do(t, s, http.MethodPost, "/api/users/2/trades", order).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/users/1/portfolio", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := setupTest(t, config.Server{})

	do(t, s, http.MethodGet, "/api/market", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `exchange_http_requests_total{method="GET",route="/api/market",status="200"} 1`)
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
