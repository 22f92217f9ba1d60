// Package api is the HTTP front end of the exchange. It is a thin relay: the
// exchange formats every user-facing message and the handlers pass them on.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"timeout-exchange-go/internal/config"
	"timeout-exchange-go/internal/exchange"
	"timeout-exchange-go/internal/ledger"
	"timeout-exchange-go/internal/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server serves the exchange over HTTP.
type Server struct {
	echo     *echo.Echo
	exchange *exchange.Exchange
	ledger   *ledger.Ledger
	metrics  *metrics.Metrics
	logger   *zap.Logger

	addr      string
	uuid      string
	startTime time.Time

	// limiters holds one token bucket per user; idle buckets expire.
	limiters  *cache.Cache
	rateLimit rate.Limit
	burst     int
}

// Response is the envelope of every order and economy endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(cfg config.Server, x *exchange.Exchange, m *metrics.Metrics, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		exchange:  x,
		ledger:    x.Ledger(),
		metrics:   m,
		logger:    logger.Named("api-server"),
		addr:      fmt.Sprintf(":%d", cfg.Port),
		uuid:      uuid.NewString(),
		startTime: time.Now(),
		limiters:  cache.New(10*time.Minute, 10*time.Minute),
		rateLimit: rate.Limit(cfg.RateLimit),
		burst:     cfg.RateLimitBurst,
	}

	e.Use(s.observe)
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	g := e.Group("/api")
	g.GET("/status", s.status)
	g.GET("/market", s.market)
	g.GET("/leaderboard", s.leaderboard)
	g.GET("/bets", s.odds)
	g.POST("/bets/settle", s.settleBets)

	users := g.Group("/users/:user")
	users.GET("/portfolio", s.portfolio)
	users.GET("/balance", s.balance)
	users.POST("/timeouts", s.recordTimeout)
	users.POST("/trades", s.openTrade, s.limitUser)
	users.POST("/trades/:id/close", s.closeTrade, s.limitUser)
	users.POST("/gifts", s.gift, s.limitUser)
	users.POST("/purchases", s.purchase, s.limitUser)
	users.POST("/bets", s.placeBet, s.limitUser)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting API server", zap.String("address", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.echo.Shutdown(ctx)
}

// observe records request metrics.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		route := c.Path()
		s.metrics.HTTPRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(c.Response().Status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return nil
	}
}

// limitUser rejects a user's orders beyond the configured rate.
func (s *Server) limitUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.rateLimit <= 0 {
			return next(c)
		}

		key := c.Param("user")
		var limiter *rate.Limiter
		if v, ok := s.limiters.Get(key); ok {
			limiter = v.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(s.rateLimit, s.burst)
			if err := s.limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
				// Another request created it first.
				v, _ := s.limiters.Get(key)
				limiter = v.(*rate.Limiter)
			}
		}

		if !limiter.Allow() {
			return c.JSON(http.StatusTooManyRequests, Response{Message: "slow down, too many orders"})
		}
		return next(c)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"uuid":       s.uuid,
		"name":       "timeout-exchange",
		"start_time": s.startTime.Format(time.RFC3339),
		"uptime":     time.Since(s.startTime).String(),
	})
}

// fail maps an operation error onto a status code and a user-facing message.
func (s *Server) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exchange.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, exchange.ErrInvalidOrder), errors.Is(err, ledger.ErrInvalidAmount):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(status, Response{Message: "something went wrong, please try again"})
	}
	return c.JSON(status, Response{Message: err.Error()})
}

func userParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("user"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid user id", exchange.ErrInvalidOrder)
	}
	return id, nil
}
