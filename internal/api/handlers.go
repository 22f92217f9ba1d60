package api

import (
	"fmt"
	"net/http"
	"strconv"

	"timeout-exchange-go/internal/exchange"

	"github.com/labstack/echo/v4"
)

type timeoutRequest struct {
	Seconds float64 `json:"seconds"`
}

type giftRequest struct {
	To     int64   `json:"to"`
	Amount float64 `json:"amount"`
}

type purchaseRequest struct {
	Item string  `json:"item"`
	Cost float64 `json:"cost"`
}

type betRequest struct {
	Target int64   `json:"target"`
	Amount float64 `json:"amount"`
}

type settleRequest struct {
	Winner int64 `json:"winner"`
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, Response{Message: message})
}

func (s *Server) market(c echo.Context) error {
	quotes, err := s.exchange.Market(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, quotes)
}

func (s *Server) portfolio(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return s.fail(c, err)
	}

	p, err := s.exchange.Portfolio(c.Request().Context(), userID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) balance(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return s.fail(c, err)
	}

	balance, err := s.ledger.Balance(c.Request().Context(), userID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": userID, "balance": balance})
}

func (s *Server) openTrade(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req exchange.OpenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid order")
	}
	req.UserID = userID

	receipt, err := s.exchange.Open(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, Response{Success: true, Message: receipt.Message, Data: receipt})
}

func (s *Server) closeTrade(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return s.fail(c, err)
	}
	tradeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return badRequest(c, "invalid trade id")
	}

	receipt, err := s.exchange.Close(c.Request().Context(), userID, uint(tradeID))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, Response{Success: true, Message: receipt.Message, Data: receipt})
}

func (s *Server) recordTimeout(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req timeoutRequest
	if err := c.Bind(&req); err != nil || req.Seconds < 0 {
		return badRequest(c, "invalid timeout")
	}

	if err := s.ledger.RecordTimeout(c.Request().Context(), userID, req.Seconds); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, Response{Success: true, Message: fmt.Sprintf("<@%d> earned %gs", userID, req.Seconds)})
}

func (s *Server) gift(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req giftRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid gift")
	}

	if err := s.ledger.Gift(c.Request().Context(), userID, req.To, req.Amount); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, Response{Success: true, Message: fmt.Sprintf("<@%d> gifted %gs to <@%d>", userID, req.Amount, req.To)})
}

func (s *Server) purchase(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req purchaseRequest
	if err := c.Bind(&req); err != nil || req.Item == "" {
		return badRequest(c, "invalid purchase")
	}

	p, err := s.ledger.Purchase(c.Request().Context(), userID, req.Item, req.Cost)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, Response{Success: true, Message: fmt.Sprintf("<@%d> bought %s", userID, p.Item), Data: p})
}

func (s *Server) placeBet(c echo.Context) error {
	userID, err := userParam(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req betRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid bet")
	}

	bet, err := s.ledger.PlaceBet(c.Request().Context(), userID, req.Target, req.Amount)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, Response{Success: true, Message: fmt.Sprintf("<@%d> bet %gs on <@%d>", userID, bet.Amount, bet.TargetID), Data: bet})
}

func (s *Server) odds(c echo.Context) error {
	odds, err := s.ledger.OpenOdds(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, odds)
}

func (s *Server) settleBets(c echo.Context) error {
	var req settleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid winner")
	}

	payouts, err := s.ledger.SettleBets(c.Request().Context(), req.Winner)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, Response{Success: true, Message: fmt.Sprintf("%d winning bettors paid", len(payouts)), Data: payouts})
}

func (s *Server) leaderboard(c echo.Context) error {
	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return badRequest(c, "invalid limit")
		}
		limit = n
	}

	users, err := s.ledger.Leaderboard(c.Request().Context(), limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}
