package restapi

import (
	"context"
	"net/http"

	"tradesim/internal/entity"
	"tradesim/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BalanceSource is the balance view the account endpoints need.
type BalanceSource interface {
	ListBalances(ctx context.Context, teamID string) ([]entity.Balance, error)
}

// AccountHandler serves the authenticated team's balances, portfolio and
// trade history.
type AccountHandler struct {
	balances  BalanceSource
	portfolio *service.PortfolioService
	trades    *service.TradeService
	logger    *zap.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(balances BalanceSource, portfolio *service.PortfolioService, trades *service.TradeService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		balances:  balances,
		portfolio: portfolio,
		trades:    trades,
		logger:    logger.Named("AccountHandler"),
	}
}

// BalancesHandler handles GET /api/account/balances.
func (h *AccountHandler) BalancesHandler(c *gin.Context) {
	team := currentTeam(c)

	balances, err := h.balances.ListBalances(c.Request.Context(), team.ID)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	if balances == nil {
		balances = []entity.Balance{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"teamId":   team.ID,
		"balances": balances,
	})
}

// PortfolioHandler handles GET /api/account/portfolio.
func (h *AccountHandler) PortfolioHandler(c *gin.Context) {
	team := currentTeam(c)

	total, tokens, err := h.portfolio.Value(c.Request.Context(), team.ID)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	if tokens == nil {
		tokens = []entity.TokenValue{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"teamId":     team.ID,
		"totalValue": total,
		"tokens":     tokens,
	})
}

// TradesHandler handles GET /api/account/trades, newest first.
func (h *AccountHandler) TradesHandler(c *gin.Context) {
	team := currentTeam(c)

	trades, err := h.trades.RecentTrades(c.Request.Context(), team.ID)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	if trades == nil {
		trades = []entity.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"teamId":  team.ID,
		"trades":  trades,
	})
}
