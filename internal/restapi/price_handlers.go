package restapi

import (
	"net/http"

	"tradesim/internal/chain"
	"tradesim/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PriceHandler serves ad-hoc price lookups through the aggregator.
type PriceHandler struct {
	prices service.PriceSource
	logger *zap.Logger
}

// NewPriceHandler creates a new price handler.
func NewPriceHandler(prices service.PriceSource, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{
		prices: prices,
		logger: logger.Named("PriceHandler"),
	}
}

// PriceHandler handles GET /api/price. Chain hints are optional; the
// aggregator auto-detects when they are omitted.
func (h *PriceHandler) GetPriceHandler(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		badRequest(c, "token is required")
		return
	}
	chainHint, ok := chain.ParseChain(c.Query("chain"))
	if !ok {
		badRequest(c, "invalid chain")
		return
	}
	specificHint, ok := chain.ParseSpecificChain(c.Query("specificChain"))
	if !ok {
		badRequest(c, "invalid specificChain")
		return
	}

	report := h.prices.GetPrice(c.Request.Context(), token, chainHint, specificHint)
	if report == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Unable to determine price for token " + token,
			"token":   token,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"price":         report.PriceUSD,
		"chain":         report.Chain,
		"specificChain": report.SpecificChain,
		"token":         report.Token,
	})
}
