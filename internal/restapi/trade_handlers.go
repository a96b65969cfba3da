package restapi

import (
	"context"
	"net/http"
	"strconv"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
	"tradesim/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ActiveCompetitionSource tells the trade handler which competition a trade
// belongs to.
type ActiveCompetitionSource interface {
	GetActiveCompetition(ctx context.Context) (*entity.Competition, error)
}

// TradeHandler serves the trade execution and quote endpoints.
type TradeHandler struct {
	trades       *service.TradeService
	competitions ActiveCompetitionSource
	logger       *zap.Logger
}

// NewTradeHandler creates a new trade handler.
func NewTradeHandler(trades *service.TradeService, competitions ActiveCompetitionSource, logger *zap.Logger) *TradeHandler {
	return &TradeHandler{
		trades:       trades,
		competitions: competitions,
		logger:       logger.Named("TradeHandler"),
	}
}

type executeTradeRequest struct {
	FromToken         string   `json:"fromToken" binding:"required"`
	ToToken           string   `json:"toToken" binding:"required"`
	Amount            string   `json:"amount" binding:"required"`
	Reason            string   `json:"reason"`
	SlippageTolerance *float64 `json:"slippageTolerance"`
	FromChain         string   `json:"fromChain"`
	ToChain           string   `json:"toChain"`
	FromSpecificChain string   `json:"fromSpecificChain"`
	ToSpecificChain   string   `json:"toSpecificChain"`
}

// ExecuteTradeHandler handles POST /api/trade/execute.
func (h *TradeHandler) ExecuteTradeHandler(c *gin.Context) {
	team := currentTeam(c)

	var body executeTradeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	req, errMsg := body.toTradeRequest()
	if errMsg != "" {
		badRequest(c, errMsg)
		return
	}

	comp, err := h.competitions.GetActiveCompetition(c.Request.Context())
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	if comp == nil {
		badRequest(c, "no active competition")
		return
	}

	trade, err := h.trades.ExecuteTrade(c.Request.Context(), team.ID, comp.ID, req)
	if err != nil {
		if service.IsUserError(err) {
			badRequest(c, err.Error())
			return
		}
		internalError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transaction": trade,
	})
}

// QuoteHandler handles GET /api/trade/quote. It never mutates state.
func (h *TradeHandler) QuoteHandler(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil || amount <= 0 {
		badRequest(c, "amount must be a positive number")
		return
	}

	req := service.TradeRequest{
		FromToken: c.Query("fromToken"),
		ToToken:   c.Query("toToken"),
		Amount:    amount,
	}
	if req.FromToken == "" || req.ToToken == "" {
		badRequest(c, "fromToken and toToken are required")
		return
	}
	var ok bool
	if req.FromChain, ok = chain.ParseChain(c.Query("fromChain")); !ok {
		badRequest(c, "invalid fromChain")
		return
	}
	if req.ToChain, ok = chain.ParseChain(c.Query("toChain")); !ok {
		badRequest(c, "invalid toChain")
		return
	}
	if req.FromSpecificChain, ok = chain.ParseSpecificChain(c.Query("fromSpecificChain")); !ok {
		badRequest(c, "invalid fromSpecificChain")
		return
	}
	if req.ToSpecificChain, ok = chain.ParseSpecificChain(c.Query("toSpecificChain")); !ok {
		badRequest(c, "invalid toSpecificChain")
		return
	}

	quote, err := h.trades.GetQuote(c.Request.Context(), req)
	if err != nil {
		if service.IsUserError(err) {
			badRequest(c, err.Error())
			return
		}
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (b *executeTradeRequest) toTradeRequest() (service.TradeRequest, string) {
	amount, err := strconv.ParseFloat(b.Amount, 64)
	if err != nil || amount <= 0 {
		return service.TradeRequest{}, "amount must be a positive number"
	}

	req := service.TradeRequest{
		FromToken:         b.FromToken,
		ToToken:           b.ToToken,
		Amount:            amount,
		Reason:            b.Reason,
		SlippageTolerance: b.SlippageTolerance,
	}
	var ok bool
	if req.FromChain, ok = chain.ParseChain(b.FromChain); !ok {
		return service.TradeRequest{}, "invalid fromChain"
	}
	if req.ToChain, ok = chain.ParseChain(b.ToChain); !ok {
		return service.TradeRequest{}, "invalid toChain"
	}
	if req.FromSpecificChain, ok = chain.ParseSpecificChain(b.FromSpecificChain); !ok {
		return service.TradeRequest{}, "invalid fromSpecificChain"
	}
	if req.ToSpecificChain, ok = chain.ParseSpecificChain(b.ToSpecificChain); !ok {
		return service.TradeRequest{}, "invalid toSpecificChain"
	}
	return req, ""
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
	})
}

func internalError(c *gin.Context, logger *zap.Logger, err error) {
	logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "internal error",
	})
}
