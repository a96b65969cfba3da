package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Trade   *TradeHandler
	Account *AccountHandler
	Price   *PriceHandler
	Admin   *AdminHandler
}

// SetupRouter wires the API routes onto a gin engine. Middleware (CORS,
// logging, recovery) is expected to be installed by the caller before
// routes are registered.
func SetupRouter(router *gin.Engine, h Handlers, teams TeamResolver, rootAPIKey string, competitions ActiveCompetitionSource, logger *zap.Logger) {
	api := router.Group("/api")

	api.GET("/health", healthHandler(competitions))

	protected := api.Group("")
	protected.Use(TeamAuth(teams, logger))
	{
		protected.POST("/trade/execute", h.Trade.ExecuteTradeHandler)
		protected.GET("/trade/quote", h.Trade.QuoteHandler)
		protected.GET("/account/balances", h.Account.BalancesHandler)
		protected.GET("/account/portfolio", h.Account.PortfolioHandler)
		protected.GET("/account/trades", h.Account.TradesHandler)
		protected.GET("/price", h.Price.GetPriceHandler)
	}

	admin := api.Group("/admin")
	admin.Use(AdminAuth(rootAPIKey))
	{
		admin.POST("/teams/register", h.Admin.RegisterTeamHandler)
		admin.POST("/competition/start", h.Admin.StartCompetitionHandler)
		admin.POST("/competition/end", h.Admin.EndCompetitionHandler)
		admin.GET("/competition/leaderboard", h.Admin.LeaderboardHandler)
	}
}

func healthHandler(competitions ActiveCompetitionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var activeID string
		comp, err := competitions.GetActiveCompetition(c.Request.Context())
		if err == nil && comp != nil {
			activeID = comp.ID
		}
		c.JSON(http.StatusOK, gin.H{
			"status":            "ok",
			"activeCompetition": activeID,
		})
	}
}
