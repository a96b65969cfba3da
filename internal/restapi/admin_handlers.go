package restapi

import (
	"errors"
	"net/http"

	"tradesim/internal/repository"
	"tradesim/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves team registration and competition lifecycle endpoints.
type AdminHandler struct {
	teams        *service.TeamService
	competitions *service.CompetitionService
	logger       *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(teams *service.TeamService, competitions *service.CompetitionService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		teams:        teams,
		competitions: competitions,
		logger:       logger.Named("AdminHandler"),
	}
}

type registerTeamRequest struct {
	Name string `json:"name" binding:"required"`
}

// RegisterTeamHandler handles POST /api/admin/teams/register. The response
// is the only place the team's API key is ever exposed.
func (h *AdminHandler) RegisterTeamHandler(c *gin.Context) {
	var body registerTeamRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	team, err := h.teams.RegisterTeam(c.Request.Context(), body.Name)
	if err != nil {
		if service.IsUserError(err) {
			badRequest(c, err.Error())
			return
		}
		internalError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"team": gin.H{
			"id":        team.ID,
			"name":      team.Name,
			"apiKey":    team.APIKey,
			"createdAt": team.CreatedAt,
		},
	})
}

type startCompetitionRequest struct {
	Name    string   `json:"name" binding:"required"`
	TeamIDs []string `json:"teamIds"`
}

// StartCompetitionHandler handles POST /api/admin/competition/start.
func (h *AdminHandler) StartCompetitionHandler(c *gin.Context) {
	var body startCompetitionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	comp, err := h.competitions.StartCompetition(c.Request.Context(), body.Name, body.TeamIDs)
	if err != nil {
		if service.IsUserError(err) || errors.Is(err, repository.ErrActiveCompetitionExists) {
			badRequest(c, err.Error())
			return
		}
		internalError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"competition": comp,
	})
}

// EndCompetitionHandler handles POST /api/admin/competition/end.
func (h *AdminHandler) EndCompetitionHandler(c *gin.Context) {
	comp, err := h.competitions.EndCompetition(c.Request.Context())
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
		"competition": comp,
	})
}

// LeaderboardHandler handles GET /api/admin/competition/leaderboard.
func (h *AdminHandler) LeaderboardHandler(c *gin.Context) {
	entries, err := h.competitions.Leaderboard(c.Request.Context())
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
		"leaderboard": entries,
	})
}
