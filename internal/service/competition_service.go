package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tradesim/internal/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompetitionStore is the slice of the repository the competition service
// needs.
type CompetitionStore interface {
	CreateCompetition(ctx context.Context, comp *entity.Competition) error
	StartCompetition(ctx context.Context, id string, now time.Time) error
	EndCompetition(ctx context.Context, id string, now time.Time) error
	GetActiveCompetition(ctx context.Context) (*entity.Competition, error)
	AddTeamToCompetition(ctx context.Context, competitionID, teamID string) error
	ListCompetitionTeams(ctx context.Context, competitionID string) ([]string, error)
	LatestSnapshot(ctx context.Context, competitionID, teamID string) (*entity.PortfolioSnapshot, error)
	GetTeam(ctx context.Context, id string) (*entity.Team, error)
}

// LeaderboardEntry is one team's standing, valued from its latest snapshot.
type LeaderboardEntry struct {
	TeamID        string  `json:"teamId"`
	TeamName      string  `json:"teamName"`
	TotalValueUSD float64 `json:"totalValue"`
}

// CompetitionService manages the competition lifecycle and the leaderboard.
type CompetitionService struct {
	logger *zap.Logger
	store  CompetitionStore
}

// NewCompetitionService creates a new competition service.
func NewCompetitionService(store CompetitionStore, logger *zap.Logger) *CompetitionService {
	return &CompetitionService{
		logger: logger.Named("CompetitionService"),
		store:  store,
	}
}

// StartCompetition creates a competition, enrolls the given teams and
// activates it. Fails if another competition is already active.
func (s *CompetitionService) StartCompetition(ctx context.Context, name string, teamIDs []string) (*entity.Competition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: competition name is required", ErrValidation)
	}

	comp := &entity.Competition{ID: uuid.NewString(), Name: name}
	if err := s.store.CreateCompetition(ctx, comp); err != nil {
		return nil, err
	}
	for _, teamID := range teamIDs {
		team, err := s.store.GetTeam(ctx, teamID)
		if err != nil {
			return nil, err
		}
		if team == nil {
			return nil, fmt.Errorf("%w: unknown team %s", ErrValidation, teamID)
		}
		if err := s.store.AddTeamToCompetition(ctx, comp.ID, teamID); err != nil {
			return nil, err
		}
	}
	if err := s.store.StartCompetition(ctx, comp.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	comp.Status = entity.CompetitionActive

	s.logger.Info("Competition started",
		zap.String("competitionId", comp.ID),
		zap.String("name", name),
		zap.Int("teams", len(teamIDs)))
	return comp, nil
}

// EndCompetition completes the currently active competition.
func (s *CompetitionService) EndCompetition(ctx context.Context) (*entity.Competition, error) {
	comp, err := s.store.GetActiveCompetition(ctx)
	if err != nil {
		return nil, err
	}
	if comp == nil {
		return nil, ErrNoActiveCompetition
	}
	if err := s.store.EndCompetition(ctx, comp.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	comp.Status = entity.CompetitionCompleted
	s.logger.Info("Competition ended", zap.String("competitionId", comp.ID))
	return comp, nil
}

// Leaderboard returns the active competition's teams ordered by their latest
// snapshot value, highest first. Teams without a snapshot yet rank at zero.
func (s *CompetitionService) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	comp, err := s.store.GetActiveCompetition(ctx)
	if err != nil {
		return nil, err
	}
	if comp == nil {
		return nil, ErrNoActiveCompetition
	}

	teamIDs, err := s.store.ListCompetitionTeams(ctx, comp.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(teamIDs))
	for _, teamID := range teamIDs {
		entry := LeaderboardEntry{TeamID: teamID}
		if team, err := s.store.GetTeam(ctx, teamID); err == nil && team != nil {
			entry.TeamName = team.Name
		}
		snap, err := s.store.LatestSnapshot(ctx, comp.ID, teamID)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			entry.TotalValueUSD = snap.TotalValueUSD
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalValueUSD > entries[j].TotalValueUSD
	})
	return entries, nil
}
