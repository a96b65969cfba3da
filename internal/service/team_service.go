package service

import (
	"context"
	"fmt"
	"time"

	"tradesim/internal/chain"
	"tradesim/internal/config"
	"tradesim/internal/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TeamStore is the slice of the repository the team service needs.
type TeamStore interface {
	CreateTeam(ctx context.Context, team *entity.Team) error
	GetTeam(ctx context.Context, id string) (*entity.Team, error)
	DeleteTeam(ctx context.Context, id string) error
	UpsertBalance(ctx context.Context, b entity.Balance) error
}

// TeamService registers teams and seeds their initial synthetic balances
// from the configured (specificChain, symbol, amount) table.
type TeamService struct {
	logger *zap.Logger
	store  TeamStore
	cfg    *config.Config
}

// NewTeamService creates a new team service.
func NewTeamService(store TeamStore, cfg *config.Config, logger *zap.Logger) *TeamService {
	return &TeamService{
		logger: logger.Named("TeamService"),
		store:  store,
		cfg:    cfg,
	}
}

// RegisterTeam creates a team with a fresh API key and seeds its balances.
// Configured seed symbols with no known token address are skipped with a
// warning rather than failing registration.
func (s *TeamService) RegisterTeam(ctx context.Context, name string) (*entity.Team, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrValidation)
	}

	team := &entity.Team{
		ID:        uuid.NewString(),
		Name:      name,
		APIKey:    uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, err
	}

	for scName, symbols := range s.cfg.InitialBalances {
		sc, _ := chain.ParseSpecificChain(scName)
		tokens := s.cfg.SpecificChainTokens[scName]
		for symbol, amount := range symbols {
			address, ok := tokens[symbol]
			if !ok {
				s.logger.Warn("No token address configured for seed symbol, skipping",
					zap.String("specificChain", scName),
					zap.String("symbol", symbol))
				continue
			}
			err := s.store.UpsertBalance(ctx, entity.Balance{
				TeamID:        team.ID,
				TokenAddress:  address,
				Amount:        amount,
				SpecificChain: sc,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to seed %s balance for team %s: %w", symbol, team.ID, err)
			}
		}
	}

	s.logger.Info("Team registered", zap.String("teamId", team.ID), zap.String("name", name))
	return team, nil
}
