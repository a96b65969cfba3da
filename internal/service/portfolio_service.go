package service

import (
	"context"
	"fmt"

	"tradesim/internal/chain"
	"tradesim/internal/entity"

	"go.uber.org/zap"
)

// PriceSource is the aggregator surface the services need. A nil report
// means no price could be resolved anywhere.
type PriceSource interface {
	GetPrice(ctx context.Context, tokenAddress string, chainHint chain.Chain, specificHint chain.SpecificChain) *entity.PriceReport
}

// BalanceReader is the slice of the repository the valuator needs.
type BalanceReader interface {
	ListBalances(ctx context.Context, teamID string) ([]entity.Balance, error)
}

// PortfolioService values a team's holdings through the price aggregator.
// Used by the trade engine for the portfolio-fraction check and by the
// snapshot scheduler.
type PortfolioService struct {
	logger *zap.Logger
	store  BalanceReader
	prices PriceSource
}

// NewPortfolioService creates a new portfolio valuator.
func NewPortfolioService(store BalanceReader, prices PriceSource, logger *zap.Logger) *PortfolioService {
	return &PortfolioService{
		logger: logger.Named("PortfolioService"),
		store:  store,
		prices: prices,
	}
}

// Value returns the team's total USD portfolio value and the per-token
// breakdown. Tokens without a resolvable price contribute zero and are
// logged; they still appear in the breakdown so callers can see them.
func (s *PortfolioService) Value(ctx context.Context, teamID string) (float64, []entity.TokenValue, error) {
	balances, err := s.store.ListBalances(ctx, teamID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to load balances for team %s: %w", teamID, err)
	}

	var total float64
	values := make([]entity.TokenValue, 0, len(balances))
	for _, b := range balances {
		if b.Amount <= 0 {
			continue
		}
		tv := entity.TokenValue{
			TokenAddress:  b.TokenAddress,
			Amount:        b.Amount,
			SpecificChain: b.SpecificChain,
		}
		report := s.prices.GetPrice(ctx, b.TokenAddress, "", b.SpecificChain)
		if report == nil {
			s.logger.Warn("No price for held token, valuing at zero",
				zap.String("teamId", teamID),
				zap.String("token", b.TokenAddress))
		} else {
			tv.PriceUSD = report.PriceUSD
			tv.ValueUSD = b.Amount * report.PriceUSD
			if tv.SpecificChain == "" {
				tv.SpecificChain = report.SpecificChain
			}
			total += tv.ValueUSD
		}
		values = append(values, tv)
	}
	return total, values, nil
}
