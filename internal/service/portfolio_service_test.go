package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
	"tradesim/internal/repository"
)

func TestPortfolioValueSumsHoldings(t *testing.T) {
	store, err := repository.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	team := &entity.Team{ID: uuid.NewString(), Name: "alpha", APIKey: uuid.NewString(), CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateTeam(ctx, team))
	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: usdcBase, Amount: 5000, SpecificChain: chain.SpecificBase,
	}))
	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: solMint, Amount: 10, SpecificChain: chain.SpecificSVM,
	}))

	svc := NewPortfolioService(store, defaultPrices(), zap.NewNop())
	total, values, err := svc.Value(ctx, team.ID)
	require.NoError(t, err)

	// 5000 USDC at $1 plus 10 SOL at $150.
	assert.InDelta(t, 6500.0, total, 1e-9)
	assert.Len(t, values, 2)
}

func TestPortfolioValueUnpricedTokenContributesZero(t *testing.T) {
	store, err := repository.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	team := &entity.Team{ID: uuid.NewString(), Name: "bravo", APIKey: uuid.NewString(), CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateTeam(ctx, team))
	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: usdcBase, Amount: 100, SpecificChain: chain.SpecificBase,
	}))
	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: "UnknownMint1111111111111111111111111111111", Amount: 7,
		SpecificChain: chain.SpecificSVM,
	}))

	svc := NewPortfolioService(store, defaultPrices(), zap.NewNop())
	total, values, err := svc.Value(ctx, team.ID)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, total, 1e-9)
	// The unpriced holding still shows up in the breakdown, valued at zero.
	require.Len(t, values, 2)
	for _, v := range values {
		if v.TokenAddress != usdcBase {
			assert.Zero(t, v.ValueUSD)
			assert.Zero(t, v.PriceUSD)
		}
	}
}

func TestPortfolioValueEmptyTeam(t *testing.T) {
	store, err := repository.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewPortfolioService(store, defaultPrices(), zap.NewNop())
	total, values, err := svc.Value(context.Background(), "no-such-team")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, values)
}
