package repository

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
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func makeTeam(t *testing.T, store *Store) *entity.Team {
	t.Helper()
	team := &entity.Team{
		ID:        uuid.NewString(),
		Name:      "team-" + uuid.NewString()[:8],
		APIKey:    uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateTeam(context.Background(), team))
	return team
}

func TestTeamRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	team := makeTeam(t, store)

	got, err := store.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, team.Name, got.Name)
	assert.Equal(t, team.APIKey, got.APIKey)

	byKey, err := store.GetTeamByAPIKey(ctx, team.APIKey)
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, team.ID, byKey.ID)

	missing, err := store.GetTeamByAPIKey(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteTeamCascadesBalances(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	team := makeTeam(t, store)

	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: "0xAAA0000000000000000000000000000000000001",
		Amount: 100, SpecificChain: chain.SpecificETH,
	}))
	require.NoError(t, store.DeleteTeam(ctx, team.ID))

	balances, err := store.ListBalances(ctx, team.ID)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestUpsertBalanceReplacesAmount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	team := makeTeam(t, store)
	token := "0x3992B27dA26848C2b19CeA6Fd25ad5568B68AB98"

	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: token, Amount: 10, SpecificChain: chain.SpecificBase,
	}))
	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: token, Amount: 25, SpecificChain: chain.SpecificBase,
	}))

	// Lookup by lowercased form: the store normalizes EVM addresses.
	amount, err := store.GetBalance(ctx, team.ID, chain.NormalizeAddress(token))
	require.NoError(t, err)
	assert.Equal(t, 25.0, amount)

	balances, err := store.ListBalances(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, chain.SpecificBase, balances[0].SpecificChain)
}

func TestGetBalanceMissingIsZero(t *testing.T) {
	store := openTestStore(t)
	amount, err := store.GetBalance(context.Background(), "ghost", "0xnothing")
	require.NoError(t, err)
	assert.Zero(t, amount)
}

func testTrade(teamID string, fromAmount, toAmount float64) *entity.Trade {
	return &entity.Trade{
		ID:                uuid.NewString(),
		TeamID:            teamID,
		CompetitionID:     "comp-1",
		FromToken:         "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		ToToken:           "0x3992b27da26848c2b19cea6fd25ad5568b68ab98",
		FromAmount:        fromAmount,
		ToAmount:          toAmount,
		Price:             toAmount / fromAmount,
		Success:           true,
		Reason:            "testing",
		FromChain:         chain.ChainEVM,
		ToChain:           chain.ChainEVM,
		FromSpecificChain: chain.SpecificBase,
		ToSpecificChain:   chain.SpecificBase,
		Timestamp:         time.Now().UTC(),
	}
}

func TestApplyTradeMovesBalances(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	team := makeTeam(t, store)
	trade := testTrade(team.ID, 1000, 80000)

	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: trade.FromToken, Amount: 5000, SpecificChain: chain.SpecificBase,
	}))

	require.NoError(t, store.ApplyTrade(ctx, trade))

	fromBal, err := store.GetBalance(ctx, team.ID, trade.FromToken)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, fromBal)

	toBal, err := store.GetBalance(ctx, team.ID, trade.ToToken)
	require.NoError(t, err)
	assert.Equal(t, 80000.0, toBal)

	trades, err := store.ListTrades(ctx, team.ID, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, trade.ID, trades[0].ID)
	assert.Equal(t, "testing", trades[0].Reason)
	assert.Equal(t, chain.SpecificBase, trades[0].ToSpecificChain)
}

func TestApplyTradeInsufficientFundsLeavesNothingBehind(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	team := makeTeam(t, store)
	trade := testTrade(team.ID, 1000, 80000)

	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: trade.FromToken, Amount: 999, SpecificChain: chain.SpecificBase,
	}))

	err := store.ApplyTrade(ctx, trade)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing moved and no trade row was written.
	fromBal, err := store.GetBalance(ctx, team.ID, trade.FromToken)
	require.NoError(t, err)
	assert.Equal(t, 999.0, fromBal)

	toBal, err := store.GetBalance(ctx, team.ID, trade.ToToken)
	require.NoError(t, err)
	assert.Zero(t, toBal)

	trades, err := store.ListTrades(ctx, team.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestListTradesNewestFirstWithLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	team := makeTeam(t, store)

	require.NoError(t, store.UpsertBalance(ctx, entity.Balance{
		TeamID: team.ID, TokenAddress: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		Amount: 10000, SpecificChain: chain.SpecificBase,
	}))

	var ids []string
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		trade := testTrade(team.ID, 100, 50)
		trade.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.ApplyTrade(ctx, trade))
		ids = append(ids, trade.ID)
	}

	trades, err := store.ListTrades(ctx, team.ID, 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, ids[2], trades[0].ID)
	assert.Equal(t, ids[1], trades[1].ID)
}

func TestPriceStoreLatestPerChain(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	token := "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"

	older := &entity.PriceReport{
		Token: token, PriceUSD: 0.99, Timestamp: time.Now().Add(-time.Hour),
		Chain: chain.ChainEVM, SpecificChain: chain.SpecificETH,
	}
	newer := &entity.PriceReport{
		Token: token, PriceUSD: 1.01, Timestamp: time.Now(),
		Chain: chain.ChainEVM, SpecificChain: chain.SpecificBase,
	}
	require.NoError(t, store.InsertPrice(ctx, older))
	require.NoError(t, store.InsertPrice(ctx, newer))

	latest, err := store.LatestPrice(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1.01, latest.PriceUSD)
	assert.Equal(t, chain.SpecificBase, latest.SpecificChain)

	onETH, err := store.LatestPriceOnChain(ctx, token, chain.SpecificETH)
	require.NoError(t, err)
	require.NotNil(t, onETH)
	assert.Equal(t, 0.99, onETH.PriceUSD)

	missing, err := store.LatestPriceOnChain(ctx, token, chain.SpecificPolygon)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSingleActiveCompetition(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := &entity.Competition{ID: uuid.NewString(), Name: "first"}
	second := &entity.Competition{ID: uuid.NewString(), Name: "second"}
	require.NoError(t, store.CreateCompetition(ctx, first))
	require.NoError(t, store.CreateCompetition(ctx, second))

	require.NoError(t, store.StartCompetition(ctx, first.ID, now))
	err := store.StartCompetition(ctx, second.ID, now)
	require.ErrorIs(t, err, ErrActiveCompetitionExists)

	active, err := store.GetActiveCompetition(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)
	require.NotNil(t, active.StartDate)

	require.NoError(t, store.EndCompetition(ctx, first.ID, now.Add(time.Hour)))
	active, err = store.GetActiveCompetition(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	// With the first one completed, the second can start.
	require.NoError(t, store.StartCompetition(ctx, second.ID, now.Add(time.Hour)))
}

func TestCompetitionTeamEnrollment(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	team := makeTeam(t, store)
	comp := &entity.Competition{ID: uuid.NewString(), Name: "comp"}
	require.NoError(t, store.CreateCompetition(ctx, comp))

	require.NoError(t, store.AddTeamToCompetition(ctx, comp.ID, team.ID))
	require.NoError(t, store.AddTeamToCompetition(ctx, comp.ID, team.ID))

	teams, err := store.ListCompetitionTeams(ctx, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{team.ID}, teams)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	team := makeTeam(t, store)

	older := &entity.PortfolioSnapshot{
		ID: uuid.NewString(), TeamID: team.ID, CompetitionID: "comp-1",
		Timestamp: time.Now().Add(-time.Minute), TotalValueUSD: 15000,
	}
	newer := &entity.PortfolioSnapshot{
		ID: uuid.NewString(), TeamID: team.ID, CompetitionID: "comp-1",
		Timestamp: time.Now(), TotalValueUSD: 15250,
	}
	values := []entity.TokenValue{
		{TokenAddress: "0xusdc", Amount: 5000, PriceUSD: 1, ValueUSD: 5000, SpecificChain: chain.SpecificETH},
		{TokenAddress: "0xdegen", Amount: 80000, PriceUSD: 0.125, ValueUSD: 10000, SpecificChain: chain.SpecificBase},
	}
	require.NoError(t, store.SaveSnapshot(ctx, older, nil))
	require.NoError(t, store.SaveSnapshot(ctx, newer, values))

	latest, err := store.LatestSnapshot(ctx, "comp-1", team.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, 15250.0, latest.TotalValueUSD)

	all, err := store.ListSnapshots(ctx, "comp-1", team.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stored, err := store.SnapshotTokenValues(ctx, newer.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}
