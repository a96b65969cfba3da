package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradesim/internal/entity"
	"tradesim/internal/repository"
)

func newCompetitionFixture(t *testing.T) (*repository.Store, *CompetitionService) {
	t.Helper()
	store, err := repository.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, NewCompetitionService(store, zap.NewNop())
}

func registerTeam(t *testing.T, store *repository.Store, name string) *entity.Team {
	t.Helper()
	team := &entity.Team{ID: uuid.NewString(), Name: name, APIKey: uuid.NewString(), CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateTeam(context.Background(), team))
	return team
}

func TestStartAndEndCompetition(t *testing.T) {
	store, svc := newCompetitionFixture(t)
	ctx := context.Background()
	team := registerTeam(t, store, "alpha")

	comp, err := svc.StartCompetition(ctx, "summer", []string{team.ID})
	require.NoError(t, err)
	assert.Equal(t, entity.CompetitionActive, comp.Status)

	active, err := store.GetActiveCompetition(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, comp.ID, active.ID)

	teams, err := store.ListCompetitionTeams(ctx, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{team.ID}, teams)

	ended, err := svc.EndCompetition(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.CompetitionCompleted, ended.Status)

	_, err = svc.EndCompetition(ctx)
	require.ErrorIs(t, err, ErrNoActiveCompetition)
}

func TestStartCompetitionRejectsUnknownTeam(t *testing.T) {
	_, svc := newCompetitionFixture(t)

	_, err := svc.StartCompetition(context.Background(), "summer", []string{"ghost"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestStartCompetitionRejectsSecondActive(t *testing.T) {
	_, svc := newCompetitionFixture(t)
	ctx := context.Background()

	_, err := svc.StartCompetition(ctx, "first", nil)
	require.NoError(t, err)

	_, err = svc.StartCompetition(ctx, "second", nil)
	require.ErrorIs(t, err, repository.ErrActiveCompetitionExists)
}

func TestLeaderboardOrdersBySnapshotValue(t *testing.T) {
	store, svc := newCompetitionFixture(t)
	ctx := context.Background()
	loser := registerTeam(t, store, "loser")
	winner := registerTeam(t, store, "winner")
	fresh := registerTeam(t, store, "fresh")

	comp, err := svc.StartCompetition(ctx, "summer", []string{loser.ID, winner.ID, fresh.ID})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.SaveSnapshot(ctx, &entity.PortfolioSnapshot{
		ID: uuid.NewString(), TeamID: loser.ID, CompetitionID: comp.ID, Timestamp: now, TotalValueUSD: 9000,
	}, nil))
	require.NoError(t, store.SaveSnapshot(ctx, &entity.PortfolioSnapshot{
		ID: uuid.NewString(), TeamID: winner.ID, CompetitionID: comp.ID, Timestamp: now, TotalValueUSD: 16000,
	}, nil))

	entries, err := svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, winner.ID, entries[0].TeamID)
	assert.Equal(t, "winner", entries[0].TeamName)
	assert.Equal(t, 16000.0, entries[0].TotalValueUSD)
	assert.Equal(t, loser.ID, entries[1].TeamID)
	// Teams with no snapshot yet rank last at zero.
	assert.Equal(t, fresh.ID, entries[2].TeamID)
	assert.Zero(t, entries[2].TotalValueUSD)
}

func TestLeaderboardNeedsActiveCompetition(t *testing.T) {
	_, svc := newCompetitionFixture(t)
	_, err := svc.Leaderboard(context.Background())
	require.ErrorIs(t, err, ErrNoActiveCompetition)
}
