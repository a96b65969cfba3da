package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
)

// CreateTeam inserts a new team row.
func (s *Store) CreateTeam(ctx context.Context, team *entity.Team) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, api_key, created_at) VALUES (?, ?, ?, ?)`,
		team.ID, team.Name, team.APIKey, millis(team.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create team %s: %w", team.Name, err)
	}
	return nil
}

// GetTeam returns a team by id, or nil when it does not exist.
func (s *Store) GetTeam(ctx context.Context, id string) (*entity.Team, error) {
	return s.scanTeam(s.db.QueryRowContext(ctx,
		`SELECT id, name, api_key, created_at FROM teams WHERE id = ?`, id))
}

// GetTeamByAPIKey resolves a bearer credential to a team, or nil when the
// key is unknown.
func (s *Store) GetTeamByAPIKey(ctx context.Context, apiKey string) (*entity.Team, error) {
	return s.scanTeam(s.db.QueryRowContext(ctx,
		`SELECT id, name, api_key, created_at FROM teams WHERE api_key = ?`, apiKey))
}

func (s *Store) scanTeam(row *sql.Row) (*entity.Team, error) {
	var team entity.Team
	var createdAt int64
	err := row.Scan(&team.ID, &team.Name, &team.APIKey, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}
	team.CreatedAt = fromMillis(createdAt)
	return &team, nil
}

// DeleteTeam removes a team; its balances and enrollments cascade away.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team %s: %w", id, err)
	}
	return nil
}

// UpsertBalance seeds or overwrites one balance row. Used for initial
// seeding and administrative resets; trades go through ApplyTrade instead.
func (s *Store) UpsertBalance(ctx context.Context, b entity.Balance) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balances (team_id, token_address, amount, specific_chain)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (team_id, token_address)
		 DO UPDATE SET amount = excluded.amount, specific_chain = excluded.specific_chain`,
		b.TeamID, chain.NormalizeAddress(b.TokenAddress), b.Amount, string(b.SpecificChain))
	if err != nil {
		return fmt.Errorf("failed to upsert balance for team %s: %w", b.TeamID, err)
	}
	return nil
}

// GetBalance returns the team's holding of one token; zero when no row
// exists.
func (s *Store) GetBalance(ctx context.Context, teamID, tokenAddress string) (float64, error) {
	var amount float64
	err := s.db.QueryRowContext(ctx,
		`SELECT amount FROM balances WHERE team_id = ? AND token_address = ?`,
		teamID, chain.NormalizeAddress(tokenAddress)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return amount, nil
}

// ListBalances returns all of a team's balance rows.
func (s *Store) ListBalances(ctx context.Context, teamID string) ([]entity.Balance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id, token_address, amount, specific_chain
		 FROM balances WHERE team_id = ? ORDER BY token_address`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []entity.Balance
	for rows.Next() {
		var b entity.Balance
		var sc sql.NullString
		if err := rows.Scan(&b.TeamID, &b.TokenAddress, &b.Amount, &sc); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.SpecificChain = chain.SpecificChain(sc.String)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
