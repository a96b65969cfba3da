package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
)

// SaveSnapshot writes a portfolio snapshot and its per-token rows in one
// transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap *entity.PortfolioSnapshot, values []entity.TokenValue) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO portfolio_snapshots (id, competition_id, team_id, timestamp, total_value_usd)
			 VALUES (?, ?, ?, ?, ?)`,
			snap.ID, snap.CompetitionID, snap.TeamID, millis(snap.Timestamp), snap.TotalValueUSD)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		for _, v := range values {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO portfolio_token_values
					(snapshot_id, token_address, amount, price_usd, value_usd, specific_chain)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				snap.ID, v.TokenAddress, v.Amount, v.PriceUSD, v.ValueUSD, string(v.SpecificChain))
			if err != nil {
				return fmt.Errorf("failed to insert snapshot token value: %w", err)
			}
		}
		return nil
	})
}

// ListSnapshots returns a team's snapshots in a competition, newest first.
func (s *Store) ListSnapshots(ctx context.Context, competitionID, teamID string) ([]entity.PortfolioSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, competition_id, team_id, timestamp, total_value_usd
		 FROM portfolio_snapshots
		 WHERE competition_id = ? AND team_id = ?
		 ORDER BY timestamp DESC`,
		competitionID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []entity.PortfolioSnapshot
	for rows.Next() {
		var snap entity.PortfolioSnapshot
		var ts int64
		if err := rows.Scan(&snap.ID, &snap.CompetitionID, &snap.TeamID, &ts, &snap.TotalValueUSD); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Timestamp = fromMillis(ts)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// LatestSnapshot returns a team's most recent snapshot in a competition, or
// nil when the team has none yet.
func (s *Store) LatestSnapshot(ctx context.Context, competitionID, teamID string) (*entity.PortfolioSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, competition_id, team_id, timestamp, total_value_usd
		 FROM portfolio_snapshots
		 WHERE competition_id = ? AND team_id = ?
		 ORDER BY timestamp DESC LIMIT 1`,
		competitionID, teamID)

	var snap entity.PortfolioSnapshot
	var ts int64
	err := row.Scan(&snap.ID, &snap.CompetitionID, &snap.TeamID, &ts, &snap.TotalValueUSD)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snap.Timestamp = fromMillis(ts)
	return &snap, nil
}

// SnapshotTokenValues returns the per-token rows of one snapshot.
func (s *Store) SnapshotTokenValues(ctx context.Context, snapshotID string) ([]entity.TokenValue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_id, token_address, amount, price_usd, value_usd, specific_chain
		 FROM portfolio_token_values WHERE snapshot_id = ?`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot token values: %w", err)
	}
	defer rows.Close()

	var values []entity.TokenValue
	for rows.Next() {
		var v entity.TokenValue
		var sc sql.NullString
		if err := rows.Scan(&v.SnapshotID, &v.TokenAddress, &v.Amount, &v.PriceUSD, &v.ValueUSD, &sc); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot token value: %w", err)
		}
		v.SpecificChain = chain.SpecificChain(sc.String)
		values = append(values, v)
	}
	return values, rows.Err()
}
