package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
)

// InsertPrice appends a price record. The prices table is append-only.
func (s *Store) InsertPrice(ctx context.Context, report *entity.PriceReport) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prices (token, chain, specific_chain, price_usd, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		chain.NormalizeAddress(report.Token), string(report.Chain),
		string(report.SpecificChain), report.PriceUSD, millis(report.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert price for %s: %w", report.Token, err)
	}
	return nil
}

// LatestPrice returns the newest stored price for a token across all chains,
// or nil when none exists.
func (s *Store) LatestPrice(ctx context.Context, token string) (*entity.PriceReport, error) {
	return s.scanPrice(s.db.QueryRowContext(ctx,
		`SELECT token, chain, specific_chain, price_usd, timestamp
		 FROM prices WHERE token = ? ORDER BY timestamp DESC LIMIT 1`,
		chain.NormalizeAddress(token)))
}

// LatestPriceOnChain returns the newest stored price for a token on one
// specific chain, or nil when none exists.
func (s *Store) LatestPriceOnChain(ctx context.Context, token string, specificChain chain.SpecificChain) (*entity.PriceReport, error) {
	return s.scanPrice(s.db.QueryRowContext(ctx,
		`SELECT token, chain, specific_chain, price_usd, timestamp
		 FROM prices WHERE token = ? AND specific_chain = ?
		 ORDER BY timestamp DESC LIMIT 1`,
		chain.NormalizeAddress(token), string(specificChain)))
}

func (s *Store) scanPrice(row *sql.Row) (*entity.PriceReport, error) {
	var report entity.PriceReport
	var ts int64
	err := row.Scan(&report.Token, &report.Chain, &report.SpecificChain, &report.PriceUSD, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan price: %w", err)
	}
	report.Timestamp = fromMillis(ts)
	return &report, nil
}
