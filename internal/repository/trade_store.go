package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
)

// ApplyTrade settles a successful trade: debit the source balance, credit
// the destination balance and append the trade row, all inside one
// transaction so readers never observe a half-applied swap. The debit is
// guarded so a concurrent spend of the same balance surfaces as
// ErrInsufficientFunds instead of a negative amount.
func (s *Store) ApplyTrade(ctx context.Context, t *entity.Trade) error {
	fromToken := chain.NormalizeAddress(t.FromToken)
	toToken := chain.NormalizeAddress(t.ToToken)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE balances SET amount = amount - ?
			 WHERE team_id = ? AND token_address = ? AND amount >= ?`,
			t.FromAmount, t.TeamID, fromToken, t.FromAmount)
		if err != nil {
			return fmt.Errorf("failed to debit %s: %w", fromToken, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check debit result: %w", err)
		}
		if affected == 0 {
			return ErrInsufficientFunds
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO balances (team_id, token_address, amount, specific_chain)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (team_id, token_address)
			 DO UPDATE SET amount = amount + excluded.amount`,
			t.TeamID, toToken, t.ToAmount, string(t.ToSpecificChain))
		if err != nil {
			return fmt.Errorf("failed to credit %s: %w", toToken, err)
		}

		return insertTrade(ctx, tx, t)
	})
}

func insertTrade(ctx context.Context, tx *sql.Tx, t *entity.Trade) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO trades (id, team_id, competition_id, from_token, to_token,
			from_amount, to_amount, price, success, reason, error,
			from_chain, to_chain, from_specific_chain, to_specific_chain, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TeamID, t.CompetitionID,
		chain.NormalizeAddress(t.FromToken), chain.NormalizeAddress(t.ToToken),
		t.FromAmount, t.ToAmount, t.Price, t.Success, t.Reason, t.Error,
		string(t.FromChain), string(t.ToChain),
		string(t.FromSpecificChain), string(t.ToSpecificChain), millis(t.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
	}
	return nil
}

// ListTrades returns the team's trades newest first, capped at limit.
func (s *Store) ListTrades(ctx context.Context, teamID string, limit int) ([]entity.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, competition_id, from_token, to_token,
			from_amount, to_amount, price, success, reason, error,
			from_chain, to_chain, from_specific_chain, to_specific_chain, timestamp
		 FROM trades WHERE team_id = ? ORDER BY timestamp DESC LIMIT ?`,
		teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []entity.Trade
	for rows.Next() {
		var t entity.Trade
		var reason, errMsg, fromSC, toSC sql.NullString
		var ts int64
		if err := rows.Scan(&t.ID, &t.TeamID, &t.CompetitionID, &t.FromToken, &t.ToToken,
			&t.FromAmount, &t.ToAmount, &t.Price, &t.Success, &reason, &errMsg,
			&t.FromChain, &t.ToChain, &fromSC, &toSC, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Reason = reason.String
		t.Error = errMsg.String
		t.FromSpecificChain = chain.SpecificChain(fromSC.String)
		t.ToSpecificChain = chain.SpecificChain(toSC.String)
		t.Timestamp = fromMillis(ts)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
