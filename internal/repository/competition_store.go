package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradesim/internal/entity"
)

// ErrActiveCompetitionExists is returned when starting a competition while
// another one is already ACTIVE.
var ErrActiveCompetitionExists = errors.New("another competition is already active")

// CreateCompetition inserts a competition in PENDING state.
func (s *Store) CreateCompetition(ctx context.Context, comp *entity.Competition) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO competitions (id, name, status) VALUES (?, ?, ?)`,
		comp.ID, comp.Name, string(entity.CompetitionPending))
	if err != nil {
		return fmt.Errorf("failed to create competition %s: %w", comp.Name, err)
	}
	comp.Status = entity.CompetitionPending
	return nil
}

// StartCompetition transitions a competition to ACTIVE, enforcing the
// at-most-one-active invariant inside the transaction.
func (s *Store) StartCompetition(ctx context.Context, id string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var active int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM competitions WHERE status = ? AND id != ?`,
			string(entity.CompetitionActive), id).Scan(&active); err != nil {
			return fmt.Errorf("failed to count active competitions: %w", err)
		}
		if active > 0 {
			return ErrActiveCompetitionExists
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE competitions SET status = ?, start_date = ? WHERE id = ?`,
			string(entity.CompetitionActive), millis(now), id)
		if err != nil {
			return fmt.Errorf("failed to start competition %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("competition %s does not exist", id)
		}
		return nil
	})
}

// EndCompetition transitions a competition to COMPLETED.
func (s *Store) EndCompetition(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE competitions SET status = ?, end_date = ? WHERE id = ?`,
		string(entity.CompetitionCompleted), millis(now), id)
	if err != nil {
		return fmt.Errorf("failed to end competition %s: %w", id, err)
	}
	return nil
}

// GetActiveCompetition returns the single ACTIVE competition, or nil when
// none is running.
func (s *Store) GetActiveCompetition(ctx context.Context) (*entity.Competition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, start_date, end_date FROM competitions
		 WHERE status = ? LIMIT 1`, string(entity.CompetitionActive))

	var comp entity.Competition
	var start, end sql.NullInt64
	err := row.Scan(&comp.ID, &comp.Name, &comp.Status, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan competition: %w", err)
	}
	if start.Valid {
		t := fromMillis(start.Int64)
		comp.StartDate = &t
	}
	if end.Valid {
		t := fromMillis(end.Int64)
		comp.EndDate = &t
	}
	return &comp, nil
}

// AddTeamToCompetition enrolls a team; enrolling twice is a no-op.
func (s *Store) AddTeamToCompetition(ctx context.Context, competitionID, teamID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO competition_teams (competition_id, team_id) VALUES (?, ?)`,
		competitionID, teamID)
	if err != nil {
		return fmt.Errorf("failed to enroll team %s: %w", teamID, err)
	}
	return nil
}

// ListCompetitionTeams returns the ids of all teams enrolled in a
// competition.
func (s *Store) ListCompetitionTeams(ctx context.Context, competitionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id FROM competition_teams WHERE competition_id = ? ORDER BY team_id`,
		competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list competition teams: %w", err)
	}
	defer rows.Close()

	var teamIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		teamIDs = append(teamIDs, id)
	}
	return teamIDs, rows.Err()
}
