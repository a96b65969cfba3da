package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tradesim/internal/entity"
	"tradesim/internal/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotStore is the slice of the repository the scheduler needs.
type SnapshotStore interface {
	GetActiveCompetition(ctx context.Context) (*entity.Competition, error)
	ListCompetitionTeams(ctx context.Context, competitionID string) ([]string, error)
	SaveSnapshot(ctx context.Context, snap *entity.PortfolioSnapshot, values []entity.TokenValue) error
}

// SnapshotScheduler periodically values every team enrolled in the active
// competition and persists the results. Ticks never overlap: a tick that
// fires while the previous one is still valuing teams is skipped. Stop is
// cooperative; the shutdown flag is observed at tick entry and between
// teams.
type SnapshotScheduler struct {
	logger    *zap.Logger
	store     SnapshotStore
	portfolio *PortfolioService
	interval  time.Duration

	// stopOnError halts the scheduler on the first failed tick. Tests use it
	// to make failures loud instead of logged-and-ignored.
	stopOnError bool

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	done     chan struct{}
	inFlight atomic.Bool
	stopping atomic.Bool
}

// NewSnapshotScheduler creates a stopped scheduler.
func NewSnapshotScheduler(store SnapshotStore, portfolio *PortfolioService, interval time.Duration, stopOnError bool, logger *zap.Logger) *SnapshotScheduler {
	return &SnapshotScheduler{
		logger:      logger.Named("SnapshotScheduler"),
		store:       store,
		portfolio:   portfolio,
		interval:    interval,
		stopOnError: stopOnError,
	}
}

// Start launches the periodic loop. Calling Start on a running scheduler is
// a no-op.
func (s *SnapshotScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopping.Store(false)
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stopCh, s.done)
	s.logger.Info("Snapshot scheduler started", zap.Duration("interval", s.interval))
}

// Stop requests shutdown and waits for the loop to exit. Calling Stop on a
// stopped scheduler is a no-op.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopping.Store(true)
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("Snapshot scheduler stopped")
}

func (s *SnapshotScheduler) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := s.tick(); err != nil {
				s.logger.Error("Snapshot tick failed", zap.Error(err))
				if s.stopOnError {
					s.mu.Lock()
					s.running = false
					s.mu.Unlock()
					return
				}
			}
		}
	}
}

func (s *SnapshotScheduler) tick() error {
	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.SnapshotTicks.WithLabelValues("skipped").Inc()
		s.logger.Warn("Previous snapshot tick still running, skipping")
		return nil
	}
	defer s.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		metrics.SnapshotTicks.WithLabelValues("error").Inc()
		return err
	}
	metrics.SnapshotTicks.WithLabelValues("ok").Inc()
	return nil
}

// RunOnce takes one snapshot pass over the active competition. Exported so
// boot code and tests can force an immediate snapshot.
func (s *SnapshotScheduler) RunOnce(ctx context.Context) error {
	comp, err := s.store.GetActiveCompetition(ctx)
	if err != nil {
		return fmt.Errorf("failed to look up active competition: %w", err)
	}
	if comp == nil {
		s.logger.Debug("No active competition, skipping snapshot")
		return nil
	}

	teamIDs, err := s.store.ListCompetitionTeams(ctx, comp.ID)
	if err != nil {
		return fmt.Errorf("failed to list teams for competition %s: %w", comp.ID, err)
	}

	now := time.Now().UTC()
	for _, teamID := range teamIDs {
		if s.stopping.Load() {
			s.logger.Info("Shutdown requested mid-snapshot, stopping early")
			return nil
		}

		total, values, err := s.portfolio.Value(ctx, teamID)
		if err != nil {
			return fmt.Errorf("failed to value portfolio for team %s: %w", teamID, err)
		}
		snap := &entity.PortfolioSnapshot{
			ID:            uuid.NewString(),
			TeamID:        teamID,
			CompetitionID: comp.ID,
			Timestamp:     now,
			TotalValueUSD: total,
		}
		if err := s.store.SaveSnapshot(ctx, snap, values); err != nil {
			return fmt.Errorf("failed to save snapshot for team %s: %w", teamID, err)
		}
		s.logger.Debug("Portfolio snapshot saved",
			zap.String("teamId", teamID),
			zap.Float64("totalValue", total))
	}
	return nil
}
