package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
	"tradesim/internal/pkg/metrics"
	"tradesim/internal/repository"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	// 5 bp of slippage per $10,000 of trade size.
	slippagePerTenK = 0.0005
	// The random factor applied to base slippage spans [0.9, 1.1].
	slippageJitterMin  = 0.9
	slippageJitterSpan = 0.2

	recentTradesWindow = 100
	recentTradesTTL    = 5 * time.Minute
)

// TradeStore is the slice of the repository the trade engine needs.
type TradeStore interface {
	GetBalance(ctx context.Context, teamID, tokenAddress string) (float64, error)
	ApplyTrade(ctx context.Context, t *entity.Trade) error
	ListTrades(ctx context.Context, teamID string, limit int) ([]entity.Trade, error)
}

// TradeRequest is a proposed swap. Chain fields are optional; unspecified
// ones are derived from the token addresses.
type TradeRequest struct {
	FromToken         string
	ToToken           string
	Amount            float64
	Reason            string
	SlippageTolerance *float64
	FromChain         chain.Chain
	ToChain           chain.Chain
	FromSpecificChain chain.SpecificChain
	ToSpecificChain   chain.SpecificChain
}

// TradeQuote is a non-binding preview of a swap using the deterministic part
// of the slippage model.
type TradeQuote struct {
	FromToken    string  `json:"fromToken"`
	ToToken      string  `json:"toToken"`
	FromAmount   float64 `json:"fromAmount"`
	ToAmount     float64 `json:"toAmount"`
	ExchangeRate float64 `json:"exchangeRate"`
	Slippage     float64 `json:"slippage"`
	Prices       struct {
		FromToken float64 `json:"fromToken"`
		ToToken   float64 `json:"toToken"`
	} `json:"prices"`
	Chains struct {
		FromChain chain.Chain `json:"fromChain"`
		ToChain   chain.Chain `json:"toChain"`
	} `json:"chains"`
}

// TradePolicy carries the trade engine's policy knobs.
type TradePolicy struct {
	AllowCrossChainTrading bool
	MaxPortfolioFraction   float64
	MinTradeFromAmount     float64
}

// TradeService validates and executes simulated swaps. One team's trades are
// serialized by a per-team mutex; the balance mutations and the trade row
// share a single transaction in the store.
type TradeService struct {
	logger    *zap.Logger
	store     TradeStore
	prices    PriceSource
	portfolio *PortfolioService
	policy    TradePolicy

	locksMu   sync.Mutex
	teamLocks map[string]*sync.Mutex

	recent *cache.Cache // teamID -> []entity.Trade, newest first
}

// NewTradeService creates a new trade engine.
func NewTradeService(store TradeStore, prices PriceSource, portfolio *PortfolioService, policy TradePolicy, logger *zap.Logger) *TradeService {
	return &TradeService{
		logger:    logger.Named("TradeService"),
		store:     store,
		prices:    prices,
		portfolio: portfolio,
		policy:    policy,
		teamLocks: make(map[string]*sync.Mutex),
		recent:    cache.New(recentTradesTTL, 2*recentTradesTTL),
	}
}

func (s *TradeService) teamLock(teamID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.teamLocks[teamID]
	if !ok {
		lock = &sync.Mutex{}
		s.teamLocks[teamID] = lock
	}
	return lock
}

// ExecuteTrade validates the proposed swap against the team's balances and
// the configured policy, applies the slippage model and settles it. The
// first failed check is returned without side effects.
func (s *TradeService) ExecuteTrade(ctx context.Context, teamID, competitionID string, req TradeRequest) (*entity.Trade, error) {
	if req.Reason == "" {
		metrics.TradesRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if req.Amount < s.policy.MinTradeFromAmount {
		metrics.TradesRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: amount must be at least %g", ErrValidation, s.policy.MinTradeFromAmount)
	}

	fromToken := chain.NormalizeAddress(req.FromToken)
	toToken := chain.NormalizeAddress(req.ToToken)
	if fromToken == toToken {
		metrics.TradesRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: cannot trade a token for itself", ErrValidation)
	}

	lock := s.teamLock(teamID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.store.GetBalance(ctx, teamID, fromToken)
	if err != nil {
		return nil, err
	}
	if balance < req.Amount {
		metrics.TradesRejected.WithLabelValues("balance").Inc()
		return nil, fmt.Errorf("%w: have %g, trade requires %g", ErrInsufficientBalance, balance, req.Amount)
	}

	fromChain := req.FromChain
	if fromChain == "" {
		fromChain = chain.Classify(fromToken)
	}
	toChain := req.ToChain
	if toChain == "" {
		toChain = chain.Classify(toToken)
	}
	fromSpecific := req.FromSpecificChain
	if fromSpecific == "" && fromChain == chain.ChainSVM {
		fromSpecific = chain.SpecificSVM
	}
	toSpecific := req.ToSpecificChain
	if toSpecific == "" && toChain == chain.ChainSVM {
		toSpecific = chain.SpecificSVM
	}

	if !s.policy.AllowCrossChainTrading {
		if fromChain != toChain || (fromSpecific != "" && toSpecific != "" && fromSpecific != toSpecific) {
			metrics.TradesRejected.WithLabelValues("cross_chain").Inc()
			return nil, fmt.Errorf("%w: from and to tokens live on different chains", ErrCrossChainDisabled)
		}
	}

	fromReport := s.prices.GetPrice(ctx, fromToken, fromChain, fromSpecific)
	if fromReport == nil {
		metrics.TradesRejected.WithLabelValues("no_price").Inc()
		return nil, fmt.Errorf("%w for token %s", ErrNoPrice, req.FromToken)
	}
	toReport := s.prices.GetPrice(ctx, toToken, toChain, toSpecific)
	if toReport == nil {
		metrics.TradesRejected.WithLabelValues("no_price").Inc()
		return nil, fmt.Errorf("%w for token %s", ErrNoPrice, req.ToToken)
	}
	fromSpecific = fromReport.SpecificChain
	toSpecific = toReport.SpecificChain

	// Price resolution may have pinned down specific chains the request left
	// open; re-check the policy with full knowledge.
	if !s.policy.AllowCrossChainTrading && fromSpecific != toSpecific {
		metrics.TradesRejected.WithLabelValues("cross_chain").Inc()
		return nil, fmt.Errorf("%w: from and to tokens live on different chains", ErrCrossChainDisabled)
	}

	fromValueUSD := req.Amount * fromReport.PriceUSD
	portfolioUSD, _, err := s.portfolio.Value(ctx, teamID)
	if err != nil {
		return nil, err
	}
	maxValueUSD := s.policy.MaxPortfolioFraction * portfolioUSD
	if fromValueUSD > maxValueUSD {
		metrics.TradesRejected.WithLabelValues("max_size").Inc()
		return nil, fmt.Errorf("%w: trade value $%.2f exceeds the maximum size of $%.2f (%.0f%% of portfolio)",
			ErrTradeExceedsMaxSize, fromValueUSD, maxValueUSD, s.policy.MaxPortfolioFraction*100)
	}

	slippage := s.randomizedSlippage(fromValueUSD)
	if req.SlippageTolerance != nil && slippage > *req.SlippageTolerance {
		metrics.TradesRejected.WithLabelValues("slippage").Inc()
		return nil, fmt.Errorf("%w: modeled slippage %.6f is above tolerance %.6f",
			ErrSlippageTolerance, slippage, *req.SlippageTolerance)
	}
	effectiveFromValueUSD := fromValueUSD * (1 - slippage)
	toAmount := effectiveFromValueUSD / toReport.PriceUSD

	trade := &entity.Trade{
		ID:                uuid.NewString(),
		TeamID:            teamID,
		CompetitionID:     competitionID,
		FromToken:         fromToken,
		ToToken:           toToken,
		FromAmount:        req.Amount,
		ToAmount:          toAmount,
		Price:             toAmount / req.Amount,
		Success:           true,
		Reason:            req.Reason,
		FromChain:         fromChain,
		ToChain:           toChain,
		FromSpecificChain: fromSpecific,
		ToSpecificChain:   toSpecific,
		Timestamp:         time.Now().UTC(),
	}

	if err := s.store.ApplyTrade(ctx, trade); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			metrics.TradesRejected.WithLabelValues("balance").Inc()
			return nil, fmt.Errorf("%w: have %g, trade requires %g", ErrInsufficientBalance, balance, req.Amount)
		}
		s.logger.Error("Failed to settle trade",
			zap.String("teamId", teamID),
			zap.String("tradeId", trade.ID),
			zap.Error(err))
		return nil, err
	}

	s.rememberTrade(teamID, *trade)
	metrics.TradesExecuted.Inc()
	s.logger.Info("Trade executed",
		zap.String("teamId", teamID),
		zap.String("fromToken", fromToken),
		zap.String("toToken", toToken),
		zap.Float64("fromAmount", req.Amount),
		zap.Float64("toAmount", toAmount),
		zap.Float64("slippage", slippage))
	return trade, nil
}

// GetQuote prices a swap without executing it, using the deterministic base
// slippage (no random factor).
func (s *TradeService) GetQuote(ctx context.Context, req TradeRequest) (*TradeQuote, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	fromToken := chain.NormalizeAddress(req.FromToken)
	toToken := chain.NormalizeAddress(req.ToToken)
	if fromToken == toToken {
		return nil, fmt.Errorf("%w: cannot trade a token for itself", ErrValidation)
	}

	fromChain := req.FromChain
	if fromChain == "" {
		fromChain = chain.Classify(fromToken)
	}
	toChain := req.ToChain
	if toChain == "" {
		toChain = chain.Classify(toToken)
	}

	fromReport := s.prices.GetPrice(ctx, fromToken, fromChain, req.FromSpecificChain)
	if fromReport == nil {
		return nil, fmt.Errorf("%w for token %s", ErrNoPrice, req.FromToken)
	}
	toReport := s.prices.GetPrice(ctx, toToken, toChain, req.ToSpecificChain)
	if toReport == nil {
		return nil, fmt.Errorf("%w for token %s", ErrNoPrice, req.ToToken)
	}

	fromValueUSD := req.Amount * fromReport.PriceUSD
	slippage := baseSlippage(fromValueUSD)
	toAmount := fromValueUSD * (1 - slippage) / toReport.PriceUSD

	quote := &TradeQuote{
		FromToken:    fromToken,
		ToToken:      toToken,
		FromAmount:   req.Amount,
		ToAmount:     toAmount,
		ExchangeRate: toAmount / req.Amount,
		Slippage:     slippage,
	}
	quote.Prices.FromToken = fromReport.PriceUSD
	quote.Prices.ToToken = toReport.PriceUSD
	quote.Chains.FromChain = fromChain
	quote.Chains.ToChain = toChain
	return quote, nil
}

// RecentTrades returns the team's trades newest first, serving from the
// bounded in-memory window when it is warm.
func (s *TradeService) RecentTrades(ctx context.Context, teamID string) ([]entity.Trade, error) {
	if cached, found := s.recent.Get(teamID); found {
		return cached.([]entity.Trade), nil
	}
	trades, err := s.store.ListTrades(ctx, teamID, recentTradesWindow)
	if err != nil {
		return nil, err
	}
	s.recent.Set(teamID, trades, cache.DefaultExpiration)
	return trades, nil
}

func (s *TradeService) rememberTrade(teamID string, trade entity.Trade) {
	cached, found := s.recent.Get(teamID)
	if !found {
		// Seeding a cold window from a single trade would hide the team's
		// older history; the next read repopulates from the store instead.
		return
	}
	window := append([]entity.Trade{trade}, cached.([]entity.Trade)...)
	if len(window) > recentTradesWindow {
		window = window[:recentTradesWindow]
	}
	s.recent.Set(teamID, window, cache.DefaultExpiration)
}

func baseSlippage(fromValueUSD float64) float64 {
	return fromValueUSD / 10_000 * slippagePerTenK
}

func (s *TradeService) randomizedSlippage(fromValueUSD float64) float64 {
	jitter := slippageJitterMin + rand.Float64()*slippageJitterSpan
	return baseSlippage(fromValueUSD) * jitter
}
