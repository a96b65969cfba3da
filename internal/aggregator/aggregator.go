// Package aggregator resolves token addresses to USD prices by orchestrating
// an ordered list of upstream providers with caching, database freshness
// checks and per-token chain memoization.
package aggregator

import (
	"context"
	"time"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
	"tradesim/internal/pkg/metrics"
	"tradesim/internal/provider"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PriceStore is the slice of the price repository the aggregator needs:
// append a resolved price, and fetch the latest one for freshness checks.
type PriceStore interface {
	InsertPrice(ctx context.Context, report *entity.PriceReport) error
	LatestPrice(ctx context.Context, token string) (*entity.PriceReport, error)
	LatestPriceOnChain(ctx context.Context, token string, specificChain chain.SpecificChain) (*entity.PriceReport, error)
}

// Aggregator is the multi-chain price resolver. Lookup order: in-memory
// cache, database freshness window, then provider fan-out across candidate
// chains. Concurrent lookups for the same (token, chain) key are coalesced
// into a single upstream resolution.
type Aggregator struct {
	logger    *zap.Logger
	providers []provider.PriceProvider
	store     PriceStore
	prices    *cache.Cache // normalized token -> entity.PriceReport
	chainMemo *cache.Cache // normalized token -> chain.SpecificChain
	evmChains []chain.SpecificChain
	freshness time.Duration
	flight    singleflight.Group
}

// Options bundles the aggregator's tuning knobs.
type Options struct {
	EVMChains    []chain.SpecificChain
	CacheTTL     time.Duration
	ChainMemoTTL time.Duration
	Freshness    time.Duration
}

// New creates an aggregator over the given providers, tried in declared
// order on every candidate chain.
func New(providers []provider.PriceProvider, store PriceStore, opts Options, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		logger:    logger.Named("PriceAggregator"),
		providers: providers,
		store:     store,
		prices:    cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		chainMemo: cache.New(opts.ChainMemoTTL, 2*opts.ChainMemoTTL),
		evmChains: opts.EVMChains,
		freshness: opts.Freshness,
	}
}

// PrimeChainMemo records a token's specific chain ahead of time so known
// tokens never pay the discovery fan-out. Used at boot for configured tokens.
func (a *Aggregator) PrimeChainMemo(tokenAddress string, specificChain chain.SpecificChain) {
	a.chainMemo.Set(chain.NormalizeAddress(tokenAddress), specificChain, cache.DefaultExpiration)
}

// GetPrice resolves a positive USD price for the token or returns nil when
// every source is exhausted. Upstream failures never surface as errors here.
func (a *Aggregator) GetPrice(ctx context.Context, tokenAddress string, chainHint chain.Chain, specificHint chain.SpecificChain) *entity.PriceReport {
	token := chain.NormalizeAddress(tokenAddress)

	if hit, found := a.prices.Get(token); found {
		report := hit.(entity.PriceReport)
		if specificHint == "" || report.SpecificChain == specificHint {
			metrics.PriceLookups.WithLabelValues("cache").Inc()
			return &report
		}
	}

	key := token + "|" + string(specificHint)
	result, _, _ := a.flight.Do(key, func() (interface{}, error) {
		return a.resolve(ctx, token, chainHint, specificHint), nil
	})
	report, ok := result.(*entity.PriceReport)
	if !ok || report == nil {
		return nil
	}
	return report
}

func (a *Aggregator) resolve(ctx context.Context, token string, chainHint chain.Chain, specificHint chain.SpecificChain) *entity.PriceReport {
	if stored := a.freshStoredPrice(ctx, token, specificHint); stored != nil {
		return stored
	}

	general := chainHint
	if general == "" {
		general = chain.Classify(token)
	}

	for _, candidate := range a.candidateChains(token, general, specificHint) {
		for _, p := range a.providers {
			report, err := p.GetPrice(ctx, token, general, candidate)
			if err != nil {
				a.logger.Debug("Provider failed, advancing",
					zap.String("provider", p.Name()),
					zap.String("token", token),
					zap.String("specificChain", string(candidate)),
					zap.Error(err))
				continue
			}
			if report == nil || report.PriceUSD <= 0 {
				continue
			}

			a.chainMemo.Set(token, report.SpecificChain, cache.DefaultExpiration)
			a.prices.Set(token, *report, cache.DefaultExpiration)
			if err := a.store.InsertPrice(ctx, report); err != nil {
				// Persistence is best effort; the price is still good.
				a.logger.Warn("Failed to persist price record",
					zap.String("token", token), zap.Error(err))
			}
			metrics.PriceLookups.WithLabelValues("upstream").Inc()
			return report
		}
	}

	metrics.PriceLookups.WithLabelValues("miss").Inc()
	a.logger.Info("No provider returned a price",
		zap.String("token", token),
		zap.String("chain", string(general)),
		zap.String("specificChainHint", string(specificHint)))
	return nil
}

func (a *Aggregator) freshStoredPrice(ctx context.Context, token string, specificHint chain.SpecificChain) *entity.PriceReport {
	var stored *entity.PriceReport
	var err error
	if specificHint != "" {
		stored, err = a.store.LatestPriceOnChain(ctx, token, specificHint)
	} else {
		stored, err = a.store.LatestPrice(ctx, token)
	}
	if err != nil {
		a.logger.Warn("Failed to read latest stored price", zap.String("token", token), zap.Error(err))
		return nil
	}
	if stored == nil || time.Since(stored.Timestamp) >= a.freshness {
		return nil
	}

	a.prices.Set(token, *stored, cache.DefaultExpiration)
	a.chainMemo.Set(token, stored.SpecificChain, cache.DefaultExpiration)
	metrics.PriceLookups.WithLabelValues("store").Inc()
	return stored
}

// candidateChains returns the specific chains to try, most promising first.
// SVM tokens only live on svm; EVM tokens prefer an explicit hint, then the
// memoized chain, then the configured discovery order.
func (a *Aggregator) candidateChains(token string, general chain.Chain, specificHint chain.SpecificChain) []chain.SpecificChain {
	if general == chain.ChainSVM {
		return []chain.SpecificChain{chain.SpecificSVM}
	}
	if specificHint != "" {
		return []chain.SpecificChain{specificHint}
	}

	if memoized, found := a.chainMemo.Get(token); found {
		first := memoized.(chain.SpecificChain)
		chains := make([]chain.SpecificChain, 0, len(a.evmChains)+1)
		chains = append(chains, first)
		for _, sc := range a.evmChains {
			if sc != first {
				chains = append(chains, sc)
			}
		}
		return chains
	}
	return a.evmChains
}
