package provider

import (
	"context"
	"errors"
	"time"

	"tradesim/internal/chain"
	"tradesim/internal/client"
	"tradesim/internal/entity"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// MultiChainProvider serves EVM tokens through a per-chain pricing feed.
// Given a concrete specific chain it asks about exactly that chain; without
// one it walks its configured chain order until something answers, which is
// how fresh tokens get their chain discovered.
type MultiChainProvider struct {
	client    client.MultiChainClient
	prices    *cache.Cache
	evmChains []chain.SpecificChain
	throttle  throttle
	logger    *zap.Logger
}

// NewMultiChainProvider creates a multi-chain EVM price provider.
func NewMultiChainProvider(c client.MultiChainClient, evmChains []chain.SpecificChain, cacheTTL time.Duration, logger *zap.Logger) *MultiChainProvider {
	return &MultiChainProvider{
		client:    c,
		prices:    cache.New(cacheTTL, 2*cacheTTL),
		evmChains: evmChains,
		throttle:  newThrottle(),
		logger:    logger.Named("MultiChainProvider"),
	}
}

// Name implements PriceProvider.
func (p *MultiChainProvider) Name() string { return "MultiChainEVM" }

// GetPrice implements PriceProvider.
func (p *MultiChainProvider) GetPrice(ctx context.Context, tokenAddress string, ch chain.Chain, specificChain chain.SpecificChain) (*entity.PriceReport, error) {
	if ch == "" {
		ch = chain.Classify(tokenAddress)
	}
	if ch != chain.ChainEVM || specificChain == chain.SpecificSVM {
		return nil, nil
	}

	candidates := p.evmChains
	if specificChain != "" {
		candidates = []chain.SpecificChain{specificChain}
	}

	var lastErr error
	for _, candidate := range candidates {
		report, err := p.getChainPrice(ctx, tokenAddress, candidate)
		if err != nil {
			lastErr = err
			continue
		}
		if report != nil {
			return report, nil
		}
	}
	return nil, lastErr
}

func (p *MultiChainProvider) getChainPrice(ctx context.Context, tokenAddress string, specificChain chain.SpecificChain) (*entity.PriceReport, error) {
	key := cacheKey(specificChain, tokenAddress)
	if hit, found := p.prices.Get(key); found {
		report := hit.(entity.PriceReport)
		return &report, nil
	}

	var price float64
	err := p.throttle.do(ctx, func() error {
		var fetchErr error
		price, fetchErr = p.client.GetChainPrice(ctx, specificChain, tokenAddress)
		return fetchErr
	})
	if err != nil {
		// An exhausted in-progress resolution means the feed has not priced
		// the token yet; report absence, not failure.
		if errors.Is(err, client.ErrPriceInProgress) {
			return nil, nil
		}
		return nil, err
	}
	if price <= 0 {
		return nil, nil
	}

	report := entity.PriceReport{
		Token:         chain.NormalizeAddress(tokenAddress),
		PriceUSD:      price,
		Timestamp:     time.Now(),
		Chain:         chain.ChainEVM,
		SpecificChain: specificChain,
	}
	p.prices.Set(key, report, cache.DefaultExpiration)
	p.logger.Debug("Resolved price from multi-chain feed",
		zap.String("token", report.Token),
		zap.String("specificChain", string(specificChain)),
		zap.Float64("price", price))
	return &report, nil
}

// Supports implements PriceProvider.
func (p *MultiChainProvider) Supports(ctx context.Context, tokenAddress string, specificChain chain.SpecificChain) bool {
	report, err := p.GetPrice(ctx, tokenAddress, "", specificChain)
	return err == nil && report != nil
}
