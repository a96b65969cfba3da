package provider

import (
	"context"
	"time"

	"tradesim/internal/chain"
	"tradesim/internal/client"
	"tradesim/internal/entity"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// JupiterProvider serves Solana mints through the Jupiter price endpoint. It
// classifies its input and declines anything EVM-shaped.
type JupiterProvider struct {
	client   client.JupiterClient
	prices   *cache.Cache
	throttle throttle
	logger   *zap.Logger
}

// NewJupiterProvider creates a Jupiter-backed SVM price provider.
func NewJupiterProvider(c client.JupiterClient, cacheTTL time.Duration, logger *zap.Logger) *JupiterProvider {
	return &JupiterProvider{
		client:   c,
		prices:   cache.New(cacheTTL, 2*cacheTTL),
		throttle: newThrottle(),
		logger:   logger.Named("JupiterProvider"),
	}
}

// Name implements PriceProvider.
func (p *JupiterProvider) Name() string { return "Jupiter" }

// GetPrice implements PriceProvider.
func (p *JupiterProvider) GetPrice(ctx context.Context, tokenAddress string, ch chain.Chain, specificChain chain.SpecificChain) (*entity.PriceReport, error) {
	if ch == "" {
		ch = chain.Classify(tokenAddress)
	}
	if ch != chain.ChainSVM || (specificChain != "" && specificChain != chain.SpecificSVM) {
		return nil, nil
	}

	key := cacheKey(chain.SpecificSVM, tokenAddress)
	if hit, found := p.prices.Get(key); found {
		report := hit.(entity.PriceReport)
		return &report, nil
	}

	var price float64
	err := p.throttle.do(ctx, func() error {
		var fetchErr error
		price, fetchErr = p.client.GetPrice(ctx, tokenAddress)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, nil
	}

	report := entity.PriceReport{
		Token:         tokenAddress,
		PriceUSD:      price,
		Timestamp:     time.Now(),
		Chain:         chain.ChainSVM,
		SpecificChain: chain.SpecificSVM,
	}
	p.prices.Set(key, report, cache.DefaultExpiration)
	p.logger.Debug("Resolved price from Jupiter",
		zap.String("mint", tokenAddress),
		zap.Float64("price", price))
	return &report, nil
}

// Supports implements PriceProvider.
func (p *JupiterProvider) Supports(ctx context.Context, tokenAddress string, specificChain chain.SpecificChain) bool {
	report, err := p.GetPrice(ctx, tokenAddress, "", specificChain)
	return err == nil && report != nil
}
