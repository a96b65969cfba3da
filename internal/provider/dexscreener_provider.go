package provider

import (
	"context"
	"strconv"
	"strings"
	"time"

	"tradesim/internal/chain"
	"tradesim/internal/client"
	"tradesim/internal/entity"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DexScreenerProvider serves both SVM and EVM tokens through the DexScreener
// token endpoint. EVM lookups need the caller to say which specific chain to
// ask about; the aggregator supplies it during fan-out.
type DexScreenerProvider struct {
	client   client.DEXScreenerClient
	prices   *cache.Cache
	throttle throttle
	logger   *zap.Logger
}

// NewDexScreenerProvider creates a DexScreener-backed price provider with a
// price cache of the given TTL.
func NewDexScreenerProvider(c client.DEXScreenerClient, cacheTTL time.Duration, logger *zap.Logger) *DexScreenerProvider {
	return &DexScreenerProvider{
		client:   c,
		prices:   cache.New(cacheTTL, 2*cacheTTL),
		throttle: newThrottle(),
		logger:   logger.Named("DexScreenerProvider"),
	}
}

// Name implements PriceProvider.
func (p *DexScreenerProvider) Name() string { return "DexScreener" }

// GetPrice implements PriceProvider. The first pool whose base token matches
// the request and carries a parseable positive USD price wins.
func (p *DexScreenerProvider) GetPrice(ctx context.Context, tokenAddress string, ch chain.Chain, specificChain chain.SpecificChain) (*entity.PriceReport, error) {
	if ch == "" {
		ch = chain.Classify(tokenAddress)
	}
	if specificChain == "" {
		if ch != chain.ChainSVM {
			// EVM without a concrete chain: nothing to ask DexScreener about.
			return nil, nil
		}
		specificChain = chain.SpecificSVM
	}

	key := cacheKey(specificChain, tokenAddress)
	if hit, found := p.prices.Get(key); found {
		report := hit.(entity.PriceReport)
		return &report, nil
	}

	dexChainID, ok := dexChainIDs[specificChain]
	if !ok {
		return nil, nil
	}

	var pairs []entity.PairData
	err := p.throttle.do(ctx, func() error {
		var fetchErr error
		pairs, fetchErr = p.client.GetTokenPairs(ctx, dexChainID, tokenAddress)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	price := firstUsablePrice(pairs, tokenAddress)
	if price <= 0 {
		return nil, nil
	}

	report := entity.PriceReport{
		Token:         chain.NormalizeAddress(tokenAddress),
		PriceUSD:      price,
		Timestamp:     time.Now(),
		Chain:         specificChain.General(),
		SpecificChain: specificChain,
	}
	p.prices.Set(key, report, cache.DefaultExpiration)
	p.logger.Debug("Resolved price from DexScreener",
		zap.String("token", report.Token),
		zap.String("specificChain", string(specificChain)),
		zap.Float64("price", price))
	return &report, nil
}

// Supports implements PriceProvider.
func (p *DexScreenerProvider) Supports(ctx context.Context, tokenAddress string, specificChain chain.SpecificChain) bool {
	report, err := p.GetPrice(ctx, tokenAddress, "", specificChain)
	return err == nil && report != nil
}

func firstUsablePrice(pairs []entity.PairData, tokenAddress string) float64 {
	for _, pair := range pairs {
		if !strings.EqualFold(pair.BaseToken.Address, tokenAddress) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}
		price, err := strconv.ParseFloat(pair.PriceUsd, 64)
		if err != nil || price <= 0 {
			continue
		}
		return price
	}
	return 0
}
