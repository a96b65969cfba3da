package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
	"tradesim/internal/provider"
)

func providers(ps ...*fakeProvider) []provider.PriceProvider {
	out := make([]provider.PriceProvider, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

const (
	evmToken = "0x3992b27da26848c2b19cea6fd25ad5568b68ab98"
	svmMint  = "So11111111111111111111111111111111111111112"
)

type fakeProvider struct {
	mu     sync.Mutex
	name   string
	prices map[chain.SpecificChain]float64
	err    error
	calls  []chain.SpecificChain
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetPrice(ctx context.Context, token string, ch chain.Chain, sc chain.SpecificChain) (*entity.PriceReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sc)
	if f.err != nil {
		return nil, f.err
	}
	price, ok := f.prices[sc]
	if !ok {
		return nil, nil
	}
	return &entity.PriceReport{
		Token:         token,
		PriceUSD:      price,
		Timestamp:     time.Now(),
		Chain:         sc.General(),
		SpecificChain: sc,
	}, nil
}

func (f *fakeProvider) Supports(ctx context.Context, token string, sc chain.SpecificChain) bool {
	report, err := f.GetPrice(ctx, token, "", sc)
	return err == nil && report != nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStore struct {
	mu       sync.Mutex
	inserted []entity.PriceReport
	latest   map[string]*entity.PriceReport
}

func newFakeStore() *fakeStore {
	return &fakeStore{latest: make(map[string]*entity.PriceReport)}
}

func (f *fakeStore) InsertPrice(ctx context.Context, report *entity.PriceReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, *report)
	return nil
}

func (f *fakeStore) LatestPrice(ctx context.Context, token string) (*entity.PriceReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest[token], nil
}

func (f *fakeStore) LatestPriceOnChain(ctx context.Context, token string, sc chain.SpecificChain) (*entity.PriceReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report := f.latest[token]
	if report == nil || report.SpecificChain != sc {
		return nil, nil
	}
	return report, nil
}

func (f *fakeStore) insertedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

func testOptions() Options {
	return Options{
		EVMChains:    []chain.SpecificChain{chain.SpecificETH, chain.SpecificPolygon, chain.SpecificBase},
		CacheTTL:     time.Minute,
		ChainMemoTTL: time.Minute,
		Freshness:    10 * time.Minute,
	}
}

func TestGetPriceFansOutAcrossChains(t *testing.T) {
	p := &fakeProvider{name: "fake", prices: map[chain.SpecificChain]float64{chain.SpecificBase: 0.0123}}
	store := newFakeStore()
	agg := New(providers(p), store, testOptions(), zap.NewNop())

	report := agg.GetPrice(context.Background(), evmToken, "", "")
	require.NotNil(t, report)
	assert.Equal(t, 0.0123, report.PriceUSD)
	assert.Equal(t, chain.SpecificBase, report.SpecificChain)
	assert.Equal(t, []chain.SpecificChain{chain.SpecificETH, chain.SpecificPolygon, chain.SpecificBase}, p.calls)
	assert.Equal(t, 1, store.insertedCount(), "resolved price is persisted")
}

func TestGetPriceServesFromCache(t *testing.T) {
	p := &fakeProvider{name: "fake", prices: map[chain.SpecificChain]float64{chain.SpecificBase: 1}}
	agg := New(providers(p), newFakeStore(), testOptions(), zap.NewNop())

	first := agg.GetPrice(context.Background(), evmToken, "", "")
	require.NotNil(t, first)
	callsAfterFirst := p.callCount()

	second := agg.GetPrice(context.Background(), evmToken, "", "")
	require.NotNil(t, second)
	assert.Equal(t, callsAfterFirst, p.callCount(), "second lookup must not hit the provider")
}

func TestGetPriceUsesChainMemo(t *testing.T) {
	p := &fakeProvider{name: "fake", prices: map[chain.SpecificChain]float64{chain.SpecificBase: 1}}
	agg := New(providers(p), newFakeStore(), testOptions(), zap.NewNop())

	agg.PrimeChainMemo(evmToken, chain.SpecificBase)

	report := agg.GetPrice(context.Background(), evmToken, "", "")
	require.NotNil(t, report)
	require.NotEmpty(t, p.calls)
	assert.Equal(t, chain.SpecificBase, p.calls[0], "memoized chain is tried first")
	assert.Equal(t, 1, p.callCount())
}

func TestGetPriceHonorsSpecificHint(t *testing.T) {
	p := &fakeProvider{name: "fake", prices: map[chain.SpecificChain]float64{chain.SpecificPolygon: 2}}
	agg := New(providers(p), newFakeStore(), testOptions(), zap.NewNop())

	report := agg.GetPrice(context.Background(), evmToken, chain.ChainEVM, chain.SpecificPolygon)
	require.NotNil(t, report)
	assert.Equal(t, []chain.SpecificChain{chain.SpecificPolygon}, p.calls)
}

func TestGetPriceSVMOnlyAsksSVM(t *testing.T) {
	p := &fakeProvider{name: "fake", prices: map[chain.SpecificChain]float64{chain.SpecificSVM: 147}}
	agg := New(providers(p), newFakeStore(), testOptions(), zap.NewNop())

	report := agg.GetPrice(context.Background(), svmMint, "", "")
	require.NotNil(t, report)
	assert.Equal(t, []chain.SpecificChain{chain.SpecificSVM}, p.calls)
}

func TestGetPriceProviderOrder(t *testing.T) {
	first := &fakeProvider{name: "first", err: errors.New("upstream down")}
	second := &fakeProvider{name: "second", prices: map[chain.SpecificChain]float64{chain.SpecificETH: 3}}
	agg := New(providers(first, second), newFakeStore(), testOptions(), zap.NewNop())

	report := agg.GetPrice(context.Background(), evmToken, chain.ChainEVM, chain.SpecificETH)
	require.NotNil(t, report)
	assert.Equal(t, 3.0, report.PriceUSD)
	assert.Equal(t, 1, first.callCount(), "failing provider is tried once then skipped")
}

func TestGetPriceMiss(t *testing.T) {
	p := &fakeProvider{name: "fake"}
	agg := New(providers(p), newFakeStore(), testOptions(), zap.NewNop())

	report := agg.GetPrice(context.Background(), evmToken, "", "")
	assert.Nil(t, report)
	assert.Equal(t, 3, p.callCount(), "every candidate chain was tried")
}

func TestGetPriceServesFreshStoredPrice(t *testing.T) {
	p := &fakeProvider{name: "fake"}
	store := newFakeStore()
	store.latest[evmToken] = &entity.PriceReport{
		Token:         evmToken,
		PriceUSD:      1.5,
		Timestamp:     time.Now().Add(-time.Minute),
		Chain:         chain.ChainEVM,
		SpecificChain: chain.SpecificBase,
	}
	agg := New(providers(p), store, testOptions(), zap.NewNop())

	report := agg.GetPrice(context.Background(), evmToken, "", "")
	require.NotNil(t, report)
	assert.Equal(t, 1.5, report.PriceUSD)
	assert.Zero(t, p.callCount(), "fresh stored price short-circuits the providers")
}

func TestGetPriceIgnoresStaleStoredPrice(t *testing.T) {
	p := &fakeProvider{name: "fake", prices: map[chain.SpecificChain]float64{chain.SpecificETH: 2}}
	store := newFakeStore()
	store.latest[evmToken] = &entity.PriceReport{
		Token:         evmToken,
		PriceUSD:      1.5,
		Timestamp:     time.Now().Add(-time.Hour),
		Chain:         chain.ChainEVM,
		SpecificChain: chain.SpecificETH,
	}
	agg := New(providers(p), store, testOptions(), zap.NewNop())

	report := agg.GetPrice(context.Background(), evmToken, "", "")
	require.NotNil(t, report)
	assert.Equal(t, 2.0, report.PriceUSD)
	assert.NotZero(t, p.callCount())
}

func TestGetPriceCoalescesConcurrentLookups(t *testing.T) {
	p := &fakeProvider{name: "slow", prices: map[chain.SpecificChain]float64{chain.SpecificETH: 1}}
	agg := New(providers(p), newFakeStore(), testOptions(), zap.NewNop())

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			report := agg.GetPrice(context.Background(), evmToken, chain.ChainEVM, chain.SpecificETH)
			assert.NotNil(t, report)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.callCount(), workers,
		"coalescing bounds the upstream calls to at most one per flight")
}

func TestGetPriceNormalizesTokenKey(t *testing.T) {
	p := &fakeProvider{name: "fake", prices: map[chain.SpecificChain]float64{chain.SpecificBase: 1}}
	agg := New(providers(p), newFakeStore(), testOptions(), zap.NewNop())

	first := agg.GetPrice(context.Background(), "0x3992B27dA26848C2b19CeA6Fd25ad5568B68AB98", chain.ChainEVM, chain.SpecificBase)
	require.NotNil(t, first)
	callsAfterFirst := p.callCount()

	second := agg.GetPrice(context.Background(), evmToken, chain.ChainEVM, chain.SpecificBase)
	require.NotNil(t, second)
	assert.Equal(t, callsAfterFirst, p.callCount(), "checksummed and lowercase forms share one cache entry")
}
