package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradesim/internal/chain"
)

const testTimeout = 2 * time.Second

func TestDEXScreenerClientBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/v1/base/0xabc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"chainId":"base","dexId":"uniswap","pairAddress":"0xpool",
			 "baseToken":{"address":"0xabc","symbol":"TKN"},
			 "quoteToken":{"address":"0xdef","symbol":"WETH"},
			 "priceUsd":"1.25","liquidity":{"usd":100000}}
		]`))
	}))
	defer srv.Close()

	c := NewDEXScreenerClient(srv.URL, testTimeout, zap.NewNop())
	pairs, err := c.GetTokenPairs(context.Background(), "base", "0xabc")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "0xabc", pairs[0].BaseToken.Address)
	assert.Equal(t, "1.25", pairs[0].PriceUsd)
	require.NotNil(t, pairs[0].Liquidity)
	assert.Equal(t, 100000.0, pairs[0].Liquidity.Usd)
}

func TestDEXScreenerClientWrappedPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":[
			{"chainId":"solana","baseToken":{"address":"MintA"},"priceUsd":"0.5"}
		]}`))
	}))
	defer srv.Close()

	c := NewDEXScreenerClient(srv.URL, testTimeout, zap.NewNop())
	pairs, err := c.GetTokenPairs(context.Background(), "solana", "MintA")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "MintA", pairs[0].BaseToken.Address)
}

func TestDEXScreenerClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewDEXScreenerClient(srv.URL, testTimeout, zap.NewNop())
	_, err := c.GetTokenPairs(context.Background(), "base", "0xabc")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.False(t, statusErr.Transient())
}

func TestDEXScreenerClientEmptyToken(t *testing.T) {
	c := NewDEXScreenerClient("http://unused", testTimeout, zap.NewNop())
	_, err := c.GetTokenPairs(context.Background(), "base", "")
	require.Error(t, err)
}

func TestJupiterClientGetPrice(t *testing.T) {
	const mint = "So11111111111111111111111111111111111111112"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price/v2", r.URL.Path)
		assert.Equal(t, mint, r.URL.Query().Get("ids"))
		w.Write([]byte(`{"data":{"` + mint + `":{"id":"` + mint + `","type":"derivedPrice","price":"147.32"}}}`))
	}))
	defer srv.Close()

	c := NewJupiterClient(srv.URL, "", testTimeout, zap.NewNop())
	price, err := c.GetPrice(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, 147.32, price)
}

func TestJupiterClientUnknownMint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := NewJupiterClient(srv.URL, "", testTimeout, zap.NewNop())
	price, err := c.GetPrice(context.Background(), "UnknownMint1111111111111111111111111111111")
	require.NoError(t, err)
	assert.Zero(t, price)
}

func TestJupiterClientSendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := NewJupiterClient(srv.URL, "secret", testTimeout, zap.NewNop())
	_, err := c.GetPrice(context.Background(), "MintA")
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
}

func TestMultiChainClientGetChainPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/evm/base/price/0xabc", r.URL.Path)
		assert.Equal(t, "mc-key", r.Header.Get("apiKey"))
		w.Write([]byte(`{"chain":"base","price":{"amount":"1.0004","currency":"USD"},"priceStatus":"resolved"}`))
	}))
	defer srv.Close()

	c := NewMultiChainClient(srv.URL, "mc-key", testTimeout, zap.NewNop())
	price, err := c.GetChainPrice(context.Background(), chain.SpecificBase, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 1.0004, price)
}

func TestMultiChainClientPriceInProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chain":"eth","priceStatus":"inProgress"}`))
	}))
	defer srv.Close()

	c := NewMultiChainClient(srv.URL, "mc-key", testTimeout, zap.NewNop())
	_, err := c.GetChainPrice(context.Background(), chain.SpecificETH, "0xabc")
	require.ErrorIs(t, err, ErrPriceInProgress)
}

func TestMultiChainClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewMultiChainClient(srv.URL, "mc-key", testTimeout, zap.NewNop())
	_, err := c.GetChainPrice(context.Background(), chain.SpecificETH, "0xabc")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.True(t, statusErr.Transient())
}
