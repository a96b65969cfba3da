package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradesim/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DEXScreenerClient fetches liquidity pools for a token from the DexScreener
// token endpoint.
type DEXScreenerClient interface {
	GetTokenPairs(ctx context.Context, dexChainID string, tokenAddress string) ([]entity.PairData, error)
}

type dexScreenerClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewDEXScreenerClient creates a new DexScreener client.
func NewDEXScreenerClient(baseURL string, timeout time.Duration, logger *zap.Logger) DEXScreenerClient {
	return &dexScreenerClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("DEXScreenerClient"),
	}
}

// GetTokenPairs returns the pools DexScreener knows for the token on the
// given upstream chain id (e.g. "ethereum", "base", "solana"). A 200 response
// with zero pools is not an error; the caller decides what absence means.
func (c *dexScreenerClientImpl) GetTokenPairs(ctx context.Context, dexChainID string, tokenAddress string) ([]entity.PairData, error) {
	if tokenAddress == "" {
		return nil, fmt.Errorf("tokenAddress cannot be empty")
	}

	requestURL := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, dexChainID, tokenAddress)
	c.logger.Debug("Requesting token pairs from DEX Screener", zap.String("url", requestURL))

	rawBody, err := doGet(ctx, c.client, requestURL, c.timeout, nil)
	if err != nil {
		return nil, err
	}

	// The token endpoint answers with a bare array of pools, but some
	// DexScreener endpoints wrap the same data in a {"pairs": [...]} object.
	// Accept both.
	var directPairs []entity.PairData
	if err := json.Unmarshal(rawBody, &directPairs); err == nil {
		return directPairs, nil
	}

	var wrapper entity.DEXTokenPairs
	if err := json.Unmarshal(rawBody, &wrapper); err != nil {
		c.logger.Error("Failed to unmarshal DEX Screener response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal DEX Screener response from %s: %w", requestURL, err)
	}
	return wrapper.Pairs, nil
}

// doGet runs one GET request through fasthttp, honoring the context deadline
// when one is set and the client default timeout otherwise. Non-200 statuses
// come back as *StatusError.
func doGet(ctx context.Context, client *fasthttp.Client, requestURL string, timeout time.Duration, headers map[string]string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
		}
	} else {
		if err := client.DoTimeout(req, resp, timeout); err != nil {
			return nil, fmt.Errorf("failed to execute request to %s with default timeout: %w", requestURL, err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &StatusError{
			URL:  requestURL,
			Code: resp.StatusCode(),
			Body: string(resp.Body()),
		}
	}

	// The response buffer is recycled on release; hand back a copy.
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}
