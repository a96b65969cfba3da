package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradesim/internal/entity"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// JupiterClient fetches USD prices for Solana mints from the Jupiter lite
// price endpoint.
type JupiterClient interface {
	GetPrice(ctx context.Context, mintAddress string) (float64, error)
}

type jupiterClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewJupiterClient creates a new Jupiter price client. The API key is
// optional; the lite endpoint works without one at a lower rate limit.
func NewJupiterClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) JupiterClient {
	return &jupiterClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("JupiterClient"),
	}
}

// GetPrice returns the USD price for a mint, or 0 when Jupiter does not know
// the token. Malformed price strings are reported as errors.
func (c *jupiterClientImpl) GetPrice(ctx context.Context, mintAddress string) (float64, error) {
	if mintAddress == "" {
		return 0, fmt.Errorf("mintAddress cannot be empty")
	}

	requestURL := fmt.Sprintf("%s/price/v2?ids=%s", c.baseURL, mintAddress)
	c.logger.Debug("Requesting mint price from Jupiter", zap.String("url", requestURL))

	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"x-api-key": c.apiKey}
	}

	rawBody, err := doGet(ctx, c.client, requestURL, c.timeout, headers)
	if err != nil {
		return 0, err
	}

	var payload entity.JupiterPriceResponse
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		c.logger.Error("Failed to unmarshal Jupiter response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err))
		return 0, fmt.Errorf("failed to unmarshal Jupiter response from %s: %w", requestURL, err)
	}

	quote, ok := payload.Data[mintAddress]
	if !ok || quote.Price == "" {
		return 0, nil
	}
	price, err := strconv.ParseFloat(quote.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse Jupiter price %q for %s: %w", quote.Price, mintAddress, err)
	}
	return price, nil
}
