package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradesim/internal/chain"
	"tradesim/internal/entity"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// ErrPriceInProgress is returned when the multi-chain feed has accepted the
// token but is still resolving its price. Treated as transient absence.
var ErrPriceInProgress = errors.New("upstream price resolution in progress")

// MultiChainClient fetches USD prices for an EVM token on one specific chain
// from a per-chain pricing feed.
type MultiChainClient interface {
	GetChainPrice(ctx context.Context, specificChain chain.SpecificChain, tokenAddress string) (float64, error)
}

type multiChainClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewMultiChainClient creates a new multi-chain EVM price client.
func NewMultiChainClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) MultiChainClient {
	return &multiChainClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("MultiChainClient"),
	}
}

// GetChainPrice returns the token's USD price on the given chain. A
// priceStatus of inProgress surfaces as ErrPriceInProgress so callers can
// retry within their own budget.
func (c *multiChainClientImpl) GetChainPrice(ctx context.Context, specificChain chain.SpecificChain, tokenAddress string) (float64, error) {
	if tokenAddress == "" {
		return 0, fmt.Errorf("tokenAddress cannot be empty")
	}

	requestURL := fmt.Sprintf("%s/evm/%s/price/%s", c.baseURL, specificChain, tokenAddress)
	c.logger.Debug("Requesting chain price", zap.String("url", requestURL))

	headers := map[string]string{"apiKey": c.apiKey}
	rawBody, err := doGet(ctx, c.client, requestURL, c.timeout, headers)
	if err != nil {
		return 0, err
	}

	var payload entity.ChainPriceResponse
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		c.logger.Error("Failed to unmarshal multi-chain price response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err))
		return 0, fmt.Errorf("failed to unmarshal price response from %s: %w", requestURL, err)
	}

	if payload.PriceStatus == entity.PriceStatusInProgress {
		return 0, ErrPriceInProgress
	}
	if payload.Price.Amount == "" {
		return 0, nil
	}
	price, err := strconv.ParseFloat(payload.Price.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price amount %q for %s on %s: %w",
			payload.Price.Amount, tokenAddress, specificChain, err)
	}
	return price, nil
}
