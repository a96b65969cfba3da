// Package provider contains the upstream price source adapters. Every
// variant exposes the same small capability set so the aggregator can hold
// them as an ordered list and treat them uniformly.
package provider

import (
	"context"
	"fmt"

	"tradesim/internal/chain"
	"tradesim/internal/entity"
)

// PriceProvider is one upstream price source. GetPrice returns (nil, nil)
// when the provider simply has no price for the token; errors are reserved
// for transport and payload failures, and the aggregator treats both the
// same way: log and move on to the next candidate.
type PriceProvider interface {
	Name() string
	GetPrice(ctx context.Context, tokenAddress string, ch chain.Chain, specificChain chain.SpecificChain) (*entity.PriceReport, error)
	Supports(ctx context.Context, tokenAddress string, specificChain chain.SpecificChain) bool
}

// dexChainIDs translates our specific-chain names to DexScreener's chain
// identifiers.
var dexChainIDs = map[chain.SpecificChain]string{
	chain.SpecificETH:       "ethereum",
	chain.SpecificPolygon:   "polygon",
	chain.SpecificBSC:       "bsc",
	chain.SpecificArbitrum:  "arbitrum",
	chain.SpecificOptimism:  "optimism",
	chain.SpecificAvalanche: "avalanche",
	chain.SpecificBase:      "base",
	chain.SpecificLinea:     "linea",
	chain.SpecificZKSync:    "zksync",
	chain.SpecificScroll:    "scroll",
	chain.SpecificMantle:    "mantle",
	chain.SpecificSVM:       "solana",
}

func cacheKey(specificChain chain.SpecificChain, tokenAddress string) string {
	return fmt.Sprintf("%s:%s", specificChain, chain.NormalizeAddress(tokenAddress))
}
