package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Chain is the coarse family a token address belongs to.
type Chain string

const (
	ChainEVM Chain = "evm"
	ChainSVM Chain = "svm"
)

// SpecificChain identifies the exact network a token trades on. EVM tokens
// resolve to one of the named networks; every SVM token resolves to "svm".
type SpecificChain string

const (
	SpecificETH       SpecificChain = "eth"
	SpecificPolygon   SpecificChain = "polygon"
	SpecificBSC       SpecificChain = "bsc"
	SpecificArbitrum  SpecificChain = "arbitrum"
	SpecificOptimism  SpecificChain = "optimism"
	SpecificAvalanche SpecificChain = "avalanche"
	SpecificBase      SpecificChain = "base"
	SpecificLinea     SpecificChain = "linea"
	SpecificZKSync    SpecificChain = "zksync"
	SpecificScroll    SpecificChain = "scroll"
	SpecificMantle    SpecificChain = "mantle"
	SpecificSVM       SpecificChain = "svm"
)

// AllEVMChains is the default discovery order for EVM tokens whose specific
// chain is not yet known.
var AllEVMChains = []SpecificChain{
	SpecificETH,
	SpecificPolygon,
	SpecificBSC,
	SpecificArbitrum,
	SpecificOptimism,
	SpecificAvalanche,
	SpecificBase,
	SpecificLinea,
	SpecificZKSync,
	SpecificScroll,
	SpecificMantle,
}

var validSpecificChains = func() map[SpecificChain]struct{} {
	m := make(map[SpecificChain]struct{}, len(AllEVMChains)+1)
	for _, sc := range AllEVMChains {
		m[sc] = struct{}{}
	}
	m[SpecificSVM] = struct{}{}
	return m
}()

// ParseChain parses a case-insensitive chain name. Empty input returns an
// empty chain, which callers treat as "auto-detect".
func ParseChain(s string) (Chain, bool) {
	switch strings.ToLower(s) {
	case "":
		return "", true
	case string(ChainEVM):
		return ChainEVM, true
	case string(ChainSVM):
		return ChainSVM, true
	}
	return "", false
}

// ParseSpecificChain parses a case-insensitive specific-chain name. Empty
// input returns an empty value, meaning "not specified".
func ParseSpecificChain(s string) (SpecificChain, bool) {
	if s == "" {
		return "", true
	}
	sc := SpecificChain(strings.ToLower(s))
	if _, ok := validSpecificChains[sc]; ok {
		return sc, true
	}
	return "", false
}

// General returns the chain family a specific chain belongs to.
func (sc SpecificChain) General() Chain {
	if sc == SpecificSVM {
		return ChainSVM
	}
	return ChainEVM
}

// Classify maps a token address to its chain family by surface format: a
// 42-character 0x-prefixed hex string is EVM, anything else is SVM. Malformed
// input falls through to SVM; downstream price lookups reject it with a null
// price instead of the classifier failing.
func Classify(address string) Chain {
	if len(address) == 42 && strings.HasPrefix(address, "0x") && common.IsHexAddress(address) {
		return ChainEVM
	}
	return ChainSVM
}

// NormalizeAddress lowercases EVM addresses so they can serve as cache and
// database keys. SVM addresses are base58 and case-sensitive, so they pass
// through verbatim.
func NormalizeAddress(address string) string {
	if Classify(address) == ChainEVM {
		return strings.ToLower(address)
	}
	return address
}
