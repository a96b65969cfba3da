package entity

// DEXTokenPairs wraps DexScreener responses that nest pools under a "pairs"
// key. The token endpoint usually returns a bare array instead; the client
// tries both shapes.
type DEXTokenPairs struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []PairData `json:"pairs"`
}

// PairData is one liquidity pool reported by DexScreener. PriceUsd arrives as
// a string and may be empty or "0" for pools without a USD quote.
type PairData struct {
	ChainID     string        `json:"chainId"`
	DexID       string        `json:"dexId"`
	PairAddress string        `json:"pairAddress"`
	BaseToken   DEXToken      `json:"baseToken"`
	QuoteToken  DEXToken      `json:"quoteToken"`
	PriceNative string        `json:"priceNative"`
	PriceUsd    string        `json:"priceUsd"`
	Liquidity   *DEXLiquidity `json:"liquidity"`
	Fdv         float64       `json:"fdv"`
	MarketCap   float64       `json:"marketCap"`
}

// DEXToken identifies one side of a pool.
type DEXToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DEXLiquidity is the pool's liquidity breakdown. Pointer on PairData because
// the API omits it for some pools.
type DEXLiquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}
