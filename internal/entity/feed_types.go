package entity

// JupiterPriceResponse is the Jupiter lite price endpoint payload:
// {"data": {"<mint>": {"id": "...", "price": "1.23"}}}.
type JupiterPriceResponse struct {
	Data map[string]JupiterPriceEntry `json:"data"`
}

// JupiterPriceEntry is one priced mint. Price arrives as a decimal string.
type JupiterPriceEntry struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Price string `json:"price"`
}

// Multi-chain price feed status values. An in-progress price means the
// upstream has not finished resolving the token on that chain yet; the
// provider treats it as absence and retries within its budget.
const (
	PriceStatusResolved   = "resolved"
	PriceStatusInProgress = "inProgress"
)

// ChainPriceResponse is the multi-chain EVM feed payload:
// {"chain": "base", "price": {"amount": "1.0004", "currency": "USD"},
//  "priceStatus": "resolved"}.
type ChainPriceResponse struct {
	Chain       string      `json:"chain"`
	Price       AmountQuote `json:"price"`
	PriceStatus string      `json:"priceStatus"`
}

// AmountQuote is a currency-tagged decimal amount.
type AmountQuote struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}
