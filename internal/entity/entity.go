package entity

import (
	"time"

	"tradesim/internal/chain"
)

// Team is a registered competitor identified by an opaque API key.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Balance is one team's holding of one token. Amount never goes negative.
type Balance struct {
	TeamID        string              `json:"teamId"`
	TokenAddress  string              `json:"token"`
	Amount        float64             `json:"amount"`
	SpecificChain chain.SpecificChain `json:"specificChain,omitempty"`
}

// PriceReport is a resolved USD price for a token, tagged with where it was
// found. Price is always > 0; a token without a price is represented by the
// absence of a report, not a zero price.
type PriceReport struct {
	Token         string              `json:"token"`
	PriceUSD      float64             `json:"price"`
	Timestamp     time.Time           `json:"timestamp"`
	Chain         chain.Chain         `json:"chain"`
	SpecificChain chain.SpecificChain `json:"specificChain"`
}

// Trade is an executed (or rejected) swap. Rows are immutable once written.
// Price is the realized toAmount/fromAmount exchange rate.
type Trade struct {
	ID                string              `json:"id"`
	TeamID            string              `json:"teamId"`
	CompetitionID     string              `json:"competitionId"`
	FromToken         string              `json:"fromToken"`
	ToToken           string              `json:"toToken"`
	FromAmount        float64             `json:"fromAmount"`
	ToAmount          float64             `json:"toAmount"`
	Price             float64             `json:"price"`
	Success           bool                `json:"success"`
	Reason            string              `json:"reason,omitempty"`
	Error             string              `json:"error,omitempty"`
	FromChain         chain.Chain         `json:"fromChain"`
	ToChain           chain.Chain         `json:"toChain"`
	FromSpecificChain chain.SpecificChain `json:"fromSpecificChain,omitempty"`
	ToSpecificChain   chain.SpecificChain `json:"toSpecificChain,omitempty"`
	Timestamp         time.Time           `json:"timestamp"`
}

// CompetitionStatus is the lifecycle state of a competition.
type CompetitionStatus string

const (
	CompetitionPending   CompetitionStatus = "PENDING"
	CompetitionActive    CompetitionStatus = "ACTIVE"
	CompetitionCompleted CompetitionStatus = "COMPLETED"
)

// Competition groups teams for a scoring window. At most one competition is
// ACTIVE at any moment; the snapshot scheduler relies on that.
type Competition struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Status    CompetitionStatus `json:"status"`
	StartDate *time.Time        `json:"startDate,omitempty"`
	EndDate   *time.Time        `json:"endDate,omitempty"`
}

// PortfolioSnapshot is a point-in-time valuation of one team's holdings.
type PortfolioSnapshot struct {
	ID            string    `json:"id"`
	TeamID        string    `json:"teamId"`
	CompetitionID string    `json:"competitionId"`
	Timestamp     time.Time `json:"timestamp"`
	TotalValueUSD float64   `json:"totalValue"`
}

// TokenValue is one valued holding inside a snapshot or a live portfolio view.
type TokenValue struct {
	SnapshotID    string              `json:"-"`
	TokenAddress  string              `json:"token"`
	Amount        float64             `json:"amount"`
	PriceUSD      float64             `json:"price"`
	ValueUSD      float64             `json:"value"`
	SpecificChain chain.SpecificChain `json:"specificChain,omitempty"`
}
