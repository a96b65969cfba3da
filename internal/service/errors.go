package service

import "errors"

// Domain errors surfaced by the trade engine. Handlers map these to 400
// responses; anything else is treated as an internal failure. ErrNoPrice is
// capitalized to match the message the price endpoint emits.
var (
	ErrValidation          = errors.New("invalid trade request")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoPrice             = errors.New("Unable to determine price")
	ErrTradeExceedsMaxSize = errors.New("trade exceeds maximum size")
	ErrCrossChainDisabled  = errors.New("cross-chain trading is disabled")
	ErrSlippageTolerance   = errors.New("slippage exceeds tolerance")
	ErrNoActiveCompetition = errors.New("no active competition")
)

// IsUserError reports whether the error should surface as a 400 rather than
// a 500.
func IsUserError(err error) bool {
	for _, domainErr := range []error{
		ErrValidation,
		ErrInsufficientBalance,
		ErrNoPrice,
		ErrTradeExceedsMaxSize,
		ErrCrossChainDisabled,
		ErrSlippageTolerance,
		ErrNoActiveCompetition,
	} {
		if errors.Is(err, domainErr) {
			return true
		}
	}
	return false
}
