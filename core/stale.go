package core

import (
	"github.com/shopspring/decimal"
)

// IsVotingPowerStale reports whether the account gained voting power only after the proposal
// was created, so its current power cannot be used on this proposal.
func IsVotingPowerStale(atCreated, atLatest decimal.Decimal) bool {
	return !atCreated.IsPositive() && atLatest.IsPositive()
}
