package core

// ReasonCode explains why an action is disabled. Codes are ordered by tooltip precedence
// within each gate, not globally.
type ReasonCode uint8

const (
	ReasonNone ReasonCode = iota
	ReasonNoWallet
	ReasonNoAllowance
	ReasonNoBalance
	ReasonNoAmount
	ReasonInsufficientBalance
	ReasonVotingClosed
	ReasonNoVotingPower
	ReasonNoBallot
	ReasonTxPending
)

var reasonCodes = map[ReasonCode]string{
	ReasonNone:                "NONE",
	ReasonNoWallet:            "NO_WALLET",
	ReasonNoAllowance:         "NO_ALLOWANCE",
	ReasonNoBalance:           "NO_BALANCE",
	ReasonNoAmount:            "NO_AMOUNT",
	ReasonInsufficientBalance: "INSUFFICIENT_BALANCE",
	ReasonVotingClosed:        "VOTING_CLOSED",
	ReasonNoVotingPower:       "NO_VOTING_POWER",
	ReasonNoBallot:            "NO_BALLOT",
	ReasonTxPending:           "TX_PENDING",
}

var reasonMessages = map[ReasonCode]string{
	ReasonNoWallet:            "Connect wallet",
	ReasonNoAllowance:         "Need allowance",
	ReasonNoBalance:           "No tokens to deposit",
	ReasonNoAmount:            "Enter an amount",
	ReasonInsufficientBalance: "Not enough tokens",
	ReasonVotingClosed:        "Voting is closed",
	ReasonNoVotingPower:       "No voting power at proposal creation",
	ReasonNoBallot:            "Select a ballot",
	ReasonTxPending:           "Transaction pending",
}

func (r ReasonCode) String() string {
	if s, ok := reasonCodes[r]; ok {
		return s
	}
	return "UNKNOWN"
}

// Message is the tooltip shown on a disabled action, empty when enabled.
func (r ReasonCode) Message() string {
	return reasonMessages[r]
}

func (r ReasonCode) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

type GateResult struct {
	Enabled bool       `json:"enabled"`
	Reason  ReasonCode `json:"reason"`
}

func disabled(r ReasonCode) GateResult {
	return GateResult{Reason: r}
}

var enabled = GateResult{Enabled: true, Reason: ReasonNone}

// GateDeposit decides whether depositing amount into the vault is possible.
// The first failing check wins.
func GateDeposit(account, allowance, balance, amount string) GateResult {
	if account == "" {
		return disabled(ReasonNoWallet)
	}
	if !IsPositive(allowance) {
		return disabled(ReasonNoAllowance)
	}
	return gateBalance(balance, amount, ReasonNoBalance)
}

// GateWithdraw decides whether withdrawing amount from the deposited balance is possible.
func GateWithdraw(account, deposited, amount string) GateResult {
	if account == "" {
		return disabled(ReasonNoWallet)
	}
	return gateBalance(deposited, amount, ReasonNoBalance)
}

func gateBalance(balance, amount string, noBalance ReasonCode) GateResult {
	b, _ := ParseAmount(balance)
	if !b.IsPositive() {
		return disabled(noBalance)
	}
	a, _ := ParseAmount(amount)
	if !a.IsPositive() {
		return disabled(ReasonNoAmount)
	}
	if b.Sub(a).IsNegative() {
		return disabled(ReasonInsufficientBalance)
	}
	return enabled
}
