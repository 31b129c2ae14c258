package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4"

func TestGateDeposit(t *testing.T) {
	tests := []struct {
		name      string
		account   string
		allowance string
		balance   string
		amount    string
		want      ReasonCode
	}{
		{"no wallet beats everything", "", "0", "0", "", ReasonNoWallet},
		{"no allowance", account, "0", "100", "5", ReasonNoAllowance},
		{"balance below amount", account, "10", "5", "10", ReasonInsufficientBalance},
		{"enough of everything", account, "10", "100", "5", ReasonNone},
		{"unset allowance", account, "", "10", "1", ReasonNoAllowance},
		{"no balance", account, "100", "0", "1", ReasonNoBalance},
		{"no amount", account, "100", "10", "", ReasonNoAmount},
		{"zero amount", account, "100", "10", "0.0", ReasonNoAmount},
		{"negative amount", account, "100", "10", "-1", ReasonNoAmount},
		{"malformed amount", account, "100", "10", "1..2", ReasonNoAmount},
		{"tiny exponent amount", account, "100", "10", "1e-2000000000", ReasonNoAmount},
		{"huge exponent amount", account, "100", "10", "1e2000000000", ReasonNoAmount},
		{"exponent balance", account, "100", "1e2000000000", "1", ReasonNoBalance},
		{"insufficient", account, "100", "10", "10.000000000000000001", ReasonInsufficientBalance},
		{"exact balance", account, "100", "10", "10", ReasonNone},
		{"trailing zeros compare equal", account, "100", "1.0", "1.00", ReasonNone},
		{"beyond float precision", account, "1", "9007199254740993.000000000000000001", "9007199254740993", ReasonNone},
		{"beyond float precision insufficient", account, "1", "9007199254740992", "9007199254740993", ReasonInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := GateDeposit(tt.account, tt.allowance, tt.balance, tt.amount)
			assert.Equal(t, tt.want, res.Reason)
			assert.Equal(t, tt.want == ReasonNone, res.Enabled)
		})
	}
}

func TestGateWithdraw(t *testing.T) {
	assert.Equal(t, ReasonNoWallet, GateWithdraw("", "10", "1").Reason)
	assert.Equal(t, ReasonNoBalance, GateWithdraw(account, "0", "1").Reason)
	assert.Equal(t, ReasonNoAmount, GateWithdraw(account, "10", "").Reason)
	assert.Equal(t, ReasonInsufficientBalance, GateWithdraw(account, "10", "11").Reason)
	assert.True(t, GateWithdraw(account, "10", "10").Enabled)
	assert.Equal(t, ReasonNoAmount, GateWithdraw(account, "10", "1e-2000000000").Reason)
}

func TestReasonCodeText(t *testing.T) {
	res := GateDeposit("", "", "", "")
	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled":false,"reason":"NO_WALLET"}`, string(raw))

	assert.Equal(t, "Connect wallet", ReasonNoWallet.Message())
	assert.Empty(t, ReasonNone.Message())
	assert.Equal(t, "UNKNOWN", ReasonCode(200).String())
}
