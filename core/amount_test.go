package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "0", false},
		{"   ", "0", false},
		{"abc", "0", false},
		{"1.5", "1.5", true},
		{" 2 ", "2", true},
		{"-3", "-3", true},
		{"1e3", "0", false},
		{"1E-2", "0", false},
		{"123456789012345678901234567890.123456789012345678", "123456789012345678901234567890.123456789012345678", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestIsPositive(t *testing.T) {
	assert.True(t, IsPositive("0.000000000000000001"))
	assert.False(t, IsPositive("0"))
	assert.False(t, IsPositive("0.0"))
	assert.False(t, IsPositive("-1"))
	assert.False(t, IsPositive(""))
	assert.False(t, IsPositive("1e"))
}

func TestMustParseAmountPanics(t *testing.T) {
	assert.Panics(t, func() { MustParseAmount("x") })
	assert.Equal(t, "7", MustParseAmount("7").String())
}

func TestWeiConversion(t *testing.T) {
	raw, ok := new(big.Int).SetString("1234500000000000000000", 10)
	require.True(t, ok)

	d := FromWei(raw, DefaultDecimals)
	assert.Equal(t, "1234.5", d.String())
	assert.Equal(t, 0, raw.Cmp(ToWei(d, DefaultDecimals)))

	assert.True(t, FromWei(nil, DefaultDecimals).IsZero())

	// digits past the token precision are dropped
	assert.Equal(t, "1", ToWei(MustParseAmount("0.0000000000000000019"), DefaultDecimals).String())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.23", FormatAmount(MustParseAmount("1.2399"), 2))
	assert.Equal(t, "1", FormatAmount(MustParseAmount("1.000"), 2))
	assert.Equal(t, "0", FormatAmount(MustParseAmount("0.001"), 2))
}
