package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigValid(t *testing.T) {
	c := DefaultConfig(t.TempDir())
	assert.Nil(t, c.Validate())
	assert.Equal(t, int32(18), c.Contracts.Decimals)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		errMsg string
	}{
		{
			name:   "empty dial url",
			modify: func(c *Config) { c.DialUrl = "" },
			errMsg: "dial_url is empty",
		},
		{
			name:   "zero poll interval",
			modify: func(c *Config) { c.PollInterval = 0 },
			errMsg: "poll_interval must be positive",
		},
		{
			name:   "bad vault address",
			modify: func(c *Config) { c.Contracts.LockingVault = "0x123" },
			errMsg: "contracts.locking_vault is not a hex address",
		},
		{
			name:   "bad airdrop address",
			modify: func(c *Config) { c.Contracts.Airdrop = "nope" },
			errMsg: "contracts.airdrop is not a hex address",
		},
		{
			name:   "decimals out of range",
			modify: func(c *Config) { c.Contracts.Decimals = 40 },
			errMsg: "contracts.decimals out of range",
		},
		{
			name:   "no airdrop is fine",
			modify: func(c *Config) { c.Contracts.Airdrop = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig(t.TempDir())
			tt.modify(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.Nil(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestEncode(t *testing.T) {
	c := DefaultConfig("/tmp/council")
	c.PollInterval = 30 * time.Second

	str, err := Encode(c)
	assert.Nil(t, err)
	assert.Contains(t, str, "dial_url")
	assert.Contains(t, str, "ws://localhost:8546")
	assert.Contains(t, str, "[contracts]")
	assert.Contains(t, str, CoreVotingContractAddr)
	assert.NotContains(t, str, "/tmp/council")
}
