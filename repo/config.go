package repo

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type Config struct {
	RepoRoot      string        `mapstructure:"-" toml:"-"`
	DialUrl       string        `mapstructure:"dial_url" toml:"dial_url"`
	SnapshotUrl   string        `mapstructure:"snapshot_url" toml:"snapshot_url"`
	SnapshotSpace string        `mapstructure:"snapshot_space" toml:"snapshot_space"`
	ProposalsPath string        `mapstructure:"proposals_path" toml:"proposals_path"`
	PollInterval  time.Duration `mapstructure:"poll_interval" toml:"poll_interval"`
	HTTP          HTTP          `mapstructure:"http" toml:"http"`
	Contracts     Contracts     `mapstructure:"contracts" toml:"contracts"`
	Indexer       Indexer       `mapstructure:"indexer" toml:"indexer"`
	Log           Log           `mapstructure:"log" toml:"log"`
}

type HTTP struct {
	Enable bool   `mapstructure:"enable" toml:"enable"`
	Listen string `mapstructure:"listen" toml:"listen"`
}

type Contracts struct {
	Token        string `mapstructure:"token" toml:"token"`
	LockingVault string `mapstructure:"locking_vault" toml:"locking_vault"`
	CoreVoting   string `mapstructure:"core_voting" toml:"core_voting"`
	Airdrop      string `mapstructure:"airdrop" toml:"airdrop"`
	// token decimals, 18 for ERC20 governance tokens
	Decimals int32 `mapstructure:"decimals" toml:"decimals"`
}

type Indexer struct {
	// beginning of the vote log range, usually the voting contract deployment block
	FromBlock uint64 `mapstructure:"from_block" toml:"from_block"`
	// max block span per history query, some rpc providers reject larger ranges
	BatchSize uint64 `mapstructure:"batch_size" toml:"batch_size"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot:      repoRoot,
		DialUrl:       "ws://localhost:8546",
		SnapshotUrl:   "https://hub.snapshot.org/graphql",
		SnapshotSpace: "elfi.eth",
		ProposalsPath: "proposals.json",
		PollInterval:  12 * time.Second,
		HTTP: HTTP{
			Enable: true,
			Listen: "127.0.0.1:9980",
		},
		Contracts: Contracts{
			Token:        TokenContractAddr,
			LockingVault: LockingVaultContractAddr,
			CoreVoting:   CoreVotingContractAddr,
			Airdrop:      AirdropContractAddr,
			Decimals:     18,
		},
		Indexer: Indexer{
			FromBlock: 14496292,
			BatchSize: 5000,
		},
		Log: Log{
			Level:        "info",
			Filename:     "council.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
	}
}

// Validate rejects configs the portal cannot start with.
func (c *Config) Validate() error {
	if c.DialUrl == "" {
		return errors.New("dial_url is empty")
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.Contracts.Decimals < 0 || c.Contracts.Decimals > 36 {
		return errors.Errorf("contracts.decimals out of range: %d", c.Contracts.Decimals)
	}
	for name, addr := range map[string]string{
		"token":         c.Contracts.Token,
		"locking_vault": c.Contracts.LockingVault,
		"core_voting":   c.Contracts.CoreVoting,
	} {
		if !common.IsHexAddress(addr) {
			return errors.Errorf("contracts.%s is not a hex address: %q", name, addr)
		}
	}
	// airdrop is optional
	if c.Contracts.Airdrop != "" && !common.IsHexAddress(c.Contracts.Airdrop) {
		return errors.Errorf("contracts.airdrop is not a hex address: %q", c.Contracts.Airdrop)
	}
	return nil
}
