package repo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	rootPathEnvVar  = "COUNCIL_PATH"
	envPrefix       = "COUNCIL"
	cfgFileName     = "council.toml"
	defaultRepoRoot = "~/.council"

	LogsDirName    = "logs"
	StorageDirName = "leveldb"

	TokenContractAddr        = "0x5c6D51ecBA4D8E4F20373e3ce96a62342B125D6d"
	LockingVaultContractAddr = "0x02Bd4A3b1b95b01F2Aa61655415A5d3EAAcaafdD"
	CoreVotingContractAddr   = "0xEaCD577C3F6c44C3ffA398baaD97aE12CDCFed4a"
	AirdropContractAddr      = "0xd04a459FFD3A5E3C93d5cD8BB13d26a9cc2a7ea2"
)

// Repo is a council working directory: council.toml, the vote index and logs.
type Repo struct {
	Config *Config
}

// RootPath picks the repo root: the explicit flag, then COUNCIL_PATH, then ~/.council.
func RootPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(rootPathEnvVar); env != "" {
		return env, nil
	}
	return homedir.Expand(defaultRepoRoot)
}

// Initialized reports whether root already holds a council.toml.
func Initialized(root string) bool {
	_, err := os.Stat(filepath.Join(root, cfgFileName))
	return err == nil
}

// Load reads council.toml under root with COUNCIL_* environment overrides applied.
// A missing file is created from the defaults.
func Load(root string) (*Repo, error) {
	if err := ensureWritable(root); err != nil {
		return nil, err
	}

	r := &Repo{Config: DefaultConfig(root)}
	if !Initialized(root) {
		if err := r.Flush(); err != nil {
			return nil, errors.Wrap(err, "failed to build default config")
		}
	} else if err := decode(r.ConfigPath(), r.Config); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", r.ConfigPath())
	}

	if err := r.Config.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repo) ConfigPath() string {
	return filepath.Join(r.Config.RepoRoot, cfgFileName)
}

// Flush persists the config, folding in any COUNCIL_* environment overrides.
func (r *Repo) Flush() error {
	path := r.ConfigPath()
	if err := save(path, r.Config); err != nil {
		return errors.Wrap(err, "failed to write config")
	}
	// viper only sees env overrides for keys present in the file
	if err := decode(path, r.Config); err != nil {
		return errors.Wrap(err, "failed to apply environment overrides")
	}
	return errors.Wrap(save(path, r.Config), "failed to write config")
}

// ProposalsFile returns the curated proposals file, relative paths are resolved against the repo root.
func (r *Repo) ProposalsFile() (string, error) {
	p, err := homedir.Expand(r.Config.ProposalsPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to expand proposals path")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.Config.RepoRoot, p)
	}
	return p, nil
}

func (r *Repo) StoragePath() string {
	return filepath.Join(r.Config.RepoRoot, StorageDirName)
}

// Encode renders cfg as council.toml content.
func Encode(cfg *Config) (string, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	enc.SetArraysMultiline(true)
	if err := enc.Encode(cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func save(path string, cfg *Config) error {
	raw, err := Encode(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(raw), 0644)
}

func decode(path string, cfg *Config) error {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("toml")
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if err := vp.ReadInConfig(); err != nil {
		return err
	}
	return vp.Unmarshal(cfg)
}

// ensureWritable creates root if needed and fails early when the daemon could not write its index there.
func ensureWritable(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return errors.Wrapf(err, "cannot create repo root %s", root)
	}
	f, err := os.CreateTemp(root, ".write-check-*")
	if err != nil {
		if os.IsPermission(err) {
			return errors.Errorf("%s is not writeable by the current user", root)
		}
		return errors.Wrapf(err, "check writability of %s", root)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
