package core

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/samber/lo"
)

// Catalogue is the curated list of proposals deemed safe to vote on. Only proposals listed here
// are linked with their snapshot metadata.
type Catalogue struct {
	Version       string     `json:"version"`
	SnapshotSpace string     `json:"snapshotSpace"`
	Proposals     []Proposal `json:"proposals"`
}

func LoadCatalogue(path string) (*Catalogue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proposals file: %w", err)
	}
	c := &Catalogue{}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("decode proposals file %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("proposals file %s: %w", path, err)
	}
	return c, nil
}

func (c *Catalogue) validate() error {
	seen := make(map[string]struct{}, len(c.Proposals))
	for _, p := range c.Proposals {
		if p.ProposalID == "" {
			return fmt.Errorf("proposal with snapshot id %q has no proposal id", p.SnapshotID)
		}
		if id, ok := new(big.Int).SetString(p.ProposalID, 10); !ok || id.Sign() < 0 {
			return fmt.Errorf("proposal id %q is not an unsigned integer", p.ProposalID)
		}
		if _, ok := seen[p.ProposalID]; ok {
			return fmt.Errorf("duplicate proposal id %s", p.ProposalID)
		}
		seen[p.ProposalID] = struct{}{}
		if p.Quorum.IsNegative() {
			return fmt.Errorf("proposal %s has negative quorum", p.ProposalID)
		}
		if p.Expiration < p.Created {
			return fmt.Errorf("proposal %s expires before it is created", p.ProposalID)
		}
	}
	return nil
}

func (c *Catalogue) Find(proposalID string) (Proposal, bool) {
	return lo.Find(c.Proposals, func(p Proposal) bool {
		return p.ProposalID == proposalID
	})
}

func (c *Catalogue) SnapshotIDs() []string {
	return lo.Uniq(lo.FilterMap(c.Proposals, func(p Proposal, _ int) (string, bool) {
		return p.SnapshotID, p.SnapshotID != ""
	}))
}

func ProposalsBySnapshotID(proposals []Proposal) map[string]Proposal {
	return lo.KeyBy(proposals, func(p Proposal) string {
		return p.SnapshotID
	})
}

type Tab string

const (
	TabActive Tab = "active"
	TabPast   Tab = "past"
)

func ParseTab(s string) (Tab, bool) {
	switch Tab(s) {
	case TabActive, "":
		return TabActive, true
	case TabPast:
		return TabPast, true
	}
	return "", false
}

func (t Tab) includes(state SnapshotState) bool {
	switch t {
	case TabActive:
		return state == SnapshotActive || state == SnapshotPending
	case TabPast:
		return state == SnapshotClosed
	}
	return false
}

// FilterByTab returns the on-chain proposals for the snapshot proposals shown on tab, keeping
// the snapshot order. Snapshot proposals without a curated counterpart are dropped.
func FilterByTab(tab Tab, snapshots []SnapshotProposal, bySnapshotID map[string]Proposal) []Proposal {
	return lo.FilterMap(snapshots, func(s SnapshotProposal, _ int) (Proposal, bool) {
		if !tab.includes(s.State) {
			return Proposal{}, false
		}
		p, ok := bySnapshotID[s.ID]
		return p, ok
	})
}
