package core

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

type MerkleLeaf struct {
	Address string `json:"address"`
	// raw token amount as a base 10 integer string
	Value string `json:"value"`
}

// MerkleInfo is the airdrop entry of one account.
type MerkleInfo struct {
	Leaf  MerkleLeaf `json:"leaf"`
	Proof []string   `json:"proof"`
}

// LeafHash returns keccak256(abi.encodePacked(address, uint256 value)).
func (l MerkleLeaf) LeafHash() (common.Hash, error) {
	if !common.IsHexAddress(l.Address) {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidAccount, l.Address)
	}
	v, ok := new(big.Int).SetString(l.Value, 10)
	if !ok || v.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("invalid leaf value %q", l.Value)
	}
	return crypto.Keccak256Hash(common.HexToAddress(l.Address).Bytes(), math.U256Bytes(v)), nil
}

// Verify checks the proof against root, hashing sibling pairs in sorted order.
func (m MerkleInfo) Verify(root common.Hash) (bool, error) {
	computed, err := m.Leaf.LeafHash()
	if err != nil {
		return false, err
	}
	for _, p := range m.Proof {
		sibling := common.HexToHash(p)
		if bytes.Compare(computed.Bytes(), sibling.Bytes()) <= 0 {
			computed = crypto.Keccak256Hash(computed.Bytes(), sibling.Bytes())
		} else {
			computed = crypto.Keccak256Hash(sibling.Bytes(), computed.Bytes())
		}
	}
	return computed == root, nil
}

// Claimable is the part of the grant not yet claimed, never negative.
func Claimable(grant, claimed decimal.Decimal) decimal.Decimal {
	left := grant.Sub(claimed)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}
