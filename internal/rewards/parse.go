package rewards

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/entity"
)

// Allocation is one user's entry in a distribution blob.
type Allocation struct {
	Address string
	Amount  *big.Int
}

type blob struct {
	MerkleTree *struct {
		Values []json.RawMessage `json:"values"`
	} `json:"merkleTree"`
}

// ParseDistribution reads the merkle tree values of a distribution blob. Values
// may be wrapped as {"value": [address, amount]} or be bare pairs. Any malformed
// entry rejects the whole blob.
func ParseDistribution(data []byte) ([]Allocation, error) {
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode blob: %w", err)
	}
	if b.MerkleTree == nil {
		return nil, errors.New("blob has no merkleTree")
	}
	if b.MerkleTree.Values == nil {
		return nil, errors.New("merkleTree has no values")
	}

	out := make([]Allocation, 0, len(b.MerkleTree.Values))
	for i, raw := range b.MerkleTree.Values {
		pair, err := valuePair(raw)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		alloc, err := allocation(pair)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out = append(out, alloc)
	}
	return out, nil
}

func valuePair(raw json.RawMessage) ([]json.RawMessage, error) {
	var pair []json.RawMessage
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Value []json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		pair = wrapped.Value
	} else if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, err
	}
	if len(pair) != 2 {
		return nil, fmt.Errorf("want [address, amount], got %d elements", len(pair))
	}
	return pair, nil
}

func allocation(pair []json.RawMessage) (Allocation, error) {
	var address string
	if err := json.Unmarshal(pair[0], &address); err != nil || !common.IsHexAddress(address) {
		return Allocation{}, fmt.Errorf("invalid address %s", pair[0])
	}

	// Amounts are usually strings; plain JSON integers are accepted too.
	text := strings.Trim(strings.TrimSpace(string(pair[1])), `"`)
	amount, ok := new(big.Int).SetString(text, 10)
	if !ok || amount.Sign() < 0 {
		return Allocation{}, fmt.Errorf("invalid amount %s", pair[1])
	}
	return Allocation{Address: entity.Addr(common.HexToAddress(address)), Amount: amount}, nil
}
