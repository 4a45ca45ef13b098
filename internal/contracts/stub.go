package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/model"
)

// Stub is a Reader backed by fixed maps. Its zero value reverts every call,
// which is what offline replay uses.
type Stub struct {
	Tokens             map[common.Address]model.TokenMeta
	PoolIDs            map[common.Address]common.Hash
	SwapFees           map[common.Address]*big.Int
	Owners             map[common.Address]common.Address
	Weights            map[common.Address][]*big.Int
	Amps               map[common.Address][2]*big.Int
	FeeCaches          map[common.Address]map[int]*big.Int
	PoolTokenLists     map[common.Hash][]common.Address
	AssetManagers      map[common.Address]common.Address
	FeesCollector      *common.Address
	LinearIndexes      map[common.Address][2]int
	Targets            map[common.Address][2]*big.Int
	Gyro2Params        map[common.Address][2]*big.Int
	Gyro3Params        map[common.Address]*big.Int
	GyroE              map[common.Address]GyroEParams
	Assimilators       map[common.Address]map[common.Address]common.Address
	AssimilatorOracles map[common.Address]common.Address
	OracleAggregators  map[common.Address]common.Address
	OracleDecimals     map[common.Address]uint8
}

var _ Reader = (*Stub)(nil)

func (s *Stub) TokenMeta(_ context.Context, token common.Address) model.TokenMeta {
	if meta, ok := s.Tokens[token]; ok {
		return meta
	}
	return model.TokenMeta{Address: token.Hex()}
}

func (s *Stub) PoolID(_ context.Context, pool common.Address) (common.Hash, bool) {
	id, ok := s.PoolIDs[pool]
	return id, ok
}

func (s *Stub) SwapFeePercentage(_ context.Context, pool common.Address) (*big.Int, bool) {
	v, ok := s.SwapFees[pool]
	return v, ok
}

func (s *Stub) Owner(_ context.Context, pool common.Address) (common.Address, bool) {
	v, ok := s.Owners[pool]
	return v, ok
}

func (s *Stub) NormalizedWeights(_ context.Context, pool common.Address) ([]*big.Int, bool) {
	v, ok := s.Weights[pool]
	return v, ok
}

func (s *Stub) AmplificationParameter(_ context.Context, pool common.Address) (*big.Int, *big.Int, bool) {
	v, ok := s.Amps[pool]
	if !ok {
		return nil, nil, false
	}
	return v[0], v[1], true
}

func (s *Stub) ProtocolFeePercentageCache(_ context.Context, pool common.Address, feeType int) (*big.Int, bool) {
	v, ok := s.FeeCaches[pool][feeType]
	return v, ok
}

func (s *Stub) PoolTokens(_ context.Context, poolID common.Hash) ([]common.Address, []*big.Int, bool) {
	tokens, ok := s.PoolTokenLists[poolID]
	if !ok {
		return nil, nil, false
	}
	balances := make([]*big.Int, len(tokens))
	for i := range balances {
		balances[i] = new(big.Int)
	}
	return tokens, balances, true
}

func (s *Stub) AssetManager(_ context.Context, _ common.Hash, token common.Address) (common.Address, bool) {
	v, ok := s.AssetManagers[token]
	return v, ok
}

func (s *Stub) ProtocolFeesCollector(context.Context) (common.Address, bool) {
	if s.FeesCollector == nil {
		return common.Address{}, false
	}
	return *s.FeesCollector, true
}

func (s *Stub) LinearIndices(_ context.Context, pool common.Address) (int, int, bool) {
	v, ok := s.LinearIndexes[pool]
	return v[0], v[1], ok
}

func (s *Stub) LinearTargets(_ context.Context, pool common.Address) (*big.Int, *big.Int, bool) {
	v, ok := s.Targets[pool]
	return v[0], v[1], ok
}

func (s *Stub) Gyro2SqrtParameters(_ context.Context, pool common.Address) (*big.Int, *big.Int, bool) {
	v, ok := s.Gyro2Params[pool]
	return v[0], v[1], ok
}

func (s *Stub) Gyro3Root3Alpha(_ context.Context, pool common.Address) (*big.Int, bool) {
	v, ok := s.Gyro3Params[pool]
	return v, ok
}

func (s *Stub) GyroEParams(_ context.Context, pool common.Address) (GyroEParams, bool) {
	v, ok := s.GyroE[pool]
	return v, ok
}

func (s *Stub) FXAssimilator(_ context.Context, pool, token common.Address) (common.Address, bool) {
	v, ok := s.Assimilators[pool][token]
	return v, ok
}

func (s *Stub) FXOracle(_ context.Context, assimilator common.Address) (common.Address, bool) {
	v, ok := s.AssimilatorOracles[assimilator]
	return v, ok
}

func (s *Stub) FXAggregator(_ context.Context, oracle common.Address) (common.Address, bool) {
	v, ok := s.OracleAggregators[oracle]
	return v, ok
}

func (s *Stub) FXOracleDecimals(_ context.Context, oracle common.Address) (uint8, bool) {
	v, ok := s.OracleDecimals[oracle]
	return v, ok
}
