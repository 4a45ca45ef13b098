package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"vaultScope/internal/model"
)

// Protocol fee cache types, as passed to getProtocolFeePercentageCache.
const (
	FeeTypeSwap  = 0
	FeeTypeYield = 1
	FeeTypeAum   = 2
)

// GyroEParams holds getECLPParams output. The first five are 18-decimal fixed point,
// the derived values are 38-decimal.
type GyroEParams struct {
	Alpha, Beta, C, S, Lambda *big.Int
	TauAlphaX, TauAlphaY      *big.Int
	TauBetaX, TauBetaY        *big.Int
	U, V, W, Z, DSq           *big.Int
}

// Reader is the read-only contract oracle. Every method reports ok=false when the
// call reverted or the contract does not implement it; it never returns an error.
type Reader interface {
	TokenMeta(ctx context.Context, token common.Address) model.TokenMeta

	PoolID(ctx context.Context, pool common.Address) (common.Hash, bool)
	SwapFeePercentage(ctx context.Context, pool common.Address) (*big.Int, bool)
	Owner(ctx context.Context, pool common.Address) (common.Address, bool)
	NormalizedWeights(ctx context.Context, pool common.Address) ([]*big.Int, bool)
	AmplificationParameter(ctx context.Context, pool common.Address) (value, precision *big.Int, ok bool)
	ProtocolFeePercentageCache(ctx context.Context, pool common.Address, feeType int) (*big.Int, bool)

	PoolTokens(ctx context.Context, poolID common.Hash) ([]common.Address, []*big.Int, bool)
	AssetManager(ctx context.Context, poolID common.Hash, token common.Address) (common.Address, bool)
	ProtocolFeesCollector(ctx context.Context) (common.Address, bool)

	LinearIndices(ctx context.Context, pool common.Address) (main, wrapped int, ok bool)
	LinearTargets(ctx context.Context, pool common.Address) (lower, upper *big.Int, ok bool)

	Gyro2SqrtParameters(ctx context.Context, pool common.Address) (sqrtAlpha, sqrtBeta *big.Int, ok bool)
	Gyro3Root3Alpha(ctx context.Context, pool common.Address) (*big.Int, bool)
	GyroEParams(ctx context.Context, pool common.Address) (GyroEParams, bool)

	FXAssimilator(ctx context.Context, pool, token common.Address) (common.Address, bool)
	FXOracle(ctx context.Context, assimilator common.Address) (common.Address, bool)
	FXAggregator(ctx context.Context, oracle common.Address) (common.Address, bool)
	FXOracleDecimals(ctx context.Context, oracle common.Address) (uint8, bool)
}

// ContractCaller performs eth_call. chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type blockKey struct{}

// WithBlockNumber pins reads made with ctx to the block being processed.
func WithBlockNumber(ctx context.Context, block uint64) context.Context {
	return context.WithValue(ctx, blockKey{}, block)
}

func blockFrom(ctx context.Context) *big.Int {
	if v, ok := ctx.Value(blockKey{}).(uint64); ok && v > 0 {
		return new(big.Int).SetUint64(v)
	}
	return nil
}

// RPCReader implements Reader with eth_call against a node.
type RPCReader struct {
	caller ContractCaller
	vault  common.Address
	logger *zap.Logger
	tokens *xsync.MapOf[common.Address, model.TokenMeta]
}

// NewRPCReader builds a reader for the given vault deployment.
func NewRPCReader(caller ContractCaller, vault common.Address, logger *zap.Logger) *RPCReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCReader{
		caller: caller,
		vault:  vault,
		logger: logger,
		tokens: xsync.NewMapOf[common.Address, model.TokenMeta](),
	}
}

func (r *RPCReader) call(ctx context.Context, to common.Address, load func() (abi.ABI, error), method string, args ...interface{}) ([]interface{}, bool) {
	parsed, err := load()
	if err != nil {
		r.logger.Error("abi parse failed", zap.String("method", method), zap.Error(err))
		return nil, false
	}
	values, err := callMethod(ctx, r.caller, to, parsed, method, blockFrom(ctx), args...)
	if err != nil {
		r.logger.Debug("contract call reverted", zap.String("to", to.Hex()), zap.String("method", method), zap.Error(err))
		return nil, false
	}
	return values, true
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return values, nil
}

// TokenMeta reads decimals, symbol and name, each guarded on its own.
// Symbol and name fall back to the bytes32 variant.
func (r *RPCReader) TokenMeta(ctx context.Context, token common.Address) model.TokenMeta {
	if meta, ok := r.tokens.Load(token); ok {
		return meta
	}
	meta := model.TokenMeta{Address: token.Hex()}

	if values, ok := r.call(ctx, token, erc20ABIStringInstance, "decimals"); ok {
		if decimals, err := asUint8(values[0]); err == nil {
			meta.Decimals = decimals
			meta.HasDecimals = true
		}
	}
	if values, ok := r.call(ctx, token, erc20ABIStringInstance, "symbol"); ok {
		meta.Symbol, meta.HasSymbol = values[0].(string)
	} else if values, ok := r.call(ctx, token, erc20ABIBytes32Instance, "symbol"); ok {
		meta.Symbol, meta.HasSymbol = bytes32ToString(values[0])
	}
	if values, ok := r.call(ctx, token, erc20ABIStringInstance, "name"); ok {
		meta.Name, meta.HasName = values[0].(string)
	} else if values, ok := r.call(ctx, token, erc20ABIBytes32Instance, "name"); ok {
		meta.Name, meta.HasName = bytes32ToString(values[0])
	}

	r.tokens.Store(token, meta)
	return meta
}

func (r *RPCReader) PoolID(ctx context.Context, pool common.Address) (common.Hash, bool) {
	values, ok := r.call(ctx, pool, PoolABI, "getPoolId")
	if !ok {
		return common.Hash{}, false
	}
	id, err := asHash(values[0])
	return id, err == nil
}

func (r *RPCReader) callUint(ctx context.Context, to common.Address, load func() (abi.ABI, error), method string, args ...interface{}) (*big.Int, bool) {
	values, ok := r.call(ctx, to, load, method, args...)
	if !ok {
		return nil, false
	}
	v, err := asBigInt(values[0])
	return v, err == nil
}

func (r *RPCReader) callAddress(ctx context.Context, to common.Address, load func() (abi.ABI, error), method string, args ...interface{}) (common.Address, bool) {
	values, ok := r.call(ctx, to, load, method, args...)
	if !ok {
		return common.Address{}, false
	}
	v, err := asAddress(values[0])
	return v, err == nil
}

func (r *RPCReader) SwapFeePercentage(ctx context.Context, pool common.Address) (*big.Int, bool) {
	return r.callUint(ctx, pool, PoolABI, "getSwapFeePercentage")
}

func (r *RPCReader) Owner(ctx context.Context, pool common.Address) (common.Address, bool) {
	return r.callAddress(ctx, pool, PoolABI, "getOwner")
}

func (r *RPCReader) NormalizedWeights(ctx context.Context, pool common.Address) ([]*big.Int, bool) {
	values, ok := r.call(ctx, pool, PoolABI, "getNormalizedWeights")
	if !ok {
		return nil, false
	}
	weights, err := asBigInts(values[0])
	return weights, err == nil
}

func (r *RPCReader) AmplificationParameter(ctx context.Context, pool common.Address) (*big.Int, *big.Int, bool) {
	values, ok := r.call(ctx, pool, PoolABI, "getAmplificationParameter")
	if !ok || len(values) < 3 {
		return nil, nil, false
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, false
	}
	precision, err := asBigInt(values[2])
	if err != nil {
		return nil, nil, false
	}
	return value, precision, true
}

func (r *RPCReader) ProtocolFeePercentageCache(ctx context.Context, pool common.Address, feeType int) (*big.Int, bool) {
	return r.callUint(ctx, pool, PoolABI, "getProtocolFeePercentageCache", big.NewInt(int64(feeType)))
}

func (r *RPCReader) PoolTokens(ctx context.Context, poolID common.Hash) ([]common.Address, []*big.Int, bool) {
	values, ok := r.call(ctx, r.vault, VaultABI, "getPoolTokens", [32]byte(poolID))
	if !ok || len(values) < 2 {
		return nil, nil, false
	}
	tokens, err := asAddresses(values[0])
	if err != nil {
		return nil, nil, false
	}
	balances, err := asBigInts(values[1])
	if err != nil {
		return nil, nil, false
	}
	return tokens, balances, true
}

func (r *RPCReader) AssetManager(ctx context.Context, poolID common.Hash, token common.Address) (common.Address, bool) {
	values, ok := r.call(ctx, r.vault, VaultABI, "getPoolTokenInfo", [32]byte(poolID), token)
	if !ok || len(values) < 4 {
		return common.Address{}, false
	}
	manager, err := asAddress(values[3])
	return manager, err == nil
}

func (r *RPCReader) ProtocolFeesCollector(ctx context.Context) (common.Address, bool) {
	return r.callAddress(ctx, r.vault, VaultABI, "getProtocolFeesCollector")
}

func (r *RPCReader) LinearIndices(ctx context.Context, pool common.Address) (int, int, bool) {
	main, ok := r.callUint(ctx, pool, PoolABI, "getMainIndex")
	if !ok {
		return 0, 0, false
	}
	wrapped, ok := r.callUint(ctx, pool, PoolABI, "getWrappedIndex")
	if !ok {
		return 0, 0, false
	}
	return int(main.Int64()), int(wrapped.Int64()), true
}

func (r *RPCReader) LinearTargets(ctx context.Context, pool common.Address) (*big.Int, *big.Int, bool) {
	values, ok := r.call(ctx, pool, PoolABI, "getTargets")
	if !ok || len(values) < 2 {
		return nil, nil, false
	}
	lower, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, false
	}
	upper, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, false
	}
	return lower, upper, true
}

func (r *RPCReader) Gyro2SqrtParameters(ctx context.Context, pool common.Address) (*big.Int, *big.Int, bool) {
	values, ok := r.call(ctx, pool, PoolABI, "getSqrtParameters")
	if !ok {
		return nil, nil, false
	}
	params, err := asBigInts(values[0])
	if err != nil || len(params) != 2 {
		return nil, nil, false
	}
	return params[0], params[1], true
}

func (r *RPCReader) Gyro3Root3Alpha(ctx context.Context, pool common.Address) (*big.Int, bool) {
	return r.callUint(ctx, pool, PoolABI, "getRoot3Alpha")
}

func (r *RPCReader) GyroEParams(ctx context.Context, pool common.Address) (GyroEParams, bool) {
	values, ok := r.call(ctx, pool, PoolABI, "getECLPParams")
	if !ok || len(values) != 14 {
		return GyroEParams{}, false
	}
	ints := make([]*big.Int, len(values))
	for i, v := range values {
		n, err := asBigInt(v)
		if err != nil {
			return GyroEParams{}, false
		}
		ints[i] = n
	}
	return GyroEParams{
		Alpha: ints[0], Beta: ints[1], C: ints[2], S: ints[3], Lambda: ints[4],
		TauAlphaX: ints[5], TauAlphaY: ints[6], TauBetaX: ints[7], TauBetaY: ints[8],
		U: ints[9], V: ints[10], W: ints[11], Z: ints[12], DSq: ints[13],
	}, true
}

func (r *RPCReader) FXAssimilator(ctx context.Context, pool, token common.Address) (common.Address, bool) {
	return r.callAddress(ctx, pool, PoolABI, "assimilator", token)
}

func (r *RPCReader) FXOracle(ctx context.Context, assimilator common.Address) (common.Address, bool) {
	return r.callAddress(ctx, assimilator, FXOracleABI, "oracle")
}

func (r *RPCReader) FXAggregator(ctx context.Context, oracle common.Address) (common.Address, bool) {
	return r.callAddress(ctx, oracle, FXOracleABI, "aggregator")
}

func (r *RPCReader) FXOracleDecimals(ctx context.Context, oracle common.Address) (uint8, bool) {
	values, ok := r.call(ctx, oracle, FXOracleABI, "decimals")
	if !ok {
		return 0, false
	}
	d, err := asUint8(values[0])
	return d, err == nil
}

var _ Reader = (*RPCReader)(nil)
