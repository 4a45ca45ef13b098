package contracts

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	responses map[string][]byte
	blocks    []*big.Int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.blocks = append(f.blocks, block)
	key := msg.To.Hex() + common.Bytes2Hex(msg.Data[:4])
	resp, ok := f.responses[key]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func (f *fakeCaller) set(t *testing.T, to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	f.responses[to.Hex()+common.Bytes2Hex(parsed.Methods[method].ID)] = out
}

func TestRPCReaderPoolViews(t *testing.T) {
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	poolABI, err := PoolABI()
	require.NoError(t, err)

	caller := &fakeCaller{responses: map[string][]byte{}}
	caller.set(t, pool, poolABI, "getNormalizedWeights", []*big.Int{big.NewInt(6e17), big.NewInt(4e17)})
	caller.set(t, pool, poolABI, "getAmplificationParameter", big.NewInt(200000), false, big.NewInt(1000))
	caller.set(t, pool, poolABI, "getSqrtParameters", [2]*big.Int{big.NewInt(9e17), big.NewInt(11e17)})

	reader := NewRPCReader(caller, vaultAddress, nil)
	ctx := WithBlockNumber(context.Background(), 15000000)

	weights, ok := reader.NormalizedWeights(ctx, pool)
	require.True(t, ok)
	require.Len(t, weights, 2)
	require.Equal(t, int64(6e17), weights[0].Int64())

	value, precision, ok := reader.AmplificationParameter(ctx, pool)
	require.True(t, ok)
	require.Equal(t, int64(200000), value.Int64())
	require.Equal(t, int64(1000), precision.Int64())

	alpha, beta, ok := reader.Gyro2SqrtParameters(ctx, pool)
	require.True(t, ok)
	require.Equal(t, int64(9e17), alpha.Int64())
	require.Equal(t, int64(11e17), beta.Int64())

	for _, block := range caller.blocks {
		require.NotNil(t, block)
		require.Equal(t, uint64(15000000), block.Uint64())
	}
}

func TestRPCReaderRevertIsNotOK(t *testing.T) {
	pool := common.HexToAddress("0x2222222222222222222222222222222222222222")
	reader := NewRPCReader(&fakeCaller{responses: map[string][]byte{}}, vaultAddress, nil)

	_, ok := reader.SwapFeePercentage(context.Background(), pool)
	require.False(t, ok)
	_, _, ok = reader.LinearIndices(context.Background(), pool)
	require.False(t, ok)
	_, ok = reader.GyroEParams(context.Background(), pool)
	require.False(t, ok)
}

func TestRPCReaderTokenMetaFallsBackToBytes32(t *testing.T) {
	token := common.HexToAddress("0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2")
	stringABI, err := erc20ABIStringInstance()
	require.NoError(t, err)
	bytesABI, err := erc20ABIBytes32Instance()
	require.NoError(t, err)

	var symbol [32]byte
	copy(symbol[:], "MKR")
	caller := &fakeCaller{responses: map[string][]byte{}}
	caller.set(t, token, stringABI, "decimals", uint8(18))
	caller.set(t, token, bytesABI, "symbol", symbol)

	reader := NewRPCReader(caller, vaultAddress, nil)
	meta := reader.TokenMeta(context.Background(), token)
	require.True(t, meta.HasDecimals)
	require.Equal(t, uint8(18), meta.Decimals)
	require.True(t, meta.HasSymbol)
	require.Equal(t, "MKR", meta.Symbol)
	require.False(t, meta.HasName)

	calls := len(caller.blocks)
	reader.TokenMeta(context.Background(), token)
	require.Equal(t, calls, len(caller.blocks), "token meta should be cached")
}
