package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const vaultABIJSON = `[
  {"anonymous": false, "name": "Swap", "type": "event", "inputs": [
    {"indexed": true, "name": "poolId", "type": "bytes32"},
    {"indexed": true, "name": "tokenIn", "type": "address"},
    {"indexed": true, "name": "tokenOut", "type": "address"},
    {"indexed": false, "name": "amountIn", "type": "uint256"},
    {"indexed": false, "name": "amountOut", "type": "uint256"}]},
  {"anonymous": false, "name": "PoolBalanceChanged", "type": "event", "inputs": [
    {"indexed": true, "name": "poolId", "type": "bytes32"},
    {"indexed": true, "name": "liquidityProvider", "type": "address"},
    {"indexed": false, "name": "tokens", "type": "address[]"},
    {"indexed": false, "name": "deltas", "type": "int256[]"},
    {"indexed": false, "name": "protocolFeeAmounts", "type": "uint256[]"}]},
  {"anonymous": false, "name": "PoolBalanceManaged", "type": "event", "inputs": [
    {"indexed": true, "name": "poolId", "type": "bytes32"},
    {"indexed": true, "name": "assetManager", "type": "address"},
    {"indexed": true, "name": "token", "type": "address"},
    {"indexed": false, "name": "cashDelta", "type": "int256"},
    {"indexed": false, "name": "managedDelta", "type": "int256"}]},
  {"anonymous": false, "name": "InternalBalanceChanged", "type": "event", "inputs": [
    {"indexed": true, "name": "user", "type": "address"},
    {"indexed": true, "name": "token", "type": "address"},
    {"indexed": false, "name": "delta", "type": "int256"}]},
  {"name": "getPoolTokens", "type": "function", "stateMutability": "view",
   "inputs": [{"name": "poolId", "type": "bytes32"}],
   "outputs": [{"name": "tokens", "type": "address[]"}, {"name": "balances", "type": "uint256[]"}, {"name": "lastChangeBlock", "type": "uint256"}]},
  {"name": "getPoolTokenInfo", "type": "function", "stateMutability": "view",
   "inputs": [{"name": "poolId", "type": "bytes32"}, {"name": "token", "type": "address"}],
   "outputs": [{"name": "cash", "type": "uint256"}, {"name": "managed", "type": "uint256"}, {"name": "lastChangeBlock", "type": "uint256"}, {"name": "assetManager", "type": "address"}]},
  {"name": "getProtocolFeesCollector", "type": "function", "stateMutability": "view",
   "inputs": [], "outputs": [{"name": "", "type": "address"}]}
]`

const factoryABIJSON = `[
  {"anonymous": false, "name": "PoolCreated", "type": "event", "inputs": [
    {"indexed": true, "name": "pool", "type": "address"}]},
  {"anonymous": false, "name": "NewFXPool", "type": "event", "inputs": [
    {"indexed": true, "name": "caller", "type": "address"},
    {"indexed": true, "name": "id", "type": "bytes32"},
    {"indexed": true, "name": "fxpool", "type": "address"}]}
]`

// poolABIJSON covers events and views shared by every pool family. getECLPParams
// returns two static tuples, which encode as fourteen consecutive int256 words.
const poolABIJSON = `[
  {"anonymous": false, "name": "Transfer", "type": "event", "inputs": [
    {"indexed": true, "name": "from", "type": "address"},
    {"indexed": true, "name": "to", "type": "address"},
    {"indexed": false, "name": "value", "type": "uint256"}]},
  {"anonymous": false, "name": "AmpUpdateStarted", "type": "event", "inputs": [
    {"indexed": false, "name": "startValue", "type": "uint256"},
    {"indexed": false, "name": "endValue", "type": "uint256"},
    {"indexed": false, "name": "startTime", "type": "uint256"},
    {"indexed": false, "name": "endTime", "type": "uint256"}]},
  {"anonymous": false, "name": "AmpUpdateStopped", "type": "event", "inputs": [
    {"indexed": false, "name": "currentValue", "type": "uint256"}]},
  {"anonymous": false, "name": "SwapFeePercentageChanged", "type": "event", "inputs": [
    {"indexed": false, "name": "swapFeePercentage", "type": "uint256"}]},
  {"anonymous": false, "name": "GradualSwapFeeUpdateScheduled", "type": "event", "inputs": [
    {"indexed": false, "name": "startTime", "type": "uint256"},
    {"indexed": false, "name": "endTime", "type": "uint256"},
    {"indexed": false, "name": "startSwapFeePercentage", "type": "uint256"},
    {"indexed": false, "name": "endSwapFeePercentage", "type": "uint256"}]},
  {"anonymous": false, "name": "GradualWeightUpdateScheduled", "type": "event", "inputs": [
    {"indexed": false, "name": "startTime", "type": "uint256"},
    {"indexed": false, "name": "endTime", "type": "uint256"},
    {"indexed": false, "name": "startWeights", "type": "uint256[]"},
    {"indexed": false, "name": "endWeights", "type": "uint256[]"}]},
  {"anonymous": false, "name": "PriceRateProviderSet", "type": "event", "inputs": [
    {"indexed": true, "name": "token", "type": "address"},
    {"indexed": true, "name": "provider", "type": "address"},
    {"indexed": false, "name": "cacheDuration", "type": "uint256"}]},
  {"anonymous": false, "name": "TokenRateProviderSet", "type": "event", "inputs": [
    {"indexed": true, "name": "tokenIndex", "type": "uint256"},
    {"indexed": true, "name": "provider", "type": "address"},
    {"indexed": false, "name": "cacheDuration", "type": "uint256"}]},
  {"anonymous": false, "name": "PriceRateCacheUpdated", "type": "event", "inputs": [
    {"indexed": true, "name": "token", "type": "address"},
    {"indexed": false, "name": "rate", "type": "uint256"}]},
  {"anonymous": false, "name": "TokenRateCacheUpdated", "type": "event", "inputs": [
    {"indexed": true, "name": "tokenIndex", "type": "uint256"},
    {"indexed": false, "name": "rate", "type": "uint256"}]},
  {"anonymous": false, "name": "TargetsSet", "type": "event", "inputs": [
    {"indexed": true, "name": "token", "type": "address"},
    {"indexed": false, "name": "lowerTarget", "type": "uint256"},
    {"indexed": false, "name": "upperTarget", "type": "uint256"}]},
  {"anonymous": false, "name": "SwapEnabledSet", "type": "event", "inputs": [
    {"indexed": false, "name": "swapEnabled", "type": "bool"}]},
  {"anonymous": false, "name": "PausedStateChanged", "type": "event", "inputs": [
    {"indexed": false, "name": "paused", "type": "bool"}]},
  {"anonymous": false, "name": "RecoveryModeStateChanged", "type": "event", "inputs": [
    {"indexed": false, "name": "enabled", "type": "bool"}]},
  {"anonymous": false, "name": "ProtocolFeePercentageCacheUpdated", "type": "event", "inputs": [
    {"indexed": true, "name": "feeType", "type": "uint256"},
    {"indexed": false, "name": "protocolFeePercentage", "type": "uint256"}]},
  {"anonymous": false, "name": "MustAllowlistLPsSet", "type": "event", "inputs": [
    {"indexed": false, "name": "mustAllowlistLPs", "type": "bool"}]},
  {"anonymous": false, "name": "JoinExitEnabledSet", "type": "event", "inputs": [
    {"indexed": false, "name": "enabled", "type": "bool"}]},
  {"anonymous": false, "name": "ManagementAumFeeCollected", "type": "event", "inputs": [
    {"indexed": false, "name": "bptAmount", "type": "uint256"}]},
  {"anonymous": false, "name": "ManagementAumFeePercentageChanged", "type": "event", "inputs": [
    {"indexed": false, "name": "managementAumFeePercentage", "type": "uint256"}]},
  {"anonymous": false, "name": "CircuitBreakerSet", "type": "event", "inputs": [
    {"indexed": true, "name": "token", "type": "address"},
    {"indexed": false, "name": "bptPrice", "type": "uint256"},
    {"indexed": false, "name": "lowerBoundPercentage", "type": "uint256"},
    {"indexed": false, "name": "upperBoundPercentage", "type": "uint256"}]},
  {"anonymous": false, "name": "TokenAdded", "type": "event", "inputs": [
    {"indexed": true, "name": "token", "type": "address"},
    {"indexed": false, "name": "normalizedWeight", "type": "uint256"}]},
  {"anonymous": false, "name": "TokenRemoved", "type": "event", "inputs": [
    {"indexed": true, "name": "token", "type": "address"}]},
  {"anonymous": false, "name": "ParametersSet", "type": "event", "inputs": [
    {"indexed": false, "name": "alpha", "type": "uint256"},
    {"indexed": false, "name": "beta", "type": "uint256"},
    {"indexed": false, "name": "delta", "type": "uint256"},
    {"indexed": false, "name": "epsilon", "type": "uint256"},
    {"indexed": false, "name": "lambda", "type": "uint256"}]},
  {"name": "getPoolId", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "bytes32"}]},
  {"name": "getSwapFeePercentage", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "getOwner", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "address"}]},
  {"name": "getNormalizedWeights", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256[]"}]},
  {"name": "getAmplificationParameter", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "value", "type": "uint256"}, {"name": "isUpdating", "type": "bool"}, {"name": "precision", "type": "uint256"}]},
  {"name": "getProtocolFeePercentageCache", "type": "function", "stateMutability": "view",
   "inputs": [{"name": "feeType", "type": "uint256"}], "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "getMainIndex", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "getWrappedIndex", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "getTargets", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "lowerTarget", "type": "uint256"}, {"name": "upperTarget", "type": "uint256"}]},
  {"name": "getSqrtParameters", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256[2]"}]},
  {"name": "getRoot3Alpha", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "getECLPParams", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [
    {"name": "alpha", "type": "int256"}, {"name": "beta", "type": "int256"}, {"name": "c", "type": "int256"},
    {"name": "s", "type": "int256"}, {"name": "lambda", "type": "int256"},
    {"name": "tauAlphaX", "type": "int256"}, {"name": "tauAlphaY", "type": "int256"},
    {"name": "tauBetaX", "type": "int256"}, {"name": "tauBetaY", "type": "int256"},
    {"name": "u", "type": "int256"}, {"name": "v", "type": "int256"}, {"name": "w", "type": "int256"},
    {"name": "z", "type": "int256"}, {"name": "dSq", "type": "int256"}]},
  {"name": "assimilator", "type": "function", "stateMutability": "view",
   "inputs": [{"name": "_derivative", "type": "address"}], "outputs": [{"name": "", "type": "address"}]}
]`

// fxOracleABIJSON covers the assimilator, its oracle proxy and the aggregator behind it.
const fxOracleABIJSON = `[
  {"name": "oracle", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "address"}]},
  {"name": "aggregator", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "address"}]},
  {"name": "decimals", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint8"}]},
  {"anonymous": false, "name": "AnswerUpdated", "type": "event", "inputs": [
    {"indexed": true, "name": "current", "type": "int256"},
    {"indexed": true, "name": "roundId", "type": "uint256"},
    {"indexed": false, "name": "updatedAt", "type": "uint256"}]}
]`

const rewardDistributorABIJSON = `[
  {"anonymous": false, "name": "EpochAdded", "type": "event", "inputs": [
    {"indexed": true, "name": "epoch", "type": "uint256"},
    {"indexed": false, "name": "_ipfs", "type": "string"}]},
  {"anonymous": false, "name": "Claimed", "type": "event", "inputs": [
    {"indexed": true, "name": "claimant", "type": "address"},
    {"indexed": false, "name": "epoch", "type": "uint256"},
    {"indexed": false, "name": "balance", "type": "uint256"}]},
  {"anonymous": false, "name": "EpochRemoved", "type": "event", "inputs": [
    {"indexed": false, "name": "epoch", "type": "uint256"}]}
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	vaultABI             = &lazyABI{json: vaultABIJSON}
	factoryABI           = &lazyABI{json: factoryABIJSON}
	poolABI              = &lazyABI{json: poolABIJSON}
	fxOracleABI          = &lazyABI{json: fxOracleABIJSON}
	rewardDistributorABI = &lazyABI{json: rewardDistributorABIJSON}
)

// VaultABI returns the parsed vault ABI.
func VaultABI() (abi.ABI, error) { return vaultABI.get() }

// FactoryABI returns the parsed pool factory ABI.
func FactoryABI() (abi.ABI, error) { return factoryABI.get() }

// PoolABI returns the parsed pool ABI.
func PoolABI() (abi.ABI, error) { return poolABI.get() }

// FXOracleABI returns the parsed FX assimilator/oracle/aggregator ABI.
func FXOracleABI() (abi.ABI, error) { return fxOracleABI.get() }

// RewardDistributorABI returns the parsed reward distributor ABI.
func RewardDistributorABI() (abi.ABI, error) { return rewardDistributorABI.get() }
