package model

// Kind names an entity collection in the store.
type Kind string

const (
	KindBalancer                Kind = "Balancer"
	KindBalancerSnapshot        Kind = "BalancerSnapshot"
	KindToken                   Kind = "Token"
	KindTokenSnapshot           Kind = "TokenSnapshot"
	KindPool                    Kind = "Pool"
	KindPoolContract            Kind = "PoolContract"
	KindPoolToken               Kind = "PoolToken"
	KindPoolShare               Kind = "PoolShare"
	KindPoolSnapshot            Kind = "PoolSnapshot"
	KindPoolHistoricalLiquidity Kind = "PoolHistoricalLiquidity"
	KindUser                    Kind = "User"
	KindUserSnapshot            Kind = "UserSnapshot"
	KindUserInternalBalance     Kind = "UserInternalBalance"
	KindSwap                    Kind = "Swap"
	KindJoinExit                Kind = "JoinExit"
	KindManagementOperation     Kind = "ManagementOperation"
	KindAmpUpdate               Kind = "AmpUpdate"
	KindGradualWeightUpdate     Kind = "GradualWeightUpdate"
	KindSwapFeeUpdate           Kind = "SwapFeeUpdate"
	KindTokenPrice              Kind = "TokenPrice"
	KindLatestPrice             Kind = "LatestPrice"
	KindTradePair               Kind = "TradePair"
	KindTradePairSnapshot       Kind = "TradePairSnapshot"
	KindPriceRateProvider       Kind = "PriceRateProvider"
	KindCircuitBreaker          Kind = "CircuitBreaker"
	KindFXOracle                Kind = "FXOracle"
	KindRewardSnapshot          Kind = "RewardSnapshot"
	KindRewardDistribution      Kind = "RewardDistribution"
	KindUserRewardData          Kind = "UserRewardData"
	KindUserReward              Kind = "UserReward"

	// KindIndexerState holds run checkpoints. It is not an exported entity.
	KindIndexerState Kind = "IndexerState"
)

// Kinds lists every entity kind, in export order.
var Kinds = []Kind{
	KindBalancer, KindBalancerSnapshot, KindToken, KindTokenSnapshot, KindPool, KindPoolContract,
	KindPoolToken, KindPoolShare, KindPoolSnapshot, KindPoolHistoricalLiquidity, KindUser,
	KindUserSnapshot, KindUserInternalBalance, KindSwap, KindJoinExit, KindManagementOperation,
	KindAmpUpdate, KindGradualWeightUpdate, KindSwapFeeUpdate, KindTokenPrice, KindLatestPrice,
	KindTradePair, KindTradePairSnapshot, KindPriceRateProvider, KindCircuitBreaker, KindFXOracle,
	KindRewardSnapshot, KindRewardDistribution, KindUserRewardData, KindUserReward,
}

// Entity is anything persisted in the entity store.
type Entity interface {
	EntityKind() Kind
	EntityID() string
}
