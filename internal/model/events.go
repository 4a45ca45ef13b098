package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Vault events.

type SwapEventData struct {
	PoolID    common.Hash    `json:"pool_id"`
	TokenIn   common.Address `json:"token_in"`
	TokenOut  common.Address `json:"token_out"`
	AmountIn  *big.Int       `json:"amount_in"`
	AmountOut *big.Int       `json:"amount_out"`
}

type PoolBalanceChangedData struct {
	PoolID             common.Hash      `json:"pool_id"`
	LiquidityProvider  common.Address   `json:"liquidity_provider"`
	Tokens             []common.Address `json:"tokens"`
	Deltas             []*big.Int       `json:"deltas"`
	ProtocolFeeAmounts []*big.Int       `json:"protocol_fee_amounts"`
}

type PoolBalanceManagedData struct {
	PoolID       common.Hash    `json:"pool_id"`
	AssetManager common.Address `json:"asset_manager"`
	Token        common.Address `json:"token"`
	CashDelta    *big.Int       `json:"cash_delta"`
	ManagedDelta *big.Int       `json:"managed_delta"`
}

type InternalBalanceChangedData struct {
	User  common.Address `json:"user"`
	Token common.Address `json:"token"`
	Delta *big.Int       `json:"delta"`
}

// Factory events. FX factories emit NewFXPool, which is normalized into PoolCreatedData.

type PoolCreatedData struct {
	Pool common.Address `json:"pool"`
	// PoolID is set when the factory event already carries the vault pool id.
	PoolID *common.Hash `json:"pool_id,omitempty"`
}

// Pool contract events.

type TransferData struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
}

type AmpUpdateStartedData struct {
	StartValue *big.Int `json:"start_value"`
	EndValue   *big.Int `json:"end_value"`
	StartTime  *big.Int `json:"start_time"`
	EndTime    *big.Int `json:"end_time"`
}

type AmpUpdateStoppedData struct {
	CurrentValue *big.Int `json:"current_value"`
}

type SwapFeePercentageChangedData struct {
	SwapFeePercentage *big.Int `json:"swap_fee_percentage"`
}

type GradualSwapFeeUpdateScheduledData struct {
	StartTime              *big.Int `json:"start_time"`
	EndTime                *big.Int `json:"end_time"`
	StartSwapFeePercentage *big.Int `json:"start_swap_fee_percentage"`
	EndSwapFeePercentage   *big.Int `json:"end_swap_fee_percentage"`
}

type GradualWeightUpdateScheduledData struct {
	StartTime    *big.Int   `json:"start_time"`
	EndTime      *big.Int   `json:"end_time"`
	StartWeights []*big.Int `json:"start_weights"`
	EndWeights   []*big.Int `json:"end_weights"`
}

// RateProviderSetData covers both the token-keyed and the index-keyed variants.
type RateProviderSetData struct {
	Token         *common.Address `json:"token,omitempty"`
	TokenIndex    *big.Int        `json:"token_index,omitempty"`
	Provider      common.Address  `json:"provider"`
	CacheDuration *big.Int        `json:"cache_duration"`
}

type RateCacheUpdatedData struct {
	Token      *common.Address `json:"token,omitempty"`
	TokenIndex *big.Int        `json:"token_index,omitempty"`
	Rate       *big.Int        `json:"rate"`
}

type TargetsSetData struct {
	Token       common.Address `json:"token"`
	LowerTarget *big.Int       `json:"lower_target"`
	UpperTarget *big.Int       `json:"upper_target"`
}

type SwapEnabledSetData struct {
	SwapEnabled bool `json:"swap_enabled"`
}

type PausedStateChangedData struct {
	Paused bool `json:"paused"`
}

type RecoveryModeStateChangedData struct {
	Enabled bool `json:"enabled"`
}

type ProtocolFeePercentageCacheUpdatedData struct {
	FeeType    *big.Int `json:"fee_type"`
	Percentage *big.Int `json:"percentage"`
}

type MustAllowlistLPsSetData struct {
	MustAllowlistLPs bool `json:"must_allowlist_lps"`
}

type JoinExitEnabledSetData struct {
	Enabled bool `json:"enabled"`
}

type ManagementAumFeeCollectedData struct {
	BptAmount *big.Int `json:"bpt_amount"`
}

type ManagementAumFeePercentageChangedData struct {
	Percentage *big.Int `json:"percentage"`
}

type CircuitBreakerSetData struct {
	Token                common.Address `json:"token"`
	BptPrice             *big.Int       `json:"bpt_price"`
	LowerBoundPercentage *big.Int       `json:"lower_bound_percentage"`
	UpperBoundPercentage *big.Int       `json:"upper_bound_percentage"`
}

type TokenAddedData struct {
	Token            common.Address `json:"token"`
	NormalizedWeight *big.Int       `json:"normalized_weight"`
}

type TokenRemovedData struct {
	Token common.Address `json:"token"`
}

type FXParametersSetData struct {
	Alpha   *big.Int `json:"alpha"`
	Beta    *big.Int `json:"beta"`
	Delta   *big.Int `json:"delta"`
	Epsilon *big.Int `json:"epsilon"`
	Lambda  *big.Int `json:"lambda"`
}

// AnswerUpdatedData is a price update from an FX oracle aggregator.
type AnswerUpdatedData struct {
	Current   *big.Int `json:"current"`
	RoundID   *big.Int `json:"round_id"`
	UpdatedAt *big.Int `json:"updated_at"`
}

// Reward distributor events.

type EpochAddedData struct {
	Epoch *big.Int `json:"epoch"`
	CID   string   `json:"cid"`
}

type ClaimedData struct {
	Claimant common.Address `json:"claimant"`
	Epoch    *big.Int       `json:"epoch"`
	Balance  *big.Int       `json:"balance"`
}

type EpochRemovedData struct {
	Epoch *big.Int `json:"epoch"`
}
