package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// VaultID is the id of the singleton Balancer entity.
const VaultID = "2"

// Balancer holds vault-wide running totals.
type Balancer struct {
	ID                    string              `json:"id"`
	PoolCount             int64               `json:"pool_count"`
	TotalLiquidity        decimal.Decimal     `json:"total_liquidity"`
	TotalSwapCount        int64               `json:"total_swap_count"`
	TotalSwapVolume       decimal.Decimal     `json:"total_swap_volume"`
	TotalSwapFee          decimal.Decimal     `json:"total_swap_fee"`
	TotalProtocolFee      decimal.NullDecimal `json:"total_protocol_fee"`
	ProtocolFeesCollector string              `json:"protocol_fees_collector,omitempty"`
}

type BalancerSnapshot struct {
	ID               string          `json:"id"`
	Vault            string          `json:"vault"`
	Timestamp        int64           `json:"timestamp"`
	PoolCount        int64           `json:"pool_count"`
	TotalLiquidity   decimal.Decimal `json:"total_liquidity"`
	TotalSwapCount   int64           `json:"total_swap_count"`
	TotalSwapVolume  decimal.Decimal `json:"total_swap_volume"`
	TotalSwapFee     decimal.Decimal `json:"total_swap_fee"`
	TotalProtocolFee decimal.Decimal `json:"total_protocol_fee"`
}

// Token is an ERC20 seen by any pool, keyed by lowercase address.
type Token struct {
	ID                      string              `json:"id"`
	Address                 string              `json:"address"`
	Name                    string              `json:"name"`
	Symbol                  string              `json:"symbol"`
	Decimals                int                 `json:"decimals"`
	TotalBalanceNotional    decimal.Decimal     `json:"total_balance_notional"`
	TotalBalanceUSD         decimal.Decimal     `json:"total_balance_usd"`
	TotalVolumeNotional     decimal.Decimal     `json:"total_volume_notional"`
	TotalVolumeUSD          decimal.Decimal     `json:"total_volume_usd"`
	TotalSwapCount          int64               `json:"total_swap_count"`
	PoolCount               int64               `json:"pool_count"`
	LatestUSDPrice          decimal.NullDecimal `json:"latest_usd_price"`
	LatestUSDPriceTimestamp int64               `json:"latest_usd_price_timestamp,omitempty"`
	LatestPrice             string              `json:"latest_price,omitempty"`
	Pool                    string              `json:"pool,omitempty"`
}

type TokenSnapshot struct {
	ID                   string          `json:"id"`
	Token                string          `json:"token"`
	Timestamp            int64           `json:"timestamp"`
	TotalBalanceNotional decimal.Decimal `json:"total_balance_notional"`
	TotalBalanceUSD      decimal.Decimal `json:"total_balance_usd"`
	TotalVolumeNotional  decimal.Decimal `json:"total_volume_notional"`
	TotalVolumeUSD       decimal.Decimal `json:"total_volume_usd"`
	TotalSwapCount       int64           `json:"total_swap_count"`
}

// Pool is keyed by the 32-byte vault pool id in lowercase hex.
type Pool struct {
	ID              string   `json:"id"`
	Address         string   `json:"address"`
	PoolType        PoolType `json:"pool_type"`
	PoolTypeVersion int      `json:"pool_type_version"`
	Factory         string   `json:"factory,omitempty"`
	StrategyType    int      `json:"strategy_type"`
	Owner           string   `json:"owner,omitempty"`
	Name            string   `json:"name,omitempty"`
	Symbol          string   `json:"symbol,omitempty"`
	VaultID         string   `json:"vault_id"`
	CreateTime      int64    `json:"create_time"`
	CreateBlock     uint64   `json:"create_block"`
	TokensList      []string `json:"tokens_list"`

	SwapFee             decimal.Decimal `json:"swap_fee"`
	SwapEnabled         bool            `json:"swap_enabled"`
	SwapEnabledInternal bool            `json:"swap_enabled_internal"`
	IsPaused            bool            `json:"is_paused"`
	IsInRecoveryMode    bool            `json:"is_in_recovery_mode"`

	TotalWeight               decimal.NullDecimal `json:"total_weight"`
	TotalShares               decimal.Decimal     `json:"total_shares"`
	TotalSwapVolume           decimal.Decimal     `json:"total_swap_volume"`
	TotalSwapFee              decimal.Decimal     `json:"total_swap_fee"`
	TotalLiquidity            decimal.Decimal     `json:"total_liquidity"`
	TotalProtocolFee          decimal.NullDecimal `json:"total_protocol_fee"`
	TotalProtocolFeePaidInBPT decimal.NullDecimal `json:"total_protocol_fee_paid_in_bpt"`
	SwapsCount                int64               `json:"swaps_count"`
	HoldersCount              int64               `json:"holders_count"`

	// Stable-like pools. AmpPrecise carries the AmpPrecision factor.
	Amp                       *big.Int            `json:"amp,omitempty"`
	AmpPrecise                *big.Int            `json:"amp_precise,omitempty"`
	LatestAmpUpdate           string              `json:"latest_amp_update,omitempty"`
	LastJoinExitAmp           *big.Int            `json:"last_join_exit_amp,omitempty"`
	LastPostJoinExitInvariant decimal.NullDecimal `json:"last_post_join_exit_invariant"`

	ProtocolSwapFeeCache  decimal.NullDecimal `json:"protocol_swap_fee_cache"`
	ProtocolYieldFeeCache decimal.NullDecimal `json:"protocol_yield_fee_cache"`
	ProtocolAumFeeCache   decimal.NullDecimal `json:"protocol_aum_fee_cache"`

	LatestWeightUpdate  string `json:"latest_weight_update,omitempty"`
	LatestSwapFeeUpdate string `json:"latest_swap_fee_update,omitempty"`

	// Linear pools.
	MainIndex    *int                `json:"main_index,omitempty"`
	WrappedIndex *int                `json:"wrapped_index,omitempty"`
	LowerTarget  decimal.NullDecimal `json:"lower_target"`
	UpperTarget  decimal.NullDecimal `json:"upper_target"`

	// Gyro curve parameters; FX reuses Alpha, Beta and Lambda.
	SqrtAlpha  decimal.NullDecimal `json:"sqrt_alpha"`
	SqrtBeta   decimal.NullDecimal `json:"sqrt_beta"`
	Root3Alpha decimal.NullDecimal `json:"root3_alpha"`
	Alpha      decimal.NullDecimal `json:"alpha"`
	Beta       decimal.NullDecimal `json:"beta"`
	C          decimal.NullDecimal `json:"c"`
	S          decimal.NullDecimal `json:"s"`
	Lambda     decimal.NullDecimal `json:"lambda"`
	TauAlphaX  decimal.NullDecimal `json:"tau_alpha_x"`
	TauAlphaY  decimal.NullDecimal `json:"tau_alpha_y"`
	TauBetaX   decimal.NullDecimal `json:"tau_beta_x"`
	TauBetaY   decimal.NullDecimal `json:"tau_beta_y"`
	U          decimal.NullDecimal `json:"u"`
	V          decimal.NullDecimal `json:"v"`
	W          decimal.NullDecimal `json:"w"`
	Z          decimal.NullDecimal `json:"z"`
	DSq        decimal.NullDecimal `json:"d_sq"`
	Delta      decimal.NullDecimal `json:"delta"`
	Epsilon    decimal.NullDecimal `json:"epsilon"`

	// Managed pools.
	ManagementFee             decimal.NullDecimal `json:"management_fee"`
	ManagementAumFee          decimal.NullDecimal `json:"management_aum_fee"`
	TotalAumFeeCollectedInBPT decimal.NullDecimal `json:"total_aum_fee_collected_in_bpt"`
	MustAllowlistLPs          bool                `json:"must_allowlist_lps"`
	JoinExitEnabled           bool                `json:"join_exit_enabled"`
}

// PoolContract maps a pool's contract address to its vault pool id.
type PoolContract struct {
	ID   string `json:"id"`
	Pool string `json:"pool"`
}

// PoolToken is keyed by pool id and token address.
type PoolToken struct {
	ID               string              `json:"id"`
	PoolID           string              `json:"pool_id"`
	Token            string              `json:"token"`
	Address          string              `json:"address"`
	Name             string              `json:"name"`
	Symbol           string              `json:"symbol"`
	Decimals         int                 `json:"decimals"`
	Index            int                 `json:"index"`
	AssetManager     string              `json:"asset_manager,omitempty"`
	Balance          decimal.Decimal     `json:"balance"`
	CashBalance      decimal.Decimal     `json:"cash_balance"`
	ManagedBalance   decimal.Decimal     `json:"managed_balance"`
	Invested         decimal.Decimal     `json:"invested"`
	Weight           decimal.NullDecimal `json:"weight"`
	PriceRate        decimal.Decimal     `json:"price_rate"`
	OldPriceRate     decimal.NullDecimal `json:"old_price_rate"`
	PaidProtocolFees decimal.NullDecimal `json:"paid_protocol_fees"`
	CircuitBreaker   string              `json:"circuit_breaker,omitempty"`
	Oracle           string              `json:"oracle,omitempty"`
}

// PoolShare is a holder's BPT balance, keyed by pool address and holder.
type PoolShare struct {
	ID          string          `json:"id"`
	UserAddress string          `json:"user_address"`
	PoolID      string          `json:"pool_id"`
	Balance     decimal.Decimal `json:"balance"`
}

type PoolSnapshot struct {
	ID               string            `json:"id"`
	Pool             string            `json:"pool"`
	Timestamp        int64             `json:"timestamp"`
	Amounts          []decimal.Decimal `json:"amounts"`
	TotalShares      decimal.Decimal   `json:"total_shares"`
	SwapVolume       decimal.Decimal   `json:"swap_volume"`
	SwapFees         decimal.Decimal   `json:"swap_fees"`
	Liquidity        decimal.Decimal   `json:"liquidity"`
	SwapsCount       int64             `json:"swaps_count"`
	HoldersCount     int64             `json:"holders_count"`
	TotalProtocolFee decimal.Decimal   `json:"total_protocol_fee"`
}

type PoolHistoricalLiquidity struct {
	ID              string          `json:"id"`
	PoolID          string          `json:"pool_id"`
	PoolTotalShares decimal.Decimal `json:"pool_total_shares"`
	PoolLiquidity   decimal.Decimal `json:"pool_liquidity"`
	PoolShareValue  decimal.Decimal `json:"pool_share_value"`
	PricingAsset    string          `json:"pricing_asset"`
	Block           uint64          `json:"block"`
}

type User struct {
	ID              string          `json:"id"`
	TotalSwapVolume decimal.Decimal `json:"total_swap_volume"`
	TotalSwapFee    decimal.Decimal `json:"total_swap_fee"`
	TotalSwapCount  int64           `json:"total_swap_count"`
}

type UserSnapshot struct {
	ID              string          `json:"id"`
	User            string          `json:"user"`
	Timestamp       int64           `json:"timestamp"`
	TotalSwapVolume decimal.Decimal `json:"total_swap_volume"`
	TotalSwapFee    decimal.Decimal `json:"total_swap_fee"`
	TotalSwapCount  int64           `json:"total_swap_count"`
}

type UserInternalBalance struct {
	ID          string          `json:"id"`
	UserAddress string          `json:"user_address"`
	Token       string          `json:"token"`
	Balance     decimal.Decimal `json:"balance"`
}

type Swap struct {
	ID             string          `json:"id"`
	PoolID         string          `json:"pool_id"`
	Caller         string          `json:"caller"`
	UserAddress    string          `json:"user_address"`
	TokenIn        string          `json:"token_in"`
	TokenInSym     string          `json:"token_in_sym"`
	TokenAmountIn  decimal.Decimal `json:"token_amount_in"`
	TokenOut       string          `json:"token_out"`
	TokenOutSym    string          `json:"token_out_sym"`
	TokenAmountOut decimal.Decimal `json:"token_amount_out"`
	ValueUSD       decimal.Decimal `json:"value_usd"`
	SwapFeesUSD    decimal.Decimal `json:"swap_fees_usd"`
	Block          uint64          `json:"block"`
	Timestamp      int64           `json:"timestamp"`
	Tx             string          `json:"tx"`
}

type JoinExitType string

const (
	JoinType JoinExitType = "Join"
	ExitType JoinExitType = "Exit"
)

type JoinExit struct {
	ID        string            `json:"id"`
	Type      JoinExitType      `json:"type"`
	Sender    string            `json:"sender"`
	Amounts   []decimal.Decimal `json:"amounts"`
	ValueUSD  decimal.Decimal   `json:"value_usd"`
	Pool      string            `json:"pool"`
	User      string            `json:"user"`
	Block     uint64            `json:"block"`
	Timestamp int64             `json:"timestamp"`
	Tx        string            `json:"tx"`
}

type OperationType string

const (
	OperationDeposit  OperationType = "Deposit"
	OperationWithdraw OperationType = "Withdraw"
	OperationUpdate   OperationType = "Update"
)

type ManagementOperation struct {
	ID           string          `json:"id"`
	Type         OperationType   `json:"type"`
	CashDelta    decimal.Decimal `json:"cash_delta"`
	ManagedDelta decimal.Decimal `json:"managed_delta"`
	PoolTokenID  string          `json:"pool_token_id"`
	Timestamp    int64           `json:"timestamp"`
}

// AmpUpdate is a linear amp ramp; amp values carry the AmpPrecision factor.
type AmpUpdate struct {
	ID                 string   `json:"id"`
	PoolID             string   `json:"pool_id"`
	ScheduledTimestamp int64    `json:"scheduled_timestamp"`
	StartTimestamp     int64    `json:"start_timestamp"`
	EndTimestamp       int64    `json:"end_timestamp"`
	StartAmp           *big.Int `json:"start_amp"`
	EndAmp             *big.Int `json:"end_amp"`
}

type GradualWeightUpdate struct {
	ID                 string            `json:"id"`
	PoolID             string            `json:"pool_id"`
	ScheduledTimestamp int64             `json:"scheduled_timestamp"`
	StartTimestamp     int64             `json:"start_timestamp"`
	EndTimestamp       int64             `json:"end_timestamp"`
	StartWeights       []decimal.Decimal `json:"start_weights"`
	EndWeights         []decimal.Decimal `json:"end_weights"`
}

type SwapFeeUpdate struct {
	ID                     string          `json:"id"`
	PoolID                 string          `json:"pool_id"`
	ScheduledTimestamp     int64           `json:"scheduled_timestamp"`
	StartTimestamp         int64           `json:"start_timestamp"`
	EndTimestamp           int64           `json:"end_timestamp"`
	StartSwapFeePercentage decimal.Decimal `json:"start_swap_fee_percentage"`
	EndSwapFeePercentage   decimal.Decimal `json:"end_swap_fee_percentage"`
}

// TokenPrice is one price observation of Asset in units of PricingAsset.
type TokenPrice struct {
	ID           string          `json:"id"`
	PoolID       string          `json:"pool_id"`
	Asset        string          `json:"asset"`
	PricingAsset string          `json:"pricing_asset"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	Block        uint64          `json:"block"`
	Timestamp    int64           `json:"timestamp"`
}

type LatestPrice struct {
	ID           string          `json:"id"`
	Asset        string          `json:"asset"`
	PricingAsset string          `json:"pricing_asset"`
	PoolID       string          `json:"pool_id"`
	Price        decimal.Decimal `json:"price"`
	Block        uint64          `json:"block"`
}

type TradePair struct {
	ID              string          `json:"id"`
	Token0          string          `json:"token0"`
	Token1          string          `json:"token1"`
	TotalSwapVolume decimal.Decimal `json:"total_swap_volume"`
	TotalSwapFee    decimal.Decimal `json:"total_swap_fee"`
}

type TradePairSnapshot struct {
	ID              string          `json:"id"`
	Pair            string          `json:"pair"`
	Timestamp       int64           `json:"timestamp"`
	TotalSwapVolume decimal.Decimal `json:"total_swap_volume"`
	TotalSwapFee    decimal.Decimal `json:"total_swap_fee"`
}

type PriceRateProvider struct {
	ID            string              `json:"id"`
	PoolID        string              `json:"pool_id"`
	Token         string              `json:"token"`
	Address       string              `json:"address"`
	Rate          decimal.NullDecimal `json:"rate"`
	LastCached    int64               `json:"last_cached"`
	CacheDuration int64               `json:"cache_duration"`
	CacheExpiry   int64               `json:"cache_expiry"`
}

type CircuitBreaker struct {
	ID                   string          `json:"id"`
	PoolID               string          `json:"pool_id"`
	Token                string          `json:"token"`
	BptPrice             decimal.Decimal `json:"bpt_price"`
	LowerBoundPercentage decimal.Decimal `json:"lower_bound_percentage"`
	UpperBoundPercentage decimal.Decimal `json:"upper_bound_percentage"`
}

// FXOracle is the price aggregator behind an FX pool token's assimilator.
type FXOracle struct {
	ID         string              `json:"id"`
	Decimals   int                 `json:"decimals"`
	Tokens     []string            `json:"tokens"`
	LatestRate decimal.NullDecimal `json:"latest_rate"`
}

func (e *Balancer) EntityKind() Kind                { return KindBalancer }
func (e *Balancer) EntityID() string                { return e.ID }
func (e *BalancerSnapshot) EntityKind() Kind        { return KindBalancerSnapshot }
func (e *BalancerSnapshot) EntityID() string        { return e.ID }
func (e *Token) EntityKind() Kind                   { return KindToken }
func (e *Token) EntityID() string                   { return e.ID }
func (e *TokenSnapshot) EntityKind() Kind           { return KindTokenSnapshot }
func (e *TokenSnapshot) EntityID() string           { return e.ID }
func (e *Pool) EntityKind() Kind                    { return KindPool }
func (e *Pool) EntityID() string                    { return e.ID }
func (e *PoolContract) EntityKind() Kind            { return KindPoolContract }
func (e *PoolContract) EntityID() string            { return e.ID }
func (e *PoolToken) EntityKind() Kind               { return KindPoolToken }
func (e *PoolToken) EntityID() string               { return e.ID }
func (e *PoolShare) EntityKind() Kind               { return KindPoolShare }
func (e *PoolShare) EntityID() string               { return e.ID }
func (e *PoolSnapshot) EntityKind() Kind            { return KindPoolSnapshot }
func (e *PoolSnapshot) EntityID() string            { return e.ID }
func (e *PoolHistoricalLiquidity) EntityKind() Kind { return KindPoolHistoricalLiquidity }
func (e *PoolHistoricalLiquidity) EntityID() string { return e.ID }
func (e *User) EntityKind() Kind                    { return KindUser }
func (e *User) EntityID() string                    { return e.ID }
func (e *UserSnapshot) EntityKind() Kind            { return KindUserSnapshot }
func (e *UserSnapshot) EntityID() string            { return e.ID }
func (e *UserInternalBalance) EntityKind() Kind     { return KindUserInternalBalance }
func (e *UserInternalBalance) EntityID() string     { return e.ID }
func (e *Swap) EntityKind() Kind                    { return KindSwap }
func (e *Swap) EntityID() string                    { return e.ID }
func (e *JoinExit) EntityKind() Kind                { return KindJoinExit }
func (e *JoinExit) EntityID() string                { return e.ID }
func (e *ManagementOperation) EntityKind() Kind     { return KindManagementOperation }
func (e *ManagementOperation) EntityID() string     { return e.ID }
func (e *AmpUpdate) EntityKind() Kind               { return KindAmpUpdate }
func (e *AmpUpdate) EntityID() string               { return e.ID }
func (e *GradualWeightUpdate) EntityKind() Kind     { return KindGradualWeightUpdate }
func (e *GradualWeightUpdate) EntityID() string     { return e.ID }
func (e *SwapFeeUpdate) EntityKind() Kind           { return KindSwapFeeUpdate }
func (e *SwapFeeUpdate) EntityID() string           { return e.ID }
func (e *TokenPrice) EntityKind() Kind              { return KindTokenPrice }
func (e *TokenPrice) EntityID() string              { return e.ID }
func (e *LatestPrice) EntityKind() Kind             { return KindLatestPrice }
func (e *LatestPrice) EntityID() string             { return e.ID }
func (e *TradePair) EntityKind() Kind               { return KindTradePair }
func (e *TradePair) EntityID() string               { return e.ID }
func (e *TradePairSnapshot) EntityKind() Kind       { return KindTradePairSnapshot }
func (e *TradePairSnapshot) EntityID() string       { return e.ID }
func (e *PriceRateProvider) EntityKind() Kind       { return KindPriceRateProvider }
func (e *PriceRateProvider) EntityID() string       { return e.ID }
func (e *CircuitBreaker) EntityKind() Kind          { return KindCircuitBreaker }
func (e *CircuitBreaker) EntityID() string          { return e.ID }
func (e *FXOracle) EntityKind() Kind                { return KindFXOracle }
func (e *FXOracle) EntityID() string                { return e.ID }
