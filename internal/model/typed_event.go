package model

import "strconv"

// Event names produced by the decoder.
const (
	EventSwap                              = "Swap"
	EventPoolBalanceChanged                = "PoolBalanceChanged"
	EventPoolBalanceManaged                = "PoolBalanceManaged"
	EventInternalBalanceChanged            = "InternalBalanceChanged"
	EventPoolCreated                       = "PoolCreated"
	EventTransfer                          = "Transfer"
	EventAmpUpdateStarted                  = "AmpUpdateStarted"
	EventAmpUpdateStopped                  = "AmpUpdateStopped"
	EventSwapFeePercentageChanged          = "SwapFeePercentageChanged"
	EventGradualSwapFeeUpdateScheduled     = "GradualSwapFeeUpdateScheduled"
	EventGradualWeightUpdateScheduled      = "GradualWeightUpdateScheduled"
	EventRateProviderSet                   = "RateProviderSet"
	EventRateCacheUpdated                  = "RateCacheUpdated"
	EventTargetsSet                        = "TargetsSet"
	EventSwapEnabledSet                    = "SwapEnabledSet"
	EventPausedStateChanged                = "PausedStateChanged"
	EventRecoveryModeStateChanged          = "RecoveryModeStateChanged"
	EventProtocolFeePercentageCacheUpdated = "ProtocolFeePercentageCacheUpdated"
	EventMustAllowlistLPsSet               = "MustAllowlistLPsSet"
	EventJoinExitEnabledSet                = "JoinExitEnabledSet"
	EventManagementAumFeeCollected         = "ManagementAumFeeCollected"
	EventManagementAumFeePercentageChanged = "ManagementAumFeePercentageChanged"
	EventCircuitBreakerSet                 = "CircuitBreakerSet"
	EventTokenAdded                        = "TokenAdded"
	EventTokenRemoved                      = "TokenRemoved"
	EventFXParametersSet                   = "ParametersSet"
	EventAnswerUpdated                     = "AnswerUpdated"
	EventEpochAdded                        = "EpochAdded"
	EventClaimed                           = "Claimed"
	EventEpochRemoved                      = "EpochRemoved"
)

// TypedEvent is a decoded log enriched with block metadata.
type TypedEvent struct {
	ChainID     uint64      `json:"chain_id"`
	BlockNumber uint64      `json:"block_number"`
	BlockHash   string      `json:"block_hash"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
	Address     string      `json:"address"`
	TxFrom      string      `json:"tx_from,omitempty"`
	EventName   string      `json:"event_name"`
	Timestamp   uint64      `json:"timestamp"`
	Decoded     interface{} `json:"decoded"`
	Raw         *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// RecordID is the tx hash followed by the decimal log index.
func (e TypedEvent) RecordID() string {
	return e.TxHash + strconv.FormatUint(e.LogIndex, 10)
}

// Time returns the block timestamp as a signed unix second count.
func (e TypedEvent) Time() int64 {
	return int64(e.Timestamp)
}
