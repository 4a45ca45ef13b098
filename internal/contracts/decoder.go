package contracts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultScope/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.TypedEvent, error)
}

type eventSpec struct {
	event abi.Event
	name  string
}

// EventDecoder decodes vault, factory, pool, FX oracle and reward distributor logs.
type EventDecoder struct {
	byTopic map[string]eventSpec
}

// aliases folds event variants onto one engine event name.
var aliases = map[string]string{
	"NewFXPool":             model.EventPoolCreated,
	"PriceRateProviderSet":  model.EventRateProviderSet,
	"TokenRateProviderSet":  model.EventRateProviderSet,
	"PriceRateCacheUpdated": model.EventRateCacheUpdated,
	"TokenRateCacheUpdated": model.EventRateCacheUpdated,
}

// NewEventDecoder builds a decoder over every ABI the engine consumes.
func NewEventDecoder() (*EventDecoder, error) {
	loaders := []func() (abi.ABI, error){VaultABI, FactoryABI, PoolABI, FXOracleABI, RewardDistributorABI}
	byTopic := make(map[string]eventSpec)
	for _, load := range loaders {
		parsed, err := load()
		if err != nil {
			return nil, fmt.Errorf("parse abi: %w", err)
		}
		for _, ev := range parsed.Events {
			name := ev.Name
			if alias, ok := aliases[name]; ok {
				name = alias
			}
			byTopic[strings.ToLower(ev.ID.Hex())] = eventSpec{event: ev, name: name}
		}
	}
	return &EventDecoder{byTopic: byTopic}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *EventDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.byTopic[strings.ToLower(topic0)]
	return ok
}

// Topics returns every supported topic0, sorted for stable filter queries.
func (d *EventDecoder) Topics() []common.Hash {
	keys := make([]string, 0, len(d.byTopic))
	for k := range d.byTopic {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]common.Hash, 0, len(keys))
	for _, k := range keys {
		out = append(out, common.HexToHash(k))
	}
	return out
}

// Decode converts a LogRecord into a TypedEvent.
func (d *EventDecoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	spec, ok := d.byTopic[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid emitter address: %s", log.Address)
	}

	values, err := unpackEvent(spec.event, log)
	if err != nil {
		return nil, err
	}
	f := &fields{m: values}
	decoded := d.payload(spec, f)
	if f.err != nil {
		return nil, fmt.Errorf("decode %s: %w", spec.event.Name, f.err)
	}
	return buildTypedEvent(log, spec.name, decoded), nil
}

func (d *EventDecoder) payload(spec eventSpec, f *fields) interface{} {
	switch spec.event.Name {
	case "Swap":
		return model.SwapEventData{
			PoolID:    f.hash("poolId"),
			TokenIn:   f.address("tokenIn"),
			TokenOut:  f.address("tokenOut"),
			AmountIn:  f.bigInt("amountIn"),
			AmountOut: f.bigInt("amountOut"),
		}
	case "PoolBalanceChanged":
		return model.PoolBalanceChangedData{
			PoolID:             f.hash("poolId"),
			LiquidityProvider:  f.address("liquidityProvider"),
			Tokens:             f.addresses("tokens"),
			Deltas:             f.bigInts("deltas"),
			ProtocolFeeAmounts: f.bigInts("protocolFeeAmounts"),
		}
	case "PoolBalanceManaged":
		return model.PoolBalanceManagedData{
			PoolID:       f.hash("poolId"),
			AssetManager: f.address("assetManager"),
			Token:        f.address("token"),
			CashDelta:    f.bigInt("cashDelta"),
			ManagedDelta: f.bigInt("managedDelta"),
		}
	case "InternalBalanceChanged":
		return model.InternalBalanceChangedData{
			User:  f.address("user"),
			Token: f.address("token"),
			Delta: f.bigInt("delta"),
		}
	case "PoolCreated":
		return model.PoolCreatedData{Pool: f.address("pool")}
	case "NewFXPool":
		id := f.hash("id")
		return model.PoolCreatedData{Pool: f.address("fxpool"), PoolID: &id}
	case "Transfer":
		return model.TransferData{From: f.address("from"), To: f.address("to"), Value: f.bigInt("value")}
	case "AmpUpdateStarted":
		return model.AmpUpdateStartedData{
			StartValue: f.bigInt("startValue"),
			EndValue:   f.bigInt("endValue"),
			StartTime:  f.bigInt("startTime"),
			EndTime:    f.bigInt("endTime"),
		}
	case "AmpUpdateStopped":
		return model.AmpUpdateStoppedData{CurrentValue: f.bigInt("currentValue")}
	case "SwapFeePercentageChanged":
		return model.SwapFeePercentageChangedData{SwapFeePercentage: f.bigInt("swapFeePercentage")}
	case "GradualSwapFeeUpdateScheduled":
		return model.GradualSwapFeeUpdateScheduledData{
			StartTime:              f.bigInt("startTime"),
			EndTime:                f.bigInt("endTime"),
			StartSwapFeePercentage: f.bigInt("startSwapFeePercentage"),
			EndSwapFeePercentage:   f.bigInt("endSwapFeePercentage"),
		}
	case "GradualWeightUpdateScheduled":
		return model.GradualWeightUpdateScheduledData{
			StartTime:    f.bigInt("startTime"),
			EndTime:      f.bigInt("endTime"),
			StartWeights: f.bigInts("startWeights"),
			EndWeights:   f.bigInts("endWeights"),
		}
	case "PriceRateProviderSet":
		token := f.address("token")
		return model.RateProviderSetData{Token: &token, Provider: f.address("provider"), CacheDuration: f.bigInt("cacheDuration")}
	case "TokenRateProviderSet":
		return model.RateProviderSetData{TokenIndex: f.bigInt("tokenIndex"), Provider: f.address("provider"), CacheDuration: f.bigInt("cacheDuration")}
	case "PriceRateCacheUpdated":
		token := f.address("token")
		return model.RateCacheUpdatedData{Token: &token, Rate: f.bigInt("rate")}
	case "TokenRateCacheUpdated":
		return model.RateCacheUpdatedData{TokenIndex: f.bigInt("tokenIndex"), Rate: f.bigInt("rate")}
	case "TargetsSet":
		return model.TargetsSetData{Token: f.address("token"), LowerTarget: f.bigInt("lowerTarget"), UpperTarget: f.bigInt("upperTarget")}
	case "SwapEnabledSet":
		return model.SwapEnabledSetData{SwapEnabled: f.boolean("swapEnabled")}
	case "PausedStateChanged":
		return model.PausedStateChangedData{Paused: f.boolean("paused")}
	case "RecoveryModeStateChanged":
		return model.RecoveryModeStateChangedData{Enabled: f.boolean("enabled")}
	case "ProtocolFeePercentageCacheUpdated":
		return model.ProtocolFeePercentageCacheUpdatedData{FeeType: f.bigInt("feeType"), Percentage: f.bigInt("protocolFeePercentage")}
	case "MustAllowlistLPsSet":
		return model.MustAllowlistLPsSetData{MustAllowlistLPs: f.boolean("mustAllowlistLPs")}
	case "JoinExitEnabledSet":
		return model.JoinExitEnabledSetData{Enabled: f.boolean("enabled")}
	case "ManagementAumFeeCollected":
		return model.ManagementAumFeeCollectedData{BptAmount: f.bigInt("bptAmount")}
	case "ManagementAumFeePercentageChanged":
		return model.ManagementAumFeePercentageChangedData{Percentage: f.bigInt("managementAumFeePercentage")}
	case "CircuitBreakerSet":
		return model.CircuitBreakerSetData{
			Token:                f.address("token"),
			BptPrice:             f.bigInt("bptPrice"),
			LowerBoundPercentage: f.bigInt("lowerBoundPercentage"),
			UpperBoundPercentage: f.bigInt("upperBoundPercentage"),
		}
	case "TokenAdded":
		return model.TokenAddedData{Token: f.address("token"), NormalizedWeight: f.bigInt("normalizedWeight")}
	case "TokenRemoved":
		return model.TokenRemovedData{Token: f.address("token")}
	case "ParametersSet":
		return model.FXParametersSetData{
			Alpha:   f.bigInt("alpha"),
			Beta:    f.bigInt("beta"),
			Delta:   f.bigInt("delta"),
			Epsilon: f.bigInt("epsilon"),
			Lambda:  f.bigInt("lambda"),
		}
	case "AnswerUpdated":
		return model.AnswerUpdatedData{Current: f.bigInt("current"), RoundID: f.bigInt("roundId"), UpdatedAt: f.bigInt("updatedAt")}
	case "EpochAdded":
		return model.EpochAddedData{Epoch: f.bigInt("epoch"), CID: f.str("_ipfs")}
	case "Claimed":
		return model.ClaimedData{Claimant: f.address("claimant"), Epoch: f.bigInt("epoch"), Balance: f.bigInt("balance")}
	case "EpochRemoved":
		return model.EpochRemovedData{Epoch: f.bigInt("epoch")}
	default:
		f.err = fmt.Errorf("no payload mapping for %s", spec.event.Name)
		return nil
	}
}

func unpackEvent(event abi.Event, log model.LogRecord) (map[string]interface{}, error) {
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(out, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	nonIndexed := event.Inputs.NonIndexed()
	if len(nonIndexed) == 0 {
		return out, nil
	}
	data, err := decodeData(log.Data)
	if err != nil {
		return nil, err
	}
	if err := nonIndexed.UnpackIntoMap(out, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return out, nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     strings.ToLower(log.Address),
		TxFrom:      log.TxFrom,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         raw,
	}
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func decodeData(dataHex string) ([]byte, error) {
	if dataHex == "" || dataHex == "0x" {
		return nil, nil
	}
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	return data, nil
}
