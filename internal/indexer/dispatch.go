package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vaultScope/internal/contracts"
	"vaultScope/internal/entity"
	"vaultScope/internal/model"
	"vaultScope/internal/pools"
	"vaultScope/internal/rewards"
	"vaultScope/internal/store"
	"vaultScope/internal/vault"
)

// Applier applies one decoded event to the entity store.
type Applier interface {
	Apply(ctx context.Context, ev *model.TypedEvent) error
}

// Dispatcher routes decoded events to their handlers by payload type.
type Dispatcher struct {
	Vault      *vault.Processor
	Lifecycle  *pools.Lifecycle
	Controller *pools.Controller
	Rewards    *rewards.Distributor
	Logger     *zap.Logger
}

// IsInvariant reports whether err signals state that should exist by construction.
func IsInvariant(err error) bool {
	return errors.Is(err, entity.ErrMissingPoolToken)
}

// StagedApplier applies each event into the stage's event layer and keeps the
// writes only when the handler succeeds. A failed event leaves no partial state.
type StagedApplier struct {
	Next  Applier
	Stage *store.Staged
}

func (a StagedApplier) Apply(ctx context.Context, ev *model.TypedEvent) error {
	if err := a.Next.Apply(ctx, ev); err != nil {
		a.Stage.Rollback()
		return err
	}
	a.Stage.Commit()
	return nil
}

// Apply runs the handler for ev. Contract reads made while handling it are
// pinned to the event's block.
func (d *Dispatcher) Apply(ctx context.Context, ev *model.TypedEvent) error {
	ctx = contracts.WithBlockNumber(ctx, ev.BlockNumber)
	err := d.route(ctx, ev)
	if err != nil {
		return fmt.Errorf("%s %s: %w", ev.EventName, ev.RecordID(), err)
	}
	return nil
}

func (d *Dispatcher) route(ctx context.Context, ev *model.TypedEvent) error {
	switch data := ev.Decoded.(type) {
	case model.SwapEventData:
		return d.Vault.HandleSwap(ctx, ev, data)
	case model.PoolBalanceChangedData:
		return d.Vault.HandleBalanceChange(ctx, ev, data)
	case model.PoolBalanceManagedData:
		return d.Vault.HandleBalanceManaged(ctx, ev, data)
	case model.InternalBalanceChangedData:
		return d.Vault.HandleInternalBalanceChange(ctx, ev, data)

	case model.PoolCreatedData:
		return d.Lifecycle.HandlePoolCreated(ctx, ev, data)

	case model.TransferData:
		return d.Controller.HandleTransfer(ctx, ev, data)
	case model.AmpUpdateStartedData:
		return d.Controller.HandleAmpUpdateStarted(ctx, ev, data)
	case model.AmpUpdateStoppedData:
		return d.Controller.HandleAmpUpdateStopped(ctx, ev, data)
	case model.SwapFeePercentageChangedData:
		return d.Controller.HandleSwapFeePercentageChanged(ctx, ev, data)
	case model.GradualSwapFeeUpdateScheduledData:
		return d.Controller.HandleGradualSwapFeeUpdateScheduled(ctx, ev, data)
	case model.GradualWeightUpdateScheduledData:
		return d.Controller.HandleGradualWeightUpdateScheduled(ctx, ev, data)
	case model.RateProviderSetData:
		return d.Controller.HandleRateProviderSet(ctx, ev, data)
	case model.RateCacheUpdatedData:
		return d.Controller.HandleRateCacheUpdated(ctx, ev, data)
	case model.TargetsSetData:
		return d.Controller.HandleTargetsSet(ctx, ev, data)
	case model.SwapEnabledSetData:
		return d.Controller.HandleSwapEnabledSet(ctx, ev, data)
	case model.PausedStateChangedData:
		return d.Controller.HandlePausedStateChanged(ctx, ev, data)
	case model.RecoveryModeStateChangedData:
		return d.Controller.HandleRecoveryModeStateChanged(ctx, ev, data)
	case model.ProtocolFeePercentageCacheUpdatedData:
		return d.Controller.HandleProtocolFeePercentageCacheUpdated(ctx, ev, data)
	case model.MustAllowlistLPsSetData:
		return d.Controller.HandleMustAllowlistLPsSet(ctx, ev, data)
	case model.JoinExitEnabledSetData:
		return d.Controller.HandleJoinExitEnabledSet(ctx, ev, data)
	case model.ManagementAumFeeCollectedData:
		return d.Controller.HandleManagementAumFeeCollected(ctx, ev, data)
	case model.ManagementAumFeePercentageChangedData:
		return d.Controller.HandleManagementAumFeePercentageChanged(ctx, ev, data)
	case model.CircuitBreakerSetData:
		return d.Controller.HandleCircuitBreakerSet(ctx, ev, data)
	case model.TokenAddedData:
		return d.Controller.HandleTokenAdded(ctx, ev, data)
	case model.TokenRemovedData:
		return d.Controller.HandleTokenRemoved(ctx, ev, data)
	case model.FXParametersSetData:
		return d.Controller.HandleFXParametersSet(ctx, ev, data)
	case model.AnswerUpdatedData:
		return d.Controller.HandleAnswerUpdated(ctx, ev, data)

	case model.EpochAddedData:
		return d.Rewards.HandleEpochAdded(ctx, ev, data)
	case model.ClaimedData:
		return d.Rewards.HandleClaimed(ctx, ev, data)
	case model.EpochRemovedData:
		return d.Rewards.HandleEpochRemoved(ctx, ev, data)
	}

	if d.Logger != nil {
		d.Logger.Debug("no handler for event", zap.String("event", ev.EventName), zap.String("address", ev.Address))
	}
	return nil
}
