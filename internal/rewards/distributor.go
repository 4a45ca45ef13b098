package rewards

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"vaultScope/internal/entity"
	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

// Distributor applies EpochAdded, Claimed and EpochRemoved events.
type Distributor struct {
	store  store.Store
	blobs  BlobStore
	logger *zap.Logger
}

func NewDistributor(s store.Store, blobs BlobStore, logger *zap.Logger) *Distributor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Distributor{store: s, blobs: blobs, logger: logger}
}

func entryID(cid, address string) string { return cid + "-" + address }

// HandleEpochAdded records the epoch and loads its allocations. A blob that
// cannot be fetched or parsed leaves the snapshot marked unfetched.
func (d *Distributor) HandleEpochAdded(ctx context.Context, ev *model.TypedEvent, data model.EpochAddedData) error {
	snapshot := &model.RewardSnapshot{
		ID:             epochID(data.Epoch),
		BlockNumber:    ev.BlockNumber,
		BlockTimestamp: ev.Time(),
		CID:            data.CID,
	}

	allocations := d.load(ctx, data.CID)
	if len(allocations) == 0 {
		return store.Save(ctx, d.store, snapshot)
	}

	dist := &model.RewardDistribution{ID: data.CID, Users: make([]string, 0, len(allocations))}
	for _, a := range allocations {
		entry := &model.UserRewardData{
			ID:            entryID(data.CID, a.Address),
			Address:       a.Address,
			Distribution:  data.CID,
			InitialAmount: a.Amount,
			ClaimedAmount: new(big.Int),
		}
		user, err := store.GetOrCreate[model.UserReward](ctx, d.store, a.Address, func() *model.UserReward {
			return &model.UserReward{ID: a.Address, AvailableForClaim: new(big.Int), ClaimedAmount: new(big.Int)}
		})
		if err != nil {
			return err
		}
		user.AvailableForClaim = new(big.Int).Add(orZero(user.AvailableForClaim), a.Amount)
		if err := store.SaveAll(ctx, d.store, entry, user); err != nil {
			return err
		}
		dist.Users = append(dist.Users, entry.ID)
	}

	snapshot.SuccessfullyFetched = true
	snapshot.Distribution = dist.ID
	return store.SaveAll(ctx, d.store, dist, snapshot)
}

func (d *Distributor) load(ctx context.Context, cid string) []Allocation {
	if d.blobs == nil {
		return nil
	}
	raw, ok := d.blobs.Fetch(ctx, cid)
	if !ok {
		d.logger.Warn("reward blob unavailable", zap.String("cid", cid))
		return nil
	}
	allocations, err := ParseDistribution(raw)
	if err != nil {
		d.logger.Warn("malformed reward blob", zap.String("cid", cid), zap.Error(err))
		return nil
	}
	return allocations
}

// HandleClaimed books a claim against the claimant's entry for the epoch.
func (d *Distributor) HandleClaimed(ctx context.Context, ev *model.TypedEvent, data model.ClaimedData) error {
	snapshot, err := d.fetchedSnapshot(ctx, ev, data.Epoch)
	if err != nil || snapshot == nil {
		return err
	}
	address := entity.Addr(data.Claimant)
	user, err := store.Load[model.UserReward](ctx, d.store, address)
	if err != nil {
		return err
	}
	if user == nil {
		d.logger.Warn("claimant has no rewards", zap.String("user", address), zap.String("tx_hash", ev.TxHash))
		return nil
	}
	entry, err := store.Load[model.UserRewardData](ctx, d.store, entryID(snapshot.CID, address))
	if err != nil {
		return err
	}
	if entry == nil {
		d.logger.Warn("claimant not in distribution",
			zap.String("user", address), zap.String("cid", snapshot.CID), zap.String("tx_hash", ev.TxHash))
		return nil
	}
	balance := orZero(data.Balance)
	if orZero(entry.InitialAmount).Cmp(balance) < 0 {
		d.logger.Warn("claim exceeds allocation",
			zap.String("user", address), zap.String("allocation", orZero(entry.InitialAmount).String()),
			zap.String("claimed", balance.String()))
		return nil
	}

	entry.ClaimedAmount = new(big.Int).Add(orZero(entry.ClaimedAmount), balance)
	entry.Claimed = true
	user.AvailableForClaim = new(big.Int).Sub(orZero(user.AvailableForClaim), orZero(entry.InitialAmount))
	user.ClaimedAmount = new(big.Int).Add(orZero(user.ClaimedAmount), balance)
	return store.SaveAll(ctx, d.store, entry, user)
}

// HandleEpochRemoved withdraws the epoch's allocations. It stops at the first
// entry that was already claimed; entries before it stay removed.
func (d *Distributor) HandleEpochRemoved(ctx context.Context, ev *model.TypedEvent, data model.EpochRemovedData) error {
	snapshot, err := d.fetchedSnapshot(ctx, ev, data.Epoch)
	if err != nil || snapshot == nil {
		return err
	}
	dist, err := store.Load[model.RewardDistribution](ctx, d.store, snapshot.Distribution)
	if err != nil {
		return err
	}
	if dist == nil {
		d.logger.Warn("reward distribution missing", zap.String("cid", snapshot.CID))
		return nil
	}

	for _, id := range dist.Users {
		entry, err := store.Load[model.UserRewardData](ctx, d.store, id)
		if err != nil {
			return err
		}
		if entry == nil {
			continue
		}
		user, err := store.Load[model.UserReward](ctx, d.store, entry.Address)
		if err != nil {
			return err
		}
		if user == nil {
			d.logger.Warn("reward entry without user", zap.String("user", entry.Address), zap.String("cid", snapshot.CID))
			return nil
		}
		if entry.Claimed {
			d.logger.Warn("epoch removal stopped at claimed entry",
				zap.String("user", entry.Address), zap.String("epoch", snapshot.ID))
			return nil
		}

		user.AvailableForClaim = new(big.Int).Sub(orZero(user.AvailableForClaim), orZero(entry.InitialAmount))
		if user.AvailableForClaim.Sign() == 0 {
			err = store.Remove(ctx, d.store, model.KindUserReward, user.ID)
		} else {
			err = store.Save(ctx, d.store, user)
		}
		if err != nil {
			return err
		}
		if err := store.Remove(ctx, d.store, model.KindUserRewardData, entry.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Distributor) fetchedSnapshot(ctx context.Context, ev *model.TypedEvent, epoch *big.Int) (*model.RewardSnapshot, error) {
	snapshot, err := store.Load[model.RewardSnapshot](ctx, d.store, epochID(epoch))
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		d.logger.Warn("unknown reward epoch", zap.String("epoch", epochID(epoch)), zap.String("tx_hash", ev.TxHash))
		return nil, nil
	}
	if !snapshot.SuccessfullyFetched || snapshot.Distribution == "" {
		d.logger.Warn("reward epoch not fetched", zap.String("epoch", snapshot.ID), zap.String("cid", snapshot.CID))
		return nil, nil
	}
	return snapshot, nil
}

func epochID(epoch *big.Int) string { return orZero(epoch).String() }

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
