package indexer

import (
	"context"

	"go.uber.org/zap"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

// Replay applies a raw-log archive in file order. Archives are written in
// application order, so no re-sorting happens here. It returns the number of
// events applied.
func Replay(ctx context.Context, path string, decoder Decoder, applier Applier, failOnInvariant bool, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	applied := 0
	err := storage.ReadJsonl(path, func(record model.LogRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if record.Removed || len(record.Topics) == 0 || !decoder.CanDecode(record.Topics[0]) {
			return nil
		}
		ev, err := decoder.Decode(record)
		if err != nil {
			logger.Warn("decode failed", zap.Error(err),
				zap.String("tx_hash", record.TxHash), zap.Uint64("log_index", record.LogIndex))
			return nil
		}
		if err := applyEvent(ctx, applier, ev, failOnInvariant, logger); err != nil {
			return err
		}
		applied++
		return nil
	})
	return applied, err
}
