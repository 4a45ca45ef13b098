// Package entity holds the typed get-or-create accessors over the entity store.
package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultScope/internal/contracts"
	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

// ErrMissingPoolToken signals a PoolToken that must exist by construction is absent.
// Processing the event further would corrupt balances.
var ErrMissingPoolToken = errors.New("pool token missing")

// Repo bundles the store with the contract reader used when a Token is first seen.
type Repo struct {
	Store  store.Store
	Reader contracts.Reader
	Logger *zap.Logger
}

func New(s store.Store, reader contracts.Reader, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reader == nil {
		reader = &contracts.Stub{}
	}
	return &Repo{Store: s, Reader: reader, Logger: logger}
}

// Addr normalizes an address to the lowercase hex form used in ids.
func Addr(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// PoolID normalizes a vault pool id.
func PoolID(h common.Hash) string {
	return strings.ToLower(h.Hex())
}

func PoolTokenID(poolID, token string) string {
	return poolID + "-" + strings.ToLower(token)
}

func PoolShareID(poolAddress, user string) string {
	return strings.ToLower(poolAddress) + "-" + strings.ToLower(user)
}

// TradePairID sorts the two token addresses so both swap directions share a pair.
func TradePairID(a, b string) (string, string, string) {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if b < a {
		a, b = b, a
	}
	return a + "-" + b, a, b
}

// Save persists entities in order.
func (r *Repo) Save(ctx context.Context, entities ...model.Entity) error {
	return store.SaveAll(ctx, r.Store, entities...)
}

// Token loads or creates the token, reading decimals, symbol and name once.
// Each read is guarded; a reverted read leaves the field empty or zero.
func (r *Repo) Token(ctx context.Context, address string) (*model.Token, error) {
	id := strings.ToLower(address)
	return store.GetOrCreate[model.Token](ctx, r.Store, id, func() *model.Token {
		meta := r.Reader.TokenMeta(ctx, common.HexToAddress(id))
		if !meta.HasDecimals {
			r.Logger.Warn("token decimals unavailable", zap.String("token", id))
		}
		return &model.Token{
			ID:       id,
			Address:  id,
			Name:     meta.Name,
			Symbol:   meta.Symbol,
			Decimals: int(meta.Decimals),
		}
	})
}

// LoadToken returns the token or nil.
func (r *Repo) LoadToken(ctx context.Context, address string) (*model.Token, error) {
	return store.Load[model.Token](ctx, r.Store, strings.ToLower(address))
}

// LoadPool returns the pool or nil.
func (r *Repo) LoadPool(ctx context.Context, poolID string) (*model.Pool, error) {
	return store.Load[model.Pool](ctx, r.Store, strings.ToLower(poolID))
}

// PoolByAddress resolves a pool contract address through its PoolContract record.
func (r *Repo) PoolByAddress(ctx context.Context, address string) (*model.Pool, error) {
	pc, err := store.Load[model.PoolContract](ctx, r.Store, strings.ToLower(address))
	if err != nil || pc == nil {
		return nil, err
	}
	return r.LoadPool(ctx, pc.Pool)
}

// NewPool returns a pool with creation defaults.
func NewPool(id, address string, poolType model.PoolType, version int) *model.Pool {
	return &model.Pool{
		ID:                  strings.ToLower(id),
		Address:             strings.ToLower(address),
		PoolType:            poolType,
		PoolTypeVersion:     version,
		VaultID:             model.VaultID,
		TokensList:          []string{},
		SwapEnabled:         true,
		SwapEnabledInternal: true,
		JoinExitEnabled:     true,
		SwapFee:             fixed.Zero,
		TotalShares:         fixed.Zero,
		TotalSwapVolume:     fixed.Zero,
		TotalSwapFee:        fixed.Zero,
		TotalLiquidity:      fixed.Zero,
	}
}

// LoadPoolToken returns the pool token or nil.
func (r *Repo) LoadPoolToken(ctx context.Context, poolID, token string) (*model.PoolToken, error) {
	return store.Load[model.PoolToken](ctx, r.Store, PoolTokenID(poolID, token))
}

// PoolTokens loads the pool's tokens in tokensList order. A missing entry is an error.
func (r *Repo) PoolTokens(ctx context.Context, pool *model.Pool) ([]*model.PoolToken, error) {
	out := make([]*model.PoolToken, 0, len(pool.TokensList))
	for _, token := range pool.TokensList {
		pt, err := r.LoadPoolToken(ctx, pool.ID, token)
		if err != nil {
			return nil, err
		}
		if pt == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingPoolToken, PoolTokenID(pool.ID, token))
		}
		out = append(out, pt)
	}
	return out, nil
}

// CreatePoolToken creates the PoolToken for token at index, creating the Token if needed.
func (r *Repo) CreatePoolToken(ctx context.Context, pool *model.Pool, token string, index int, assetManager string) (*model.PoolToken, error) {
	t, err := r.Token(ctx, token)
	if err != nil {
		return nil, err
	}
	return store.GetOrCreate[model.PoolToken](ctx, r.Store, PoolTokenID(pool.ID, token), func() *model.PoolToken {
		return &model.PoolToken{
			ID:             PoolTokenID(pool.ID, token),
			PoolID:         pool.ID,
			Token:          t.ID,
			Address:        t.ID,
			Name:           t.Name,
			Symbol:         t.Symbol,
			Decimals:       t.Decimals,
			Index:          index,
			AssetManager:   strings.ToLower(assetManager),
			Balance:        fixed.Zero,
			CashBalance:    fixed.Zero,
			ManagedBalance: fixed.Zero,
			Invested:       fixed.Zero,
			PriceRate:      fixed.One,
		}
	})
}

// Vault loads or creates the singleton vault aggregate.
func (r *Repo) Vault(ctx context.Context) (*model.Balancer, error) {
	return store.GetOrCreate[model.Balancer](ctx, r.Store, model.VaultID, func() *model.Balancer {
		return &model.Balancer{
			ID:              model.VaultID,
			TotalLiquidity:  fixed.Zero,
			TotalSwapVolume: fixed.Zero,
			TotalSwapFee:    fixed.Zero,
		}
	})
}

func (r *Repo) User(ctx context.Context, address string) (*model.User, error) {
	id := strings.ToLower(address)
	return store.GetOrCreate[model.User](ctx, r.Store, id, func() *model.User {
		return &model.User{ID: id, TotalSwapVolume: fixed.Zero, TotalSwapFee: fixed.Zero}
	})
}

func (r *Repo) PoolShare(ctx context.Context, poolAddress, user string) (*model.PoolShare, error) {
	id := PoolShareID(poolAddress, user)
	return store.GetOrCreate[model.PoolShare](ctx, r.Store, id, func() *model.PoolShare {
		return &model.PoolShare{
			ID:          id,
			UserAddress: strings.ToLower(user),
			PoolID:      strings.ToLower(poolAddress),
			Balance:     fixed.Zero,
		}
	})
}

func (r *Repo) TradePair(ctx context.Context, tokenA, tokenB string) (*model.TradePair, error) {
	id, t0, t1 := TradePairID(tokenA, tokenB)
	return store.GetOrCreate[model.TradePair](ctx, r.Store, id, func() *model.TradePair {
		return &model.TradePair{ID: id, Token0: t0, Token1: t1, TotalSwapVolume: fixed.Zero, TotalSwapFee: fixed.Zero}
	})
}

// InternalBalance loads or creates a user's vault internal balance for token.
func (r *Repo) InternalBalance(ctx context.Context, user, token string) (*model.UserInternalBalance, error) {
	id := strings.ToLower(user) + "-" + strings.ToLower(token)
	return store.GetOrCreate[model.UserInternalBalance](ctx, r.Store, id, func() *model.UserInternalBalance {
		return &model.UserInternalBalance{
			ID:          id,
			UserAddress: strings.ToLower(user),
			Token:       strings.ToLower(token),
			Balance:     fixed.Zero,
		}
	})
}
