// Package shares keeps the BPT ledger: holder balances, total shares and holder counts.
package shares

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"vaultScope/internal/entity"
	"vaultScope/internal/model"
)

// ZeroAddress is the mint source and burn sink.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// MaxBPT is the supply preminted by virtual-supply pools, 2^112 wei at 18 decimals.
var MaxBPT = decimal.RequireFromString("5192296858534827.628530496329220095")

// BPTDecimals is the decimals of every pool token.
const BPTDecimals = 18

// Movement describes an applied BPT movement.
type Movement struct {
	Mint bool
	Burn bool
	From string
	To   string
}

// Ledger applies BPT mints, burns and transfers.
type Ledger struct {
	repo  *entity.Repo
	vault string
}

func NewLedger(repo *entity.Repo, vaultAddress string) *Ledger {
	return &Ledger{repo: repo, vault: strings.ToLower(vaultAddress)}
}

// Vault is the vault address BPT premints are held by.
func (l *Ledger) Vault() string { return l.vault }

// Apply moves amount of the pool's BPT from one holder to another. A zero from
// mints and a zero to burns, adjusting TotalShares. HoldersCount follows balances
// crossing zero. pool is mutated in place and saved with the shares.
func (l *Ledger) Apply(ctx context.Context, pool *model.Pool, from, to string, amount decimal.Decimal) (Movement, error) {
	from, to = strings.ToLower(from), strings.ToLower(to)
	mv := Movement{Mint: from == ZeroAddress, Burn: to == ZeroAddress, From: from, To: to}
	changed := []model.Entity{pool}

	if mv.Mint {
		pool.TotalShares = pool.TotalShares.Add(amount)
	} else {
		share, err := l.repo.PoolShare(ctx, pool.Address, from)
		if err != nil {
			return mv, err
		}
		before := share.Balance
		share.Balance = share.Balance.Sub(amount)
		if !before.IsZero() && share.Balance.IsZero() {
			pool.HoldersCount--
		}
		changed = append(changed, share)
	}

	if mv.Burn {
		pool.TotalShares = pool.TotalShares.Sub(amount)
	} else {
		share, err := l.repo.PoolShare(ctx, pool.Address, to)
		if err != nil {
			return mv, err
		}
		before := share.Balance
		share.Balance = share.Balance.Add(amount)
		if before.IsZero() && !share.Balance.IsZero() {
			pool.HoldersCount++
		}
		changed = append(changed, share)
	}

	return mv, l.repo.Save(ctx, changed...)
}

// CorrectPremint burns amount from the vault's recorded holdings, removing
// preminted BPT from the virtual supply.
func (l *Ledger) CorrectPremint(ctx context.Context, pool *model.Pool, amount decimal.Decimal) error {
	_, err := l.Apply(ctx, pool, l.vault, ZeroAddress, amount)
	return err
}

// Mint credits amount of new virtual supply to the vault.
func (l *Ledger) Mint(ctx context.Context, pool *model.Pool, amount decimal.Decimal) error {
	_, err := l.Apply(ctx, pool, ZeroAddress, l.vault, amount)
	return err
}
