// Package pricing values token amounts in USD through the pricing-asset graph.
package pricing

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type assetSet struct {
	pricing []string
	stable  []string
}

// networkAssets lists pricing assets in priority order; stable assets are USD-pegged.
var networkAssets = map[string]assetSet{
	"mainnet": {
		pricing: []string{
			"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", // WETH
			"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", // WBTC
			"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", // USDC
			"0x6b175474e89094c44da98b954eedeac495271d0f", // DAI
			"0xdac17f958d2ee523a2206206994597c13d831ec7", // USDT
			"0xba100000625a3754423978a60c9317c58a424e3d", // BAL
			"0x7f39c581f595b53c5cb19bd0b3f8da6c935e2ca0", // wstETH
		},
		stable: []string{
			"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
			"0x6b175474e89094c44da98b954eedeac495271d0f",
			"0xdac17f958d2ee523a2206206994597c13d831ec7",
		},
	},
	"polygon": {
		pricing: []string{
			"0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270", // WMATIC
			"0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", // WETH
			"0x1bfd67037b42cf73acf2047067bd4f2c47d9bfd6", // WBTC
			"0x2791bca1f2de4661ed88a30c99a7a9449aa84174", // USDC
			"0x8f3cf7ad23cd3cadbd9735aff958023239c6a063", // DAI
			"0xc2132d05d31c914a87c6611c10748aeb04b58e8f", // USDT
			"0x9a71012b13ca4d3d0cdc72a177df3ef03b0e76a3", // BAL
		},
		stable: []string{
			"0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
			"0x8f3cf7ad23cd3cadbd9735aff958023239c6a063",
			"0xc2132d05d31c914a87c6611c10748aeb04b58e8f",
		},
	},
	"arbitrum": {
		pricing: []string{
			"0x82af49447d8a07e3bd95bd0d56f35241523fbab1", // WETH
			"0x2f2a2543b76a4166549f7aab2e75bef0aefc5b0f", // WBTC
			"0xff970a61a04b1ca14834a43f5de4533ebddb5cc8", // USDC.e
			"0xda10009cbd5d07dd0cecc66161fc93d7c9000da1", // DAI
			"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9", // USDT
			"0x040d1edc9569d4bab2d15287dc5a4f10f56a56b8", // BAL
		},
		stable: []string{
			"0xff970a61a04b1ca14834a43f5de4533ebddb5cc8",
			"0xda10009cbd5d07dd0cecc66161fc93d7c9000da1",
			"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9",
		},
	},
	"local": {},
}

// Registry is the fixed set of pricing and stable assets for one network.
// It is read-only after construction.
type Registry struct {
	pricing    []string
	pricingSet map[string]struct{}
	stable     []string
	stableSet  map[string]struct{}
}

// NewRegistry builds the registry for network. Non-empty overrides replace the
// network defaults. Stable assets are always pricing assets as well.
func NewRegistry(network string, pricingOverride, stableOverride []string) (*Registry, error) {
	assets, ok := networkAssets[strings.ToLower(network)]
	if !ok {
		return nil, fmt.Errorf("unknown network %q", network)
	}
	pricing := assets.pricing
	if len(pricingOverride) > 0 {
		pricing = pricingOverride
	}
	stable := assets.stable
	if len(stableOverride) > 0 {
		stable = stableOverride
	}

	r := &Registry{pricingSet: map[string]struct{}{}, stableSet: map[string]struct{}{}}
	for _, a := range stable {
		id, err := normalize(a)
		if err != nil {
			return nil, err
		}
		if _, dup := r.stableSet[id]; !dup {
			r.stableSet[id] = struct{}{}
			r.stable = append(r.stable, id)
		}
	}
	for _, a := range append(append([]string{}, pricing...), r.stable...) {
		id, err := normalize(a)
		if err != nil {
			return nil, err
		}
		if _, dup := r.pricingSet[id]; !dup {
			r.pricingSet[id] = struct{}{}
			r.pricing = append(r.pricing, id)
		}
	}
	return r, nil
}

func normalize(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid asset address %q", addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

func (r *Registry) IsPricingAsset(token string) bool {
	_, ok := r.pricingSet[strings.ToLower(token)]
	return ok
}

// IsStable reports whether token is treated as worth exactly one USD.
func (r *Registry) IsStable(token string) bool {
	_, ok := r.stableSet[strings.ToLower(token)]
	return ok
}

func (r *Registry) PricingAssets() []string { return append([]string(nil), r.pricing...) }
func (r *Registry) StableAssets() []string  { return append([]string(nil), r.stable...) }
