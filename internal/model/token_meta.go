package model

// TokenMeta captures ERC20 metadata. Each Has flag is false when that call reverted.
type TokenMeta struct {
	Address     string `json:"address"`
	Decimals    uint8  `json:"decimals"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	HasDecimals bool   `json:"has_decimals"`
	HasSymbol   bool   `json:"has_symbol"`
	HasName     bool   `json:"has_name"`
}
