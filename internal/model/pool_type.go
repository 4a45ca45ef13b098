package model

import (
	"fmt"
	"strings"
)

// PoolType is the closed set of pool variants the engine understands.
type PoolType string

const (
	PoolTypeWeighted               PoolType = "Weighted"
	PoolTypeLiquidityBootstrapping PoolType = "LiquidityBootstrapping"
	PoolTypeInvestment             PoolType = "Investment"
	PoolTypeManaged                PoolType = "Managed"
	PoolTypeStable                 PoolType = "Stable"
	PoolTypeMetaStable             PoolType = "MetaStable"
	PoolTypeStablePhantom          PoolType = "StablePhantom"
	PoolTypeComposableStable       PoolType = "ComposableStable"
	PoolTypeLinear                 PoolType = "Linear"
	PoolTypeAaveLinear             PoolType = "AaveLinear"
	PoolTypeERC4626Linear          PoolType = "ERC4626Linear"
	PoolTypeEulerLinear            PoolType = "EulerLinear"
	PoolTypeGearboxLinear          PoolType = "GearboxLinear"
	PoolTypeYearnLinear            PoolType = "YearnLinear"
	PoolTypeBeefyLinear            PoolType = "BeefyLinear"
	PoolTypeSiloLinear             PoolType = "SiloLinear"
	PoolTypeReaperLinear           PoolType = "ReaperLinear"
	PoolTypeGyro2                  PoolType = "Gyro2"
	PoolTypeGyro3                  PoolType = "Gyro3"
	PoolTypeGyroE                  PoolType = "GyroE"
	PoolTypeFX                     PoolType = "FX"
	PoolTypeElement                PoolType = "Element"
)

var allPoolTypes = []PoolType{
	PoolTypeWeighted, PoolTypeLiquidityBootstrapping, PoolTypeInvestment, PoolTypeManaged,
	PoolTypeStable, PoolTypeMetaStable, PoolTypeStablePhantom, PoolTypeComposableStable,
	PoolTypeLinear, PoolTypeAaveLinear, PoolTypeERC4626Linear, PoolTypeEulerLinear,
	PoolTypeGearboxLinear, PoolTypeYearnLinear, PoolTypeBeefyLinear, PoolTypeSiloLinear,
	PoolTypeReaperLinear, PoolTypeGyro2, PoolTypeGyro3, PoolTypeGyroE, PoolTypeFX, PoolTypeElement,
}

// ParsePoolType resolves a case-insensitive pool type name.
func ParsePoolType(s string) (PoolType, error) {
	for _, t := range allPoolTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown pool type %q", s)
}

// IsStableLike reports whether the pool's pricing follows the StableSwap curve.
func (t PoolType) IsStableLike() bool {
	switch t {
	case PoolTypeStable, PoolTypeMetaStable, PoolTypeStablePhantom, PoolTypeComposableStable:
		return true
	}
	return false
}

// IsVariableWeight reports whether normalized weights drift after creation.
func (t PoolType) IsVariableWeight() bool {
	switch t {
	case PoolTypeLiquidityBootstrapping, PoolTypeInvestment, PoolTypeManaged:
		return true
	}
	return false
}

// IsWeighted reports whether the pool exposes getNormalizedWeights.
func (t PoolType) IsWeighted() bool {
	return t == PoolTypeWeighted || t.IsVariableWeight()
}

func (t PoolType) IsLinear() bool {
	switch t {
	case PoolTypeLinear, PoolTypeAaveLinear, PoolTypeERC4626Linear, PoolTypeEulerLinear,
		PoolTypeGearboxLinear, PoolTypeYearnLinear, PoolTypeBeefyLinear, PoolTypeSiloLinear,
		PoolTypeReaperLinear:
		return true
	}
	return false
}

// HasVirtualSupply reports whether the pool's own BPT can be a swap leg.
func (t PoolType) HasVirtualSupply() bool {
	return t.IsLinear() || t == PoolTypeStablePhantom || t == PoolTypeComposableStable
}

// PremintsOnJoin reports whether the preminted BPT shows up in the initializing join.
func (t PoolType) PremintsOnJoin() bool {
	switch t {
	case PoolTypeStablePhantom, PoolTypeComposableStable, PoolTypeManaged:
		return true
	}
	return false
}

func (t PoolType) IsFX() bool               { return t == PoolTypeFX }
func (t PoolType) IsManaged() bool          { return t == PoolTypeManaged }
func (t PoolType) IsComposableStable() bool { return t == PoolTypeComposableStable }

func (t PoolType) IsGyro() bool {
	return t == PoolTypeGyro2 || t == PoolTypeGyro3 || t == PoolTypeGyroE
}
