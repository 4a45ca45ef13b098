package contracts

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asAddresses(value interface{}) ([]common.Address, error) {
	switch v := value.(type) {
	case []common.Address:
		out := make([]common.Address, len(v))
		copy(out, v)
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported address list type %T", value)
	}
}

func asHash(value interface{}) (common.Hash, error) {
	switch v := value.(type) {
	case common.Hash:
		return v, nil
	case [32]byte:
		return common.Hash(v), nil
	case []byte:
		return common.BytesToHash(v), nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported bytes32 type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asBigInts(value interface{}) ([]*big.Int, error) {
	switch v := value.(type) {
	case []*big.Int:
		out := make([]*big.Int, len(v))
		for i, x := range v {
			out[i] = new(big.Int).Set(x)
		}
		return out, nil
	case [2]*big.Int:
		return []*big.Int{new(big.Int).Set(v[0]), new(big.Int).Set(v[1])}, nil
	default:
		return nil, fmt.Errorf("unsupported int list type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func asBool(value interface{}) (bool, error) {
	v, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("unsupported bool type %T", value)
	}
	return v, nil
}

func asString(value interface{}) (string, error) {
	v, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unsupported string type %T", value)
	}
	return v, nil
}

// fields reads named values out of a decoded event map, keeping the first error.
type fields struct {
	m   map[string]interface{}
	err error
}

func (f *fields) get(name string) interface{} {
	v, ok := f.m[name]
	if !ok && f.err == nil {
		f.err = fmt.Errorf("missing field %s", name)
	}
	return v
}

func (f *fields) bigInt(name string) *big.Int {
	v := f.get(name)
	if f.err != nil {
		return nil
	}
	out, err := asBigInt(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
	}
	return out
}

func (f *fields) bigInts(name string) []*big.Int {
	v := f.get(name)
	if f.err != nil {
		return nil
	}
	out, err := asBigInts(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
	}
	return out
}

func (f *fields) address(name string) common.Address {
	v := f.get(name)
	if f.err != nil {
		return common.Address{}
	}
	out, err := asAddress(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
	}
	return out
}

func (f *fields) addresses(name string) []common.Address {
	v := f.get(name)
	if f.err != nil {
		return nil
	}
	out, err := asAddresses(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
	}
	return out
}

func (f *fields) hash(name string) common.Hash {
	v := f.get(name)
	if f.err != nil {
		return common.Hash{}
	}
	out, err := asHash(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
	}
	return out
}

func (f *fields) boolean(name string) bool {
	v := f.get(name)
	if f.err != nil {
		return false
	}
	out, err := asBool(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
	}
	return out
}

func (f *fields) str(name string) string {
	v := f.get(name)
	if f.err != nil {
		return ""
	}
	out, err := asString(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
	}
	return out
}
