package model

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestTypedEventRecordID(t *testing.T) {
	ev := TypedEvent{TxHash: "0xabc", LogIndex: 17}
	if got := ev.RecordID(); got != "0xabc17" {
		t.Fatalf("unexpected record id %q", got)
	}
}

func TestSwapEventDataJSONNumbers(t *testing.T) {
	amountIn, _ := new(big.Int).SetString("12345678901234567890123", 10)
	payload := SwapEventData{
		PoolID:    common.HexToHash("0x01"),
		TokenIn:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		TokenOut:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
		AmountIn:  amountIn,
		AmountOut: big.NewInt(-42),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded SwapEventData
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.AmountIn.Cmp(amountIn) != 0 {
		t.Fatalf("amount_in lost precision: %s", decoded.AmountIn)
	}
	if decoded.TokenOut != payload.TokenOut {
		t.Fatalf("token_out mismatch: %s", decoded.TokenOut.Hex())
	}
}
