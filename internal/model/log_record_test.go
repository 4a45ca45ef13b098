package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		ChainID:     1,
		BlockNumber: 12272146,
		BlockHash:   "0xabc123",
		TxHash:      "0xdef456",
		TxIndex:     7,
		TxFrom:      "0x2222222222222222222222222222222222222222",
		LogIndex:    12,
		Address:     "0xba12222222228d8ba445958a75a0704d566bf2c8",
		Topics:      []string{"0xaaa", "0xbbb"},
		Data:        "0xdeadbeef",
		Timestamp:   1700000000,
		IngestedAt:  "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestLogRecordOmitsUnresolvedSender(t *testing.T) {
	b, err := json.Marshal(LogRecord{TxHash: "0x01"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(b), "tx_from") {
		t.Fatalf("tx_from should be omitted when empty: %s", b)
	}
}

func TestNewDecodeError(t *testing.T) {
	rec := LogRecord{ChainID: 137, BlockNumber: 9, TxHash: "0x09", LogIndex: 4, Address: "0xabc", Topics: []string{"0xtopic", "0xother"}}
	got := NewDecodeError(rec, errors.New("short data"))

	want := DecodeError{ChainID: 137, BlockNumber: 9, TxHash: "0x09", LogIndex: 4, Address: "0xabc", Topic0: "0xtopic", Error: "short data"}
	if got != want {
		t.Fatalf("decode error mismatch: %+v != %+v", got, want)
	}

	if NewDecodeError(LogRecord{}, errors.New("missing topics")).Topic0 != "" {
		t.Fatalf("topic0 should be empty without topics")
	}
}
