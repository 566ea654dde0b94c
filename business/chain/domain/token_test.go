package domain

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTokenAmount_ToDecimal(t *testing.T) {
	// 1.5 tokens with 18 decimals
	raw, _ := new(big.Int).SetString("1500000000000000000", 10)
	amount := NewTokenAmount(raw, 18)

	want := decimal.RequireFromString("1.5")
	if !amount.ToDecimal().Equal(want) {
		t.Errorf("expected 1.5, got %s", amount.ToDecimal().String())
	}
	if amount.String() != "1.5" {
		t.Errorf("expected '1.5', got %q", amount.String())
	}
}

func TestTokenAmount_SixDecimals(t *testing.T) {
	// USDC-style 6-decimal token
	amount := NewTokenAmount(big.NewInt(2_500_000), 6)

	if got := amount.StringFixed(2); got != "2.50" {
		t.Errorf("expected '2.50', got %q", got)
	}
}

func TestTokenAmount_NilRawIsZero(t *testing.T) {
	amount := NewTokenAmount(nil, 18)

	if !amount.IsZero() {
		t.Error("expected zero amount")
	}
}

func TestTokenAmount_RawIsCopied(t *testing.T) {
	raw := big.NewInt(100)
	amount := NewTokenAmount(raw, 0)

	raw.SetInt64(999)
	if amount.Raw().Int64() != 100 {
		t.Errorf("amount mutated through caller's big.Int: got %d", amount.Raw().Int64())
	}

	amount.Raw().SetInt64(777)
	if amount.Raw().Int64() != 100 {
		t.Errorf("amount mutated through accessor: got %d", amount.Raw().Int64())
	}
}

func TestTokenAmount_MarshalJSON(t *testing.T) {
	amount := NewTokenAmount(big.NewInt(1e18), 18)

	data, err := json.Marshal(amount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"1"` {
		t.Errorf("expected \"1\", got %s", data)
	}
}

func TestNetworkStatus_Ready(t *testing.T) {
	status := NetworkStatus{State: StateConnected}
	if !status.Ready() {
		t.Error("connected network should be ready")
	}

	for _, state := range []ConnectionState{StateProbing, StateDegraded} {
		status.State = state
		if status.Ready() {
			t.Errorf("state %s should not be ready", state)
		}
	}
}
