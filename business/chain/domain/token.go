package domain

import (
	"encoding/json"
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenMetadata describes an ERC-20 token as read from its contract.
type TokenMetadata struct {
	ChainID     uint64      `json:"chainId"`
	Address     string      `json:"address"`
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol"`
	Decimals    uint8       `json:"decimals"`
	TotalSupply TokenAmount `json:"totalSupply"`
}

// TokenAmount is an immutable quantity in a token's smallest unit, paired
// with the token's decimals so display conversion cannot drift from the
// raw value.
type TokenAmount struct {
	raw      *big.Int
	decimals uint8
}

// NewTokenAmount creates a TokenAmount. The raw value is copied.
func NewTokenAmount(raw *big.Int, decimals uint8) TokenAmount {
	if raw == nil {
		raw = big.NewInt(0)
	}
	return TokenAmount{
		raw:      new(big.Int).Set(raw),
		decimals: decimals,
	}
}

// Raw returns a copy of the smallest-unit value.
func (a TokenAmount) Raw() *big.Int {
	if a.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.raw)
}

// Decimals returns the token's decimal places.
func (a TokenAmount) Decimals() uint8 {
	return a.decimals
}

// IsZero reports whether the amount is zero.
func (a TokenAmount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

// ToDecimal converts to a human-unit decimal for display.
func (a TokenAmount) ToDecimal() decimal.Decimal {
	if a.raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.decimals))
}

// String returns the human-unit value, e.g. "1000000.5".
func (a TokenAmount) String() string {
	return a.ToDecimal().String()
}

// StringFixed returns the human-unit value with fixed decimal places.
func (a TokenAmount) StringFixed(places int32) string {
	return a.ToDecimal().StringFixed(places)
}

// MarshalJSON encodes the amount as its human-unit string.
func (a TokenAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}
