package broker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirection(t *testing.T) {
	t.Parallel()

	assert.True(t, Long.Valid())
	assert.True(t, Short.Valid())
	assert.False(t, Direction(0).Valid())
	assert.False(t, Direction(2).Valid())

	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, "buy", Long.String())
	assert.Equal(t, "sell", Short.String())

	for in, want := range map[string]Direction{"buy": Long, "LONG": Long, "+1": Long, "sell": Short, "-1": Short} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDirection("hold")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseOrderKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]OrderKind{"market": Market, "Limit": Limit, "STOP": Stop} {
		got, err := ParseOrderKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseOrderKind("iceberg")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOrderRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     OrderRequest
		wantErr bool
	}{
		{"market ignores price", OrderRequest{Instrument: "rb2501", Kind: Market, Direction: Long, Qty: 1}, false},
		{"limit with price", OrderRequest{Instrument: "rb2501", Kind: Limit, Direction: Short, Qty: 3, Price: 3300}, false},
		{"missing instrument", OrderRequest{Kind: Market, Direction: Long, Qty: 1}, true},
		{"zero qty", OrderRequest{Instrument: "rb2501", Kind: Market, Direction: Long, Qty: 0}, true},
		{"negative qty", OrderRequest{Instrument: "rb2501", Kind: Market, Direction: Long, Qty: -2}, true},
		{"bad direction", OrderRequest{Instrument: "rb2501", Kind: Market, Direction: 0, Qty: 1}, true},
		{"bad kind", OrderRequest{Instrument: "rb2501", Kind: "FOK", Direction: Long, Qty: 1}, true},
		{"stop without price", OrderRequest{Instrument: "rb2501", Kind: Stop, Direction: Long, Qty: 1}, true},
		{"limit NaN price", OrderRequest{Instrument: "rb2501", Kind: Limit, Direction: Long, Qty: 1, Price: math.NaN()}, true},
		{"limit Inf price", OrderRequest{Instrument: "rb2501", Kind: Limit, Direction: Long, Qty: 1, Price: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAccountWinRate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Account{}.WinRate())
	assert.Equal(t, 0.75, Account{TradeCount: 4, WinCount: 3}.WinRate())
}
