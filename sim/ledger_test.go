package sim

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rustyeddy/replaytrader/broker"
)

func fill(dir broker.Direction, qty int, price decimal.Decimal) Fill {
	return Fill{
		Instrument: rebar,
		Direction:  dir,
		Qty:        qty,
		Price:      price,
		Time:       t0,
		FeePerLot:  decimal.NewFromFloat(rebar.Fee),
		Reason:     ReasonOrder,
	}
}

func TestApplyFillAddsAtVWAP(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100000), seqIDs())
	l.ApplyFill(fill(broker.Long, 1, dec("3300")))
	res := l.ApplyFill(fill(broker.Long, 3, dec("3340")))

	require.NotNil(t, res.Position)
	assert.Equal(t, 4, res.Position.Qty)
	assert.True(t, res.Position.AvgPrice.Equal(dec("3330")), "avg %s", res.Position.AvgPrice)
	assert.False(t, res.Closed)
	require.Len(t, res.Records, 1)
	assert.Equal(t, Open, res.Records[0].Type)
	assert.Equal(t, 3, res.Records[0].Qty)
	assert.True(t, res.Cash.Equal(dec("99980")))
}

func TestApplyFillPartialCloseKeepsAverage(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100000), seqIDs())
	l.ApplyFill(fill(broker.Short, 5, dec("3300")))
	res := l.ApplyFill(fill(broker.Long, 2, dec("3320")))

	require.NotNil(t, res.Position)
	assert.Equal(t, broker.Short, res.Position.Direction)
	assert.Equal(t, 3, res.Position.Qty)
	assert.True(t, res.Position.AvgPrice.Equal(dec("3300")))
	assert.True(t, res.Realized.Equal(dec("-400")))
	assert.False(t, res.Win)

	acct := l.Account()
	assert.Equal(t, 1, acct.TradeCount)
	assert.Equal(t, 0, acct.WinCount)
}

func TestApplyFillExactCloseRemovesPosition(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100000), seqIDs())
	l.ApplyFill(fill(broker.Long, 2, dec("3300")))
	res := l.ApplyFill(fill(broker.Short, 2, dec("3300")))

	assert.Nil(t, res.Position)
	_, ok := l.Position("rb")
	assert.False(t, ok)
	assert.Empty(t, l.Positions())
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].PnL.Decimal.IsZero())
	// a zero result is a trade but not a win
	assert.Equal(t, 1, l.Account().TradeCount)
	assert.Equal(t, 0, l.Account().WinCount)
}

func TestApplyFillSplitsFeeAcrossLegs(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100000), seqIDs())
	l.ApplyFill(fill(broker.Long, 2, dec("3300")))
	res := l.ApplyFill(fill(broker.Short, 5, dec("3310")))

	require.Len(t, res.Records, 2)
	assert.True(t, res.Records[0].Fee.Equal(dec("10")))
	assert.True(t, res.Records[1].Fee.Equal(dec("15")))
	assert.True(t, res.Fee.Equal(dec("25")))
	assert.Equal(t, 3, res.Position.Qty)
}

func TestApplyFillPanicsOnBadQuantity(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100000), seqIDs())
	assert.Panics(t, func() { l.ApplyFill(fill(broker.Long, 0, dec("3300"))) })
	assert.Panics(t, func() { l.ApplyFill(fill(broker.Long, -1, dec("3300"))) })
	assert.Empty(t, l.History())
}

func TestLedgerReset(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(100000), seqIDs())
	l.ApplyFill(fill(broker.Long, 2, dec("3300")))
	l.Reset(decimal.NewFromInt(20000))
	assert.Empty(t, l.Positions())
	assert.Empty(t, l.History())
	acct := l.Account()
	assert.True(t, acct.Cash.Equal(dec("20000")))
	assert.True(t, acct.Initial.Equal(dec("20000")))
	assert.Zero(t, acct.TradeCount)
}

func price(t *rapid.T, label string) decimal.Decimal {
	// cents in [1000.00, 9999.99]
	return decimal.New(int64(rapid.IntRange(100000, 999999).Draw(t, label)), -2)
}

func TestAveragePriceIsVolumeWeighted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		dir := broker.Direction(rapid.SampledFrom([]int{1, -1}).Draw(t, "dir"))
		fills := make([]Fill, n)
		num, qty := decimal.Zero, 0
		for i := range fills {
			q := rapid.IntRange(1, 50).Draw(t, "qty")
			p := price(t, "price")
			fills[i] = fill(dir, q, p)
			num = num.Add(p.Mul(decimal.NewFromInt(int64(q))))
			qty += q
		}
		want := num.Div(decimal.NewFromInt(int64(qty)))

		perm := rapid.Permutation(fills).Draw(t, "order")
		for _, fs := range [][]Fill{fills, perm} {
			l := NewLedger(decimal.NewFromInt(1_000_000_000), seqIDs())
			for _, f := range fs {
				l.ApplyFill(f)
			}
			pos, ok := l.Position("rb")
			if !ok {
				t.Fatalf("position missing")
			}
			if pos.Qty != qty {
				t.Fatalf("qty %d, want %d", pos.Qty, qty)
			}
			if diff := pos.AvgPrice.Sub(want).Abs(); diff.GreaterThan(dec("0.000001")) {
				t.Fatalf("avg %s, want %s", pos.AvgPrice, want)
			}
		}
	})
}

func TestRealizedPnLIsConserved(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dir := broker.Direction(rapid.SampledFrom([]int{1, -1}).Draw(t, "dir"))
		q := rapid.IntRange(1, 100).Draw(t, "qty")
		p0, p1 := price(t, "p0"), price(t, "p1")

		l := NewLedger(decimal.NewFromInt(1_000_000_000), seqIDs())
		l.ApplyFill(fill(dir, q, p0))

		realized := decimal.Zero
		for left := q; left > 0; {
			chunk := rapid.IntRange(1, left).Draw(t, "chunk")
			res := l.ApplyFill(fill(dir.Opposite(), chunk, p1))
			realized = realized.Add(res.Realized)
			left -= chunk
		}

		want := p1.Sub(p0).
			Mul(decimal.NewFromInt(int64(q))).
			Mul(decimal.NewFromInt(int64(dir))).
			Mul(decimal.NewFromFloat(rebar.Multiplier))
		if !realized.Equal(want) {
			t.Fatalf("realized %s, want %s", realized, want)
		}
		if _, ok := l.Position("rb"); ok {
			t.Fatalf("position should be flat")
		}
	})
}

func TestReversalYieldsCloseAndReverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dir := broker.Direction(rapid.SampledFrom([]int{1, -1}).Draw(t, "dir"))
		held := rapid.IntRange(1, 50).Draw(t, "held")
		extra := rapid.IntRange(1, 50).Draw(t, "extra")

		l := NewLedger(decimal.NewFromInt(1_000_000_000), seqIDs())
		l.ApplyFill(fill(dir, held, price(t, "p0")))
		res := l.ApplyFill(fill(dir.Opposite(), held+extra, price(t, "p1")))

		if len(res.Records) != 2 || res.Records[0].Type != Close || res.Records[1].Type != Reverse {
			t.Fatalf("records %+v", res.Records)
		}
		if res.Records[0].Qty != held || res.Records[1].Qty != extra {
			t.Fatalf("leg quantities %d/%d", res.Records[0].Qty, res.Records[1].Qty)
		}
		if res.Position == nil || res.Position.Direction != dir.Opposite() || res.Position.Qty != extra {
			t.Fatalf("position %+v", res.Position)
		}
	})
}
