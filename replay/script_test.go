package replay

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/sim"
)

type fakeDriver struct {
	cursor, total int
	settled       bool
	submitted     []broker.OrderRequest
	cancelled     []string
	closed        []string
	reject        bool
}

func (f *fakeDriver) Cursor() int { return f.cursor }

func (f *fakeDriver) Step() (bool, error) {
	if f.cursor >= f.total-1 {
		f.settled = true
		return true, nil
	}
	f.cursor++
	return false, nil
}

func (f *fakeDriver) Seek(i int) error {
	if i < 0 || i >= f.total {
		return ErrSeekRange
	}
	f.cursor = i
	return nil
}

func (f *fakeDriver) Submit(req broker.OrderRequest) (sim.Submission, error) {
	f.submitted = append(f.submitted, req)
	o := sim.Order{ID: "o" + string(rune('0'+len(f.submitted))), Instrument: req.Instrument}
	if f.reject {
		return sim.Submission{Status: sim.StatusRejected, Order: o}, sim.ErrInsufficientMargin
	}
	return sim.Submission{Status: sim.StatusPending, Order: o}, nil
}

func (f *fakeDriver) Cancel(id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeDriver) ClosePosition(code string) (sim.Submission, error) {
	f.closed = append(f.closed, code)
	return sim.Submission{Status: sim.StatusFilled}, nil
}

func TestRunScript(t *testing.T) {
	script := `cursor,action,arg1,arg2,arg3,arg4
# warm-up ends at 2
2,buy,market,2
3,sell,limit,1,3350.5
3,buy,stop,1,3400,cu2501
5,cancel,@2
5,close
6,seek,8
8,step,1
`
	d := &fakeDriver{cursor: 2, total: 20}
	out, err := RunScript(strings.NewReader(script), d, ScriptOptions{Instrument: "rb2501"})
	require.NoError(t, err)
	require.Len(t, out, 7)

	require.Len(t, d.submitted, 3)
	assert.Equal(t, broker.OrderRequest{Instrument: "rb2501", Kind: broker.Market, Direction: broker.Long, Qty: 2}, d.submitted[0])
	assert.Equal(t, broker.OrderRequest{Instrument: "rb2501", Kind: broker.Limit, Direction: broker.Short, Qty: 1, Price: 3350.5}, d.submitted[1])
	assert.Equal(t, "cu2501", d.submitted[2].Instrument)

	assert.Equal(t, []string{"o2"}, d.cancelled)
	assert.Equal(t, []string{"rb2501"}, d.closed)
	assert.Equal(t, 3, out[1].Cursor)
	assert.Equal(t, 8, out[5].Cursor)
	assert.Equal(t, 9, d.cursor)
	assert.False(t, d.settled)
}

func TestRunScriptRecordsRejections(t *testing.T) {
	d := &fakeDriver{total: 10, reject: true}
	out, err := RunScript(strings.NewReader("0,buy,market,100\n"), d, ScriptOptions{Instrument: "rb2501"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, errors.Is(out[0].Err, sim.ErrInsufficientMargin))
	assert.Equal(t, sim.StatusRejected, out[0].Submission.Status)
}

func TestRunScriptRunToEnd(t *testing.T) {
	d := &fakeDriver{total: 10}
	_, err := RunScript(strings.NewReader("1,buy,market,1\n"), d, ScriptOptions{Instrument: "rb2501", RunToEnd: true})
	require.NoError(t, err)
	assert.True(t, d.settled)
	assert.Equal(t, 9, d.cursor)
}

func TestRunScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"unknown action", "0,hold\n", "unknown action"},
		{"bad cursor", "x,buy,market,1\n", "bad cursor"},
		{"cursor behind", "5,step\n2,step\n", "behind"},
		{"bad kind", "0,buy,iceberg,1\n", "order kind"},
		{"missing qty", "0,buy,market\n", "kind and qty"},
		{"bad order ref", "0,cancel,@3\n", "no script order"},
		{"past the end", "50,buy,market,1\n", "settled"},
		{"bad seek", "0,seek,99\n", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDriver{total: 10}
			_, err := RunScript(strings.NewReader(tt.script), d, ScriptOptions{Instrument: "rb2501"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunScriptLineNumbers(t *testing.T) {
	script := `# opening trades

cursor,action,arg1,arg2
0,buy,market,1
# then give up

2,close
3,hold
`
	d := &fakeDriver{total: 10}
	out, err := RunScript(strings.NewReader(script), d, ScriptOptions{Instrument: "rb2501"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `line 8: unknown action "hold"`)
	require.Len(t, out, 2)
	assert.Equal(t, 4, out[0].Line)
	assert.Equal(t, 7, out[1].Line)
}

func TestRunScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,close,rb2501\n"), 0o644))

	d := &fakeDriver{total: 10}
	out, err := RunScriptFile(path, d, ScriptOptions{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"rb2501"}, d.closed)

	_, err = RunScriptFile(filepath.Join(t.TempDir(), "missing.csv"), d, ScriptOptions{})
	assert.Error(t, err)
}
