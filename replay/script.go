package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rustyeddy/replaytrader/broker"
	"github.com/rustyeddy/replaytrader/sim"
)

// Driver is the part of a session a script needs.
type Driver interface {
	Cursor() int
	// Step replays one bar and reports whether the session has settled.
	Step() (done bool, err error)
	Seek(index int) error
	Submit(req broker.OrderRequest) (sim.Submission, error)
	Cancel(orderID string) error
	ClosePosition(code string) (sim.Submission, error)
}

// ScriptOptions controls RunScript.
type ScriptOptions struct {
	// Instrument is used when an order row leaves the instrument blank.
	Instrument string
	// RunToEnd keeps stepping after the last row until the session settles.
	RunToEnd bool
}

// Outcome is what one script row did. Rejections are recorded here, they
// do not stop the script.
type Outcome struct {
	Line       int
	Cursor     int
	Action     string
	Submission sim.Submission
	Err        error
}

// RunScriptFile opens path and runs it with RunScript.
func RunScriptFile(path string, d Driver, opts ScriptOptions) ([]Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return RunScript(f, d, opts)
}

// RunScript drives d from CSV rows of the form cursor,action,args...
// Before each row the session is stepped until its cursor reaches the
// row's cursor. A header row starting with "cursor" is skipped, as are
// blank lines and lines starting with '#'. Errors name the file line.
//
// Actions (case-insensitive):
//
//	buy|sell   kind qty [price] [instrument]
//	cancel     order id, or @n for the n-th order this script submitted
//	close      instrument (optional)
//	seek       index
//	step       count (optional, default 1)
func RunScript(r io.Reader, d Driver, opts ScriptOptions) ([]Outcome, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	var (
		out     []Outcome
		orders  []string
		settled bool
		first   = true
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		line, _ := cr.FieldPos(0)
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		header := first && strings.EqualFold(row[0], "cursor")
		first = false
		if header || row[0] == "" {
			continue
		}
		if len(row) < 2 {
			return out, fmt.Errorf("line %d: need cursor,action: %v", line, row)
		}
		if settled {
			return out, fmt.Errorf("line %d: session already settled", line)
		}

		at, err := strconv.Atoi(row[0])
		if err != nil {
			return out, fmt.Errorf("line %d: bad cursor %q: %w", line, row[0], err)
		}
		if settled, err = stepTo(d, at); err != nil {
			return out, fmt.Errorf("line %d: %w", line, err)
		}
		if settled {
			return out, fmt.Errorf("line %d: session settled before cursor %d", line, at)
		}

		o := Outcome{Line: line, Cursor: d.Cursor(), Action: strings.ToLower(row[1])}
		args := row[2:]
		switch o.Action {
		case "buy", "sell":
			req, err := parseOrder(o.Action, args, opts.Instrument)
			if err != nil {
				return out, fmt.Errorf("line %d: %w", line, err)
			}
			o.Submission, o.Err = d.Submit(req)
			if o.Submission.Order.ID != "" {
				orders = append(orders, o.Submission.Order.ID)
			}

		case "cancel":
			if len(args) < 1 || args[0] == "" {
				return out, fmt.Errorf("line %d: cancel needs an order id", line)
			}
			ref, err := resolveOrder(args[0], orders)
			if err != nil {
				return out, fmt.Errorf("line %d: %w", line, err)
			}
			o.Err = d.Cancel(ref)

		case "close":
			code := opts.Instrument
			if len(args) > 0 && args[0] != "" {
				code = args[0]
			}
			o.Submission, o.Err = d.ClosePosition(code)

		case "seek":
			if len(args) < 1 {
				return out, fmt.Errorf("line %d: seek needs an index", line)
			}
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return out, fmt.Errorf("line %d: bad seek index %q: %w", line, args[0], err)
			}
			if err := d.Seek(idx); err != nil {
				return out, fmt.Errorf("line %d: %w", line, err)
			}
			o.Cursor = d.Cursor()

		case "step":
			n := 1
			if len(args) > 0 && args[0] != "" {
				if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
					return out, fmt.Errorf("line %d: bad step count %q", line, args[0])
				}
			}
			for ; n > 0 && !settled; n-- {
				if settled, err = d.Step(); err != nil {
					return out, fmt.Errorf("line %d: %w", line, err)
				}
			}
			o.Cursor = d.Cursor()

		default:
			return out, fmt.Errorf("line %d: unknown action %q", line, row[1])
		}
		out = append(out, o)
	}

	for opts.RunToEnd && !settled {
		var err error
		if settled, err = d.Step(); err != nil {
			return out, err
		}
	}
	return out, nil
}

func stepTo(d Driver, at int) (bool, error) {
	if at < d.Cursor() {
		return false, fmt.Errorf("cursor %d is behind session cursor %d", at, d.Cursor())
	}
	for d.Cursor() < at {
		done, err := d.Step()
		if err != nil || done {
			return done, err
		}
	}
	return false, nil
}

// parseOrder reads kind qty [price] [instrument].
func parseOrder(side string, args []string, instrument string) (broker.OrderRequest, error) {
	if len(args) < 2 {
		return broker.OrderRequest{}, errors.New("order needs kind and qty")
	}
	dir, err := broker.ParseDirection(side)
	if err != nil {
		return broker.OrderRequest{}, err
	}
	kind, err := broker.ParseOrderKind(args[0])
	if err != nil {
		return broker.OrderRequest{}, err
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return broker.OrderRequest{}, fmt.Errorf("bad qty %q: %w", args[1], err)
	}
	req := broker.OrderRequest{Instrument: instrument, Kind: kind, Direction: dir, Qty: qty}
	if len(args) > 2 && args[2] != "" {
		if req.Price, err = strconv.ParseFloat(args[2], 64); err != nil {
			return broker.OrderRequest{}, fmt.Errorf("bad price %q: %w", args[2], err)
		}
	}
	if len(args) > 3 && args[3] != "" {
		req.Instrument = args[3]
	}
	return req, nil
}

func resolveOrder(ref string, orders []string) (string, error) {
	if !strings.HasPrefix(ref, "@") {
		return ref, nil
	}
	n, err := strconv.Atoi(ref[1:])
	if err != nil || n < 1 || n > len(orders) {
		return "", fmt.Errorf("no script order %s", ref)
	}
	return orders[n-1], nil
}
