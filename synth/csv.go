package synth

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// WriteCSV writes one instrument's bars with a header row.
func (md *MarketData) WriteCSV(w io.Writer, code string) error {
	bars, ok := md.Bars[code]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInstrument, code)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		err := cw.Write([]string{
			time.Unix(b.Time, 0).UTC().Format(time.RFC3339),
			f(b.Open),
			f(b.High),
			f(b.Low),
			f(b.Close),
			strconv.FormatFloat(b.Volume, 'f', 0, 64),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ErrUnknownInstrument is returned for codes missing from the data.
var ErrUnknownInstrument = errors.New("unknown instrument")

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}
