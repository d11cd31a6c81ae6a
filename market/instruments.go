// market/instruments.go
package market

import "fmt"

// Sector groups instruments that tend to move together.
type Sector string

const (
	SectorMetal    Sector = "metal"
	SectorEnergy   Sector = "energy"
	SectorAgri     Sector = "agri"
	SectorIndex    Sector = "index"
	SectorChemical Sector = "chemical"
)

// Instrument carries the contract economics of a tradable future.
// Values are immutable once a Catalog is built.
type Instrument struct {
	Code       string  `json:"code" yaml:"code"`
	Name       string  `json:"name" yaml:"name"`
	BasePrice  float64 `json:"base_price" yaml:"base_price"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	MarginRate float64 `json:"margin_rate" yaml:"margin_rate"` // fraction of notional
	Fee        float64 `json:"fee" yaml:"fee"`                 // fixed fee per lot
	Volatility float64 `json:"volatility" yaml:"volatility"`
	Sector     Sector  `json:"sector" yaml:"sector"`
}

// Validate reports whether the contract economics make sense.
func (in Instrument) Validate() error {
	switch {
	case in.Code == "":
		return fmt.Errorf("instrument code is required")
	case in.BasePrice <= 0:
		return fmt.Errorf("instrument %s: base_price must be positive", in.Code)
	case in.Multiplier <= 0:
		return fmt.Errorf("instrument %s: multiplier must be positive", in.Code)
	case in.MarginRate <= 0 || in.MarginRate > 1:
		return fmt.Errorf("instrument %s: margin_rate must be in (0,1]", in.Code)
	case in.Fee < 0:
		return fmt.Errorf("instrument %s: fee must not be negative", in.Code)
	case in.Volatility < 0:
		return fmt.Errorf("instrument %s: volatility must not be negative", in.Code)
	}
	return nil
}

// Catalog is an ordered, read-only table of instruments.
type Catalog struct {
	list   []Instrument
	byCode map[string]int
}

// NewCatalog validates the instruments and indexes them by code.
func NewCatalog(instruments []Instrument) (*Catalog, error) {
	c := &Catalog{
		list:   make([]Instrument, 0, len(instruments)),
		byCode: make(map[string]int, len(instruments)),
	}
	for _, in := range instruments {
		if err := in.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byCode[in.Code]; dup {
			return nil, fmt.Errorf("duplicate instrument %q", in.Code)
		}
		c.byCode[in.Code] = len(c.list)
		c.list = append(c.list, in)
	}
	return c, nil
}

// Get looks up an instrument by code.
func (c *Catalog) Get(code string) (Instrument, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return Instrument{}, false
	}
	return c.list[i], true
}

// All returns a copy of the instruments in catalog order.
func (c *Catalog) All() []Instrument {
	out := make([]Instrument, len(c.list))
	copy(out, c.list)
	return out
}

func (c *Catalog) Len() int { return len(c.list) }

// Codes returns instrument codes in catalog order.
func (c *Catalog) Codes() []string {
	out := make([]string, len(c.list))
	for i, in := range c.list {
		out[i] = in.Code
	}
	return out
}

// Instruments is the built-in contract table.
var Instruments = []Instrument{
	{Code: "ag2512", Name: "SHFE Silver 2512", BasePrice: 7100, Multiplier: 15, MarginRate: 0.12, Fee: 5, Volatility: 0.008, Sector: SectorMetal},
	{Code: "au2512", Name: "SHFE Gold 2512", BasePrice: 600, Multiplier: 1000, MarginRate: 0.10, Fee: 10, Volatility: 0.005, Sector: SectorMetal},
	{Code: "rb2501", Name: "Rebar 2501", BasePrice: 3300, Multiplier: 10, MarginRate: 0.10, Fee: 5, Volatility: 0.006, Sector: SectorMetal},
	{Code: "hc2501", Name: "Hot Rolled Coil 2501", BasePrice: 3400, Multiplier: 10, MarginRate: 0.10, Fee: 5, Volatility: 0.007, Sector: SectorMetal},
	{Code: "ss2501", Name: "Stainless Steel 2501", BasePrice: 13500, Multiplier: 5, MarginRate: 0.10, Fee: 3, Volatility: 0.006, Sector: SectorMetal},
	{Code: "cu2501", Name: "SHFE Copper 2501", BasePrice: 68000, Multiplier: 5, MarginRate: 0.10, Fee: 20, Volatility: 0.007, Sector: SectorMetal},
	{Code: "al2501", Name: "SHFE Aluminium 2501", BasePrice: 19000, Multiplier: 5, MarginRate: 0.10, Fee: 3, Volatility: 0.006, Sector: SectorMetal},
	{Code: "zn2501", Name: "SHFE Zinc 2501", BasePrice: 21000, Multiplier: 5, MarginRate: 0.10, Fee: 3, Volatility: 0.008, Sector: SectorMetal},

	{Code: "sc2501", Name: "Crude Oil 2501", BasePrice: 530, Multiplier: 1000, MarginRate: 0.15, Fee: 20, Volatility: 0.015, Sector: SectorEnergy},
	{Code: "fu2501", Name: "Fuel Oil 2501", BasePrice: 3000, Multiplier: 10, MarginRate: 0.12, Fee: 5, Volatility: 0.012, Sector: SectorEnergy},
	{Code: "pg2501", Name: "LPG 2501", BasePrice: 4800, Multiplier: 20, MarginRate: 0.12, Fee: 6, Volatility: 0.014, Sector: SectorEnergy},
	{Code: "j2501", Name: "Coke 2501", BasePrice: 2000, Multiplier: 100, MarginRate: 0.20, Fee: 30, Volatility: 0.011, Sector: SectorEnergy},

	{Code: "FG2501", Name: "Glass 2501", BasePrice: 1200, Multiplier: 20, MarginRate: 0.12, Fee: 6, Volatility: 0.012, Sector: SectorChemical},
	{Code: "SA2501", Name: "Soda Ash 2501", BasePrice: 1600, Multiplier: 20, MarginRate: 0.12, Fee: 4, Volatility: 0.015, Sector: SectorChemical},
	{Code: "MA2501", Name: "Methanol 2501", BasePrice: 2400, Multiplier: 10, MarginRate: 0.10, Fee: 2, Volatility: 0.010, Sector: SectorChemical},
	{Code: "TA2501", Name: "PTA 2501", BasePrice: 5800, Multiplier: 5, MarginRate: 0.10, Fee: 3, Volatility: 0.009, Sector: SectorChemical},

	{Code: "lh2501", Name: "Live Hog 2501", BasePrice: 14500, Multiplier: 16, MarginRate: 0.15, Fee: 12, Volatility: 0.010, Sector: SectorAgri},
	{Code: "p2501", Name: "Palm Oil 2501", BasePrice: 7200, Multiplier: 10, MarginRate: 0.10, Fee: 3, Volatility: 0.009, Sector: SectorAgri},
	{Code: "m2501", Name: "Soybean Meal 2501", BasePrice: 3100, Multiplier: 10, MarginRate: 0.10, Fee: 2, Volatility: 0.008, Sector: SectorAgri},

	{Code: "IF2501", Name: "CSI 300 Index 2501", BasePrice: 3400, Multiplier: 300, MarginRate: 0.12, Fee: 25, Volatility: 0.012, Sector: SectorIndex},
}

// DefaultCatalog builds a catalog from Instruments.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(Instruments)
	if err != nil {
		panic(err)
	}
	return c
}
