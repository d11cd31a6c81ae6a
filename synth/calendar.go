package synth

import (
	"time"

	"github.com/rustyeddy/replaytrader/market"
)

// CalendarEvent is a scheduled macro release that biases generated prices.
// Bias is a fractional return at daily scale and only exists at generation
// time; the emitted market.MacroEvent does not carry it.
type CalendarEvent struct {
	ID          string
	Date        string // YYYY-MM-DD, UTC
	Title       string
	Description string
	Impact      market.Impact
	Bias        float64
	Sectors     []market.Sector // empty: all sectors
}

func (ce CalendarEvent) day() (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, ce.Date, time.UTC)
}

func (ce CalendarEvent) affects(s market.Sector) bool {
	if len(ce.Sectors) == 0 {
		return true
	}
	for _, x := range ce.Sectors {
		if x == s {
			return true
		}
	}
	return false
}

// Calendar is the built-in macro schedule.
var Calendar = []CalendarEvent{
	{ID: "cn-pmi-2401", Date: "2024-01-31", Title: "China official PMI", Description: "Manufacturing PMI slips back below 50.", Impact: market.ImpactMedium, Bias: -0.008, Sectors: []market.Sector{market.SectorMetal, market.SectorEnergy}},
	{ID: "pboc-rrr-2402", Date: "2024-02-05", Title: "PBoC RRR cut takes effect", Description: "Reserve requirement ratio lowered 50bp, releasing long-term liquidity.", Impact: market.ImpactHigh, Bias: 0.015},
	{ID: "lpr-2402", Date: "2024-02-20", Title: "5Y LPR cut", Description: "Five-year loan prime rate lowered 25bp, property chain supported.", Impact: market.ImpactHigh, Bias: 0.012, Sectors: []market.Sector{market.SectorMetal, market.SectorChemical, market.SectorIndex}},
	{ID: "npc-2403", Date: "2024-03-05", Title: "NPC growth target", Description: "Government work report sets GDP target around 5%.", Impact: market.ImpactMedium, Bias: 0.006},
	{ID: "us-cpi-2404", Date: "2024-04-10", Title: "US CPI hotter than expected", Description: "Sticky inflation pushes rate cut bets further out.", Impact: market.ImpactHigh, Bias: -0.012},
	{ID: "opec-2406", Date: "2024-06-02", Title: "OPEC+ meeting", Description: "Voluntary cuts extended, unwind schedule announced.", Impact: market.ImpactMedium, Bias: -0.010, Sectors: []market.Sector{market.SectorEnergy, market.SectorChemical}},
	{ID: "plenum-2407", Date: "2024-07-18", Title: "Third Plenum communique", Description: "Reform agenda published, few near-term stimulus details.", Impact: market.ImpactLow, Bias: -0.003},
	{ID: "fomc-2409", Date: "2024-09-18", Title: "FOMC cuts 50bp", Description: "Federal Reserve starts its easing cycle with a large cut.", Impact: market.ImpactHigh, Bias: 0.010},
	{ID: "pboc-2409", Date: "2024-09-24", Title: "PBoC stimulus package", Description: "Rate cuts, RRR cut and equity market support tools announced together.", Impact: market.ImpactHigh, Bias: 0.030},
	{ID: "holiday-2410", Date: "2024-10-08", Title: "Post-holiday reopening", Description: "Markets reopen after Golden Week without new fiscal detail.", Impact: market.ImpactHigh, Bias: -0.020},
	{ID: "us-election-2411", Date: "2024-11-06", Title: "US election result", Description: "Tariff risk repriced across commodities.", Impact: market.ImpactHigh, Bias: -0.015},
	{ID: "npcsc-2411", Date: "2024-11-08", Title: "NPCSC debt swap", Description: "Local government debt swap program approved.", Impact: market.ImpactMedium, Bias: -0.006},
	{ID: "cewc-2412", Date: "2024-12-12", Title: "Central Economic Work Conference", Description: "More proactive fiscal policy and moderately loose monetary policy.", Impact: market.ImpactMedium, Bias: 0.008},
	{ID: "us-nfp-2501", Date: "2025-01-10", Title: "US nonfarm payrolls", Description: "Strong jobs report lifts the dollar.", Impact: market.ImpactMedium, Bias: -0.007},
	{ID: "tariff-2504", Date: "2025-04-03", Title: "US reciprocal tariffs", Description: "Broad tariff schedule announced, risk assets sell off.", Impact: market.ImpactHigh, Bias: -0.035},
	{ID: "truce-2505", Date: "2025-05-12", Title: "US-China tariff truce", Description: "Both sides cut tariffs for 90 days.", Impact: market.ImpactHigh, Bias: 0.020},
	{ID: "anti-involution-2507", Date: "2025-07-01", Title: "Anti-involution campaign", Description: "Capacity discipline rhetoric lifts industrial commodities.", Impact: market.ImpactMedium, Bias: 0.015, Sectors: []market.Sector{market.SectorMetal, market.SectorChemical, market.SectorEnergy}},
	{ID: "fomc-2509", Date: "2025-09-17", Title: "FOMC resumes cuts", Description: "Federal Reserve lowers rates 25bp.", Impact: market.ImpactMedium, Bias: 0.006},
}
