package glucose

// Trend is the rate-of-change category reported alongside a reading.
type Trend string

const (
	TrendRisingFast  Trend = "rising_fast"
	TrendRising      Trend = "rising"
	TrendRisingSlow  Trend = "rising_slow"
	TrendSteady      Trend = "steady"
	TrendFallingSlow Trend = "falling_slow"
	TrendFalling     Trend = "falling"
	TrendFallingFast Trend = "falling_fast"
	TrendUnknown     Trend = "unknown"
)

// trendByWireName maps the share service's direction names onto trend
// categories. Newer API versions send the name, older ones send the
// ordinal as a bare number.
var trendByWireName = map[string]Trend{
	"DoubleUp":      TrendRisingFast,
	"SingleUp":      TrendRising,
	"FortyFiveUp":   TrendRisingSlow,
	"Flat":          TrendSteady,
	"FortyFiveDown": TrendFallingSlow,
	"SingleDown":    TrendFalling,
	"DoubleDown":    TrendFallingFast,
	"1":             TrendRisingFast,
	"2":             TrendRising,
	"3":             TrendRisingSlow,
	"4":             TrendSteady,
	"5":             TrendFallingSlow,
	"6":             TrendFalling,
	"7":             TrendFallingFast,
}

// ParseTrend maps a wire-format trend onto its category. Unrecognized
// values, including "None", "NotComputable" and "RateOutOfRange", map to
// TrendUnknown rather than failing: a reading with an odd trend is still
// a usable reading.
func ParseTrend(wire string) Trend {
	if t, ok := trendByWireName[wire]; ok {
		return t
	}
	return TrendUnknown
}

// Arrow returns the compact glyph for the trend, suitable for the widget
// badge and terminal output.
func (t Trend) Arrow() string {
	switch t {
	case TrendRisingFast:
		return "↑↑"
	case TrendRising:
		return "↑"
	case TrendRisingSlow:
		return "↗"
	case TrendSteady:
		return "→"
	case TrendFallingSlow:
		return "↘"
	case TrendFalling:
		return "↓"
	case TrendFallingFast:
		return "↓↓"
	default:
		return "-"
	}
}

// Label returns the human-readable description of the trend.
func (t Trend) Label() string {
	switch t {
	case TrendRisingFast:
		return "rising quickly"
	case TrendRising:
		return "rising"
	case TrendRisingSlow:
		return "rising slightly"
	case TrendSteady:
		return "steady"
	case TrendFallingSlow:
		return "falling slightly"
	case TrendFalling:
		return "falling"
	case TrendFallingFast:
		return "falling quickly"
	default:
		return "trend unavailable"
	}
}

// Valid reports whether the trend is one of the defined categories.
func (t Trend) Valid() bool {
	switch t {
	case TrendRisingFast, TrendRising, TrendRisingSlow, TrendSteady,
		TrendFallingSlow, TrendFalling, TrendFallingFast, TrendUnknown:
		return true
	}
	return false
}
