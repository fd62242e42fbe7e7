// Package glucose contains the reading model and the pure classification
// rules: unit conversion, severity thresholds and staleness.
package glucose

import (
	"fmt"
	"math"
	"time"
)

// Severity thresholds in mg/dL. These are the product's documented safety
// ranges, fixed constants rather than user settings.
const (
	LowBelowMgDl  = 70
	HighAboveMgDl = 180
)

// mgDlPerMmolL is the linear conversion factor between the two units.
const mgDlPerMmolL = 18.0

// Staleness thresholds. One missed poll beyond the 5-minute sensor cadence
// still counts as fresh; past 30 minutes the data is considered unreliable.
const (
	FreshFor = 6 * time.Minute
	StaleFor = 30 * time.Minute
)

// Reading is a single glucose measurement. The value is stored canonically
// in mg/dL. A Reading is immutable once constructed.
type Reading struct {
	Value     int       `json:"value"` // mg/dL
	Timestamp time.Time `json:"timestamp"`
	Trend     Trend     `json:"trend"`
}

// MmolL returns the reading's value in mmol/L, rounded to one decimal.
func (r Reading) MmolL() float64 {
	return ToMmolL(r.Value)
}

// Age returns how old the reading is relative to now.
func (r Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}

// Unit is a display unit preference.
type Unit string

const (
	UnitMgDl  Unit = "mg/dL"
	UnitMmolL Unit = "mmol/L"
)

// ParseUnit normalizes a user-supplied unit string.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "mg/dL", "mg/dl", "mgdl":
		return UnitMgDl, nil
	case "mmol/L", "mmol/l", "mmoll", "mmol":
		return UnitMmolL, nil
	default:
		return "", fmt.Errorf("unknown unit %q", s)
	}
}

// Valid reports whether the unit is one of the two supported values.
func (u Unit) Valid() bool {
	return u == UnitMgDl || u == UnitMmolL
}

// ToMmolL converts a canonical mg/dL value to mmol/L, rounded to one
// decimal (the unit's conventional precision).
func ToMmolL(valueMgDl int) float64 {
	return math.Round(float64(valueMgDl)/mgDlPerMmolL*10) / 10
}

// ToDisplayUnit converts a canonical mg/dL value into the given unit.
// mg/dL values stay integral.
func ToDisplayUnit(valueMgDl int, unit Unit) float64 {
	if unit == UnitMmolL {
		return ToMmolL(valueMgDl)
	}
	return float64(valueMgDl)
}

// FormatValue renders a canonical mg/dL value in the given unit with its
// conventional precision.
func FormatValue(valueMgDl int, unit Unit) string {
	if unit == UnitMmolL {
		return fmt.Sprintf("%.1f mmol/L", ToMmolL(valueMgDl))
	}
	return fmt.Sprintf("%d mg/dL", valueMgDl)
}

// Severity classifies a value against the fixed safety thresholds.
type Severity string

const (
	SeverityNormal  Severity = "normal"
	SeverityHigh    Severity = "high"
	SeverityLow     Severity = "low"
	SeverityUnknown Severity = "unknown"
)

// Classify returns the severity for a canonical mg/dL value. Classification
// always happens in mg/dL to avoid double rounding; the boundary values 70
// and 180 are in range.
func Classify(valueMgDl int) Severity {
	switch {
	case valueMgDl < LowBelowMgDl:
		return SeverityLow
	case valueMgDl > HighAboveMgDl:
		return SeverityHigh
	default:
		return SeverityNormal
	}
}

// Staleness classifies how old a reading is relative to now.
type Staleness string

const (
	StalenessFresh   Staleness = "fresh"
	StalenessStale   Staleness = "stale"
	StalenessExpired Staleness = "expired"
)

// StalenessOf classifies the age of a reading taken at timestamp, as seen
// at now.
func StalenessOf(timestamp, now time.Time) Staleness {
	age := now.Sub(timestamp)
	switch {
	case age <= FreshFor:
		return StalenessFresh
	case age <= StaleFor:
		return StalenessStale
	default:
		return StalenessExpired
	}
}
