package glucose

import "testing"

func TestParseTrend(t *testing.T) {
	tests := []struct {
		name     string
		wire     string
		expected Trend
	}{
		{"DoubleUp", "DoubleUp", TrendRisingFast},
		{"SingleUp", "SingleUp", TrendRising},
		{"FortyFiveUp", "FortyFiveUp", TrendRisingSlow},
		{"Flat", "Flat", TrendSteady},
		{"FortyFiveDown", "FortyFiveDown", TrendFallingSlow},
		{"SingleDown", "SingleDown", TrendFalling},
		{"DoubleDown", "DoubleDown", TrendFallingFast},
		{"numeric 1", "1", TrendRisingFast},
		{"numeric 4", "4", TrendSteady},
		{"numeric 7", "7", TrendFallingFast},
		{"None", "None", TrendUnknown},
		{"NotComputable", "NotComputable", TrendUnknown},
		{"RateOutOfRange", "RateOutOfRange", TrendUnknown},
		{"numeric out of range", "9", TrendUnknown},
		{"empty", "", TrendUnknown},
		{"garbage", "sideways", TrendUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseTrend(tt.wire)
			if result != tt.expected {
				t.Errorf("ParseTrend(%q) = %q, want %q", tt.wire, result, tt.expected)
			}
		})
	}
}

func TestTrendArrow(t *testing.T) {
	tests := []struct {
		name     string
		trend    Trend
		expected string
	}{
		{"rising fast", TrendRisingFast, "↑↑"},
		{"rising", TrendRising, "↑"},
		{"rising slow", TrendRisingSlow, "↗"},
		{"steady", TrendSteady, "→"},
		{"falling slow", TrendFallingSlow, "↘"},
		{"falling", TrendFalling, "↓"},
		{"falling fast", TrendFallingFast, "↓↓"},
		{"unknown", TrendUnknown, "-"},
		{"zero value", Trend(""), "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.trend.Arrow()
			if result != tt.expected {
				t.Errorf("Arrow() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestTrendLabel(t *testing.T) {
	tests := []struct {
		name     string
		trend    Trend
		expected string
	}{
		{"rising fast", TrendRisingFast, "rising quickly"},
		{"steady", TrendSteady, "steady"},
		{"falling slightly", TrendFallingSlow, "falling slightly"},
		{"unknown", TrendUnknown, "trend unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.trend.Label()
			if result != tt.expected {
				t.Errorf("Label() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestTrendValid(t *testing.T) {
	if !TrendSteady.Valid() {
		t.Error("TrendSteady.Valid() = false, want true")
	}
	if !TrendUnknown.Valid() {
		t.Error("TrendUnknown.Valid() = false, want true")
	}
	if Trend("diagonal").Valid() {
		t.Error(`Trend("diagonal").Valid() = true, want false`)
	}
}
