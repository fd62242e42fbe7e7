// Package badge renders the current display state into a small square
// image suitable for a taskbar, dock or desktop widget surface.
package badge

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/dexshare-widget/internal/engine"
	"github.com/mrcode/dexshare-widget/internal/glucose"
)

// Background palette keyed by what the badge should signal at a glance.
// Stale readings and anything without a usable value render gray so an
// outdated number is never mistaken for a live one.
const (
	colorUnknown = "#808080"
	colorStale   = "#9ca3af"
	colorLow     = "#ef4444"
	colorHigh    = "#f97316"
	colorNormal  = "#4ade80"
)

// placeholderText is drawn when no reading is available.
const placeholderText = "--"

// Renderer draws display states at a fixed pixel size. The font is
// parsed once at construction and reused across renders.
type Renderer struct {
	size int
	font *truetype.Font
}

// NewRenderer returns a renderer producing size x size images.
func NewRenderer(size int) (*Renderer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("badge size must be positive, got %d", size)
	}
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing badge font: %w", err)
	}
	return &Renderer{size: size, font: font}, nil
}

// Size returns the pixel size of rendered badges.
func (r *Renderer) Size() int {
	return r.size
}

// Render draws the state as a PNG image.
func (r *Renderer) Render(st engine.DisplayState) ([]byte, error) {
	dc := r.draw(st)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encoding badge png: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderICO draws the state as a single-image ICO, the format Windows
// expects for taskbar overlays.
func (r *Renderer) RenderICO(st engine.DisplayState) ([]byte, error) {
	dc := r.draw(st)
	return imageToICO(dc.Image())
}

func (r *Renderer) draw(st engine.DisplayState) *gg.Context {
	size := float64(r.size)
	dc := gg.NewContext(r.size, r.size)

	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	cr, cg, cb := parseHexColor(backgroundColor(st))
	dc.SetRGB255(int(cr), int(cg), int(cb))
	dc.DrawRoundedRectangle(0, 0, size, size, size/4)
	dc.Fill()

	// Black text on bright backgrounds, white on dark ones.
	brightness := (int(cr)*299 + int(cg)*587 + int(cb)*114) / 1000
	if brightness > 128 {
		dc.SetColor(color.Black)
	} else {
		dc.SetColor(color.White)
	}

	text := valueText(st)
	face := truetype.NewFace(r.font, &truetype.Options{Size: fontSizeFor(size, text)})
	dc.SetFontFace(face)
	dc.DrawStringAnchored(text, size/2, size/2-size*0.19, 0.5, 0.5)

	if st.Reading != nil && st.Staleness != glucose.StalenessExpired {
		drawTrendArrow(dc, size/2, size-size/4, size*0.375, st.Reading.Trend)
	}

	return dc
}

// valueText is the compact number shown on the badge, without the unit
// suffix. The badge is too small for "mg/dL" to stay legible.
func valueText(st engine.DisplayState) string {
	if st.Reading == nil {
		return placeholderText
	}
	if st.Unit == glucose.UnitMmolL {
		return fmt.Sprintf("%.1f", st.Reading.MmolL())
	}
	return fmt.Sprintf("%d", st.Reading.Value)
}

// fontSizeFor shrinks the face as the text widens so four-character
// values like "22.2" still fit inside the rounded rectangle.
func fontSizeFor(size float64, text string) float64 {
	switch {
	case len(text) <= 2:
		return size * 0.53
	case len(text) == 3:
		return size * 0.44
	default:
		return size * 0.36
	}
}

func backgroundColor(st engine.DisplayState) string {
	if st.Reading == nil || st.Staleness == glucose.StalenessExpired {
		return colorUnknown
	}
	if st.Staleness == glucose.StalenessStale {
		return colorStale
	}
	switch st.Severity {
	case glucose.SeverityLow:
		return colorLow
	case glucose.SeverityHigh:
		return colorHigh
	case glucose.SeverityNormal:
		return colorNormal
	default:
		return colorUnknown
	}
}

// drawTrendArrow draws a rotated pointer for the trend, doubled for the
// fast-moving variants. Unknown trends draw nothing.
func drawTrendArrow(dc *gg.Context, x, y, size float64, trend glucose.Trend) {
	var angle float64
	switch trend {
	case glucose.TrendRisingFast, glucose.TrendRising:
		angle = 0
	case glucose.TrendRisingSlow:
		angle = 45
	case glucose.TrendSteady:
		angle = 90
	case glucose.TrendFallingSlow:
		angle = 135
	case glucose.TrendFalling, glucose.TrendFallingFast:
		angle = 180
	default:
		return
	}

	dc.Push()
	defer dc.Pop()

	dc.Translate(x, y)
	dc.Rotate(gg.Radians(angle))

	halfSize := size / 2
	if trend == glucose.TrendRisingFast || trend == glucose.TrendFallingFast {
		drawSingleArrow(dc, 0, -halfSize/2, size*0.8)
		drawSingleArrow(dc, 0, halfSize/2, size*0.8)
	} else {
		drawSingleArrow(dc, 0, 0, size)
	}
}

func drawSingleArrow(dc *gg.Context, ox, oy, s float64) {
	w := s * 0.5

	dc.NewSubPath()
	dc.MoveTo(ox, oy-s/2)
	dc.LineTo(ox+w/2, oy)
	dc.LineTo(ox+w/6, oy)
	dc.LineTo(ox+w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy)
	dc.LineTo(ox-w/2, oy)
	dc.ClosePath()
	dc.Fill()
}

// parseHexColor parses a "#rrggbb" string into RGB components.
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}
