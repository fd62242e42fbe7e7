// Package session manages the persisted account session and the
// credential vault it references.
//
// A session never contains the account password. It carries an opaque
// account reference that keys into the vault, so the session file on disk
// stays free of secrets.
package session

import (
	"fmt"

	"github.com/mrcode/dexshare-widget/internal/glucose"
)

// Region selects which share server an account lives on.
type Region string

const (
	RegionUS  Region = "us"
	RegionOUS Region = "ous"
	RegionJP  Region = "jp"
)

// ParseRegion normalizes a user-supplied region string.
func ParseRegion(s string) (Region, error) {
	switch s {
	case "us", "US":
		return RegionUS, nil
	case "ous", "OUS", "eu", "EU":
		return RegionOUS, nil
	case "jp", "JP":
		return RegionJP, nil
	default:
		return "", fmt.Errorf("unknown region %q (expected us, ous or jp)", s)
	}
}

// Valid reports whether the region is one of the supported values.
func (r Region) Valid() bool {
	return r == RegionUS || r == RegionOUS || r == RegionJP
}

// Position is a remembered widget placement on screen.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Session is the persisted per-account state: which account to poll,
// where, and how to display it.
type Session struct {
	AccountRef     string       `json:"account_ref"`
	Region         Region       `json:"region"`
	Unit           glucose.Unit `json:"unit"`
	WidgetPosition *Position    `json:"widget_position,omitempty"`
}

// New returns a session with display defaults applied.
func New(accountRef string, region Region) *Session {
	return &Session{
		AccountRef: accountRef,
		Region:     region,
		Unit:       glucose.UnitMgDl,
	}
}

// Validate checks the structural invariants. It returns a plain error;
// callers wrap it with the kind appropriate to where the session came
// from (a bad persisted file is corrupt state, a bad in-memory update is
// a configuration error).
func (s *Session) Validate() error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	if s.AccountRef == "" {
		return fmt.Errorf("missing account reference")
	}
	if !s.Region.Valid() {
		return fmt.Errorf("missing or unknown region %q", s.Region)
	}
	if !s.Unit.Valid() {
		return fmt.Errorf("missing or unknown unit %q", s.Unit)
	}
	return nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.WidgetPosition != nil {
		p := *s.WidgetPosition
		c.WidgetPosition = &p
	}
	return &c
}
