package engine

import (
	"time"

	"github.com/mrcode/dexshare-widget/internal/glucose"
)

// State is the engine's position in its poll cycle.
type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
	StateSuccess State = "success"
	StateFailure State = "failure"
	StateStopped State = "stopped"
)

// ErrorKind is the user-facing failure category carried by DisplayState.
// Empty means no error condition is active.
type ErrorKind string

const (
	ErrorNone ErrorKind = ""

	// ErrorAuth surfaces on the first authentication failure. Polling
	// continues so recovery is automatic once credentials are fixed.
	ErrorAuth ErrorKind = "auth"

	// ErrorConnectivityDegraded surfaces after repeated transient
	// failures. A single blip never raises it.
	ErrorConnectivityDegraded ErrorKind = "connectivity_degraded"

	// ErrorNoData means the service answered but has no recent reading,
	// typically a sensor warming up.
	ErrorNoData ErrorKind = "no_data"

	// ErrorConfig means the session or stored credentials are unusable
	// and user action is required.
	ErrorConfig ErrorKind = "config"
)

// DisplayState is the render-ready snapshot handed to frontends. It is
// derived on demand and never persisted, and it carries no account
// identifiers, so it is always safe to log or dump.
type DisplayState struct {
	State State `json:"state"`

	// Reading is the current cached reading, nil when nothing has ever
	// been accepted.
	Reading   *glucose.Reading  `json:"reading,omitempty"`
	Severity  glucose.Severity  `json:"severity"`
	Staleness glucose.Staleness `json:"staleness,omitempty"`

	// Unit is the session's display preference; the reading itself stays
	// canonical.
	Unit glucose.Unit `json:"unit,omitempty"`

	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// FormattedValue renders the reading in the display unit, or a placeholder
// when there is no reading.
func (d DisplayState) FormattedValue() string {
	if d.Reading == nil {
		return "--"
	}
	unit := d.Unit
	if !unit.Valid() {
		unit = glucose.UnitMgDl
	}
	return glucose.FormatValue(d.Reading.Value, unit)
}
