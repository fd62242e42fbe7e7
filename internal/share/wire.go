package share

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/mrcode/dexshare-widget/internal/session"
)

// applicationID is the fixed publisher application identifier the share
// service expects from third-party followers.
const applicationID = "d89443d2-327c-4a6f-89e5-496bbb0317db"

// servicePath is the common path prefix for all share endpoints.
const servicePath = "/ShareWebServices/Services"

const (
	endpointAuthenticate  = "General/AuthenticatePublisherAccount"
	endpointLogin         = "General/LoginPublisherAccountById"
	endpointLatestGlucose = "Publisher/ReadPublisherLatestGlucoseValues"
)

// Each region runs its own share deployment.
var regionBaseURLs = map[session.Region]string{
	session.RegionUS:  "https://share2.dexcom.com",
	session.RegionOUS: "https://shareous1.dexcom.com",
	session.RegionJP:  "https://share.dexcom.jp",
}

// The latest-value query asks for a single reading inside a window wide
// enough to cover one missed sensor interval.
const (
	fetchWindowMinutes = 10
	fetchMaxCount      = 1
)

type authenticateRequest struct {
	AccountName   string `json:"accountName"`
	Password      string `json:"password"`
	ApplicationID string `json:"applicationId"`
}

type loginRequest struct {
	AccountID     string `json:"accountId"`
	Password      string `json:"password"`
	ApplicationID string `json:"applicationId"`
}

// glucoseEntry is one reading as the share service returns it.
type glucoseEntry struct {
	WT    string     `json:"WT"`
	Value int        `json:"Value"`
	Trend trendValue `json:"Trend"`
}

// trendValue absorbs the API's two trend encodings: newer deployments
// send the direction name, older ones send the ordinal as a bare number.
type trendValue string

func (t *trendValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = trendValue(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*t = trendValue(strconv.Itoa(n))
		return nil
	}
	return fmt.Errorf("trend is neither string nor number: %s", data)
}

// wireError is the share service's error envelope.
type wireError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// Error codes the share service is known to return.
const (
	codeAccountNotFound     = "SSO_AuthenticateAccountNotFound"
	codePasswordInvalid     = "SSO_AuthenticatePasswordInvalid"
	codeMaxAttempts         = "SSO_AuthenticateMaxAttemptsExceeed" // sic, the service misspells it
	codeAccountPasswordBad  = "AccountPasswordInvalid"
	codeSessionIDNotFound   = "SessionIdNotFound"
	codeSessionNotValid     = "SessionNotValid"
	codeInvalidArgument     = "InvalidArgument"
)

// isAuthCode reports whether the code means the credentials themselves
// were rejected.
func isAuthCode(code string) bool {
	switch code {
	case codeAccountNotFound, codePasswordInvalid, codeMaxAttempts, codeAccountPasswordBad:
		return true
	}
	return false
}

// isSessionExpiredCode reports whether the code means the server-side
// session token lapsed and a fresh login may succeed.
func isSessionExpiredCode(code string) bool {
	return code == codeSessionIDNotFound || code == codeSessionNotValid
}

// wtMillis extracts the millisecond timestamp from the service's
// "/Date(1691455258000)/" wrapping.
var wtMillis = regexp.MustCompile(`\((\d+)`)

// parseWireTime converts a WT field into a time.Time.
func parseWireTime(wt string) (time.Time, error) {
	m := wtMillis.FindStringSubmatch(wt)
	if m == nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", wt)
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q: %w", wt, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
