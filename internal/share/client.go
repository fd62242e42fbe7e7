// Package share implements the client for the regional share service the
// sensor vendor operates: login, session-token management and the
// latest-reading query.
package share

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mrcode/dexshare-widget/internal/glucose"
	"github.com/mrcode/dexshare-widget/internal/session"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

// Fetcher is the acquisition engine's view of the share service: fetch
// the latest reading for the given session.
type Fetcher interface {
	Fetch(ctx context.Context, sess *session.Session) (glucose.Reading, error)
}

// errSessionExpired marks a request rejected because the server-side
// session token lapsed. It stays internal to the fetch flow: one fresh
// login is attempted before the error surfaces as an auth failure.
var errSessionExpired = errors.New("share session expired")

// Client talks to the regional share service. It caches the session
// token so the steady-state poll is a single request; the vault is only
// consulted when a login is needed.
//
// Log output carries region, endpoint, status and timing. Account names,
// passwords, tokens and the session's account reference never appear in
// log fields.
type Client struct {
	http    *resty.Client
	vault   session.Vault
	logger  *zap.Logger
	limiter *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenRef    string
	tokenRegion session.Region

	// baseURL overrides per-region resolution when set.
	baseURL string
}

var _ Fetcher = (*Client)(nil)

// NewClient returns a share client reading credentials from vault.
// timeout bounds each HTTP request.
func NewClient(vault session.Vault, logger *zap.Logger, timeout time.Duration) *Client {
	httpc := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:    httpc,
		vault:   vault,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// Fetch implements Fetcher. A lapsed session token triggers exactly one
// re-login within the same call before the failure surfaces.
func (c *Client) Fetch(ctx context.Context, sess *session.Session) (glucose.Reading, error) {
	if err := sess.Validate(); err != nil {
		return glucose.Reading{}, dexerr.Wrap(dexerr.KindConfig, "session not usable for fetch", err)
	}

	token, err := c.sessionToken(ctx, sess, false)
	if err != nil {
		return glucose.Reading{}, err
	}

	reading, err := c.latest(ctx, sess.Region, token)
	if errors.Is(err, errSessionExpired) {
		token, err = c.sessionToken(ctx, sess, true)
		if err != nil {
			return glucose.Reading{}, err
		}
		reading, err = c.latest(ctx, sess.Region, token)
		if errors.Is(err, errSessionExpired) {
			return glucose.Reading{}, dexerr.Wrap(dexerr.KindAuth, "session rejected immediately after login", err)
		}
	}
	return reading, err
}

// VerifyCredentials performs a full login with the given credentials,
// bypassing the vault and the token cache. Setup uses it to check an
// account before anything is stored.
func (c *Client) VerifyCredentials(ctx context.Context, region session.Region, creds session.Credentials) error {
	_, err := c.login(ctx, region, creds)
	return err
}

// sessionToken returns the cached token for the session, logging in when
// the cache is cold, stale for this account or region, or force is set.
func (c *Client) sessionToken(ctx context.Context, sess *session.Session, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.token != "" && c.tokenRef == sess.AccountRef && c.tokenRegion == sess.Region {
		return c.token, nil
	}

	creds, err := c.vault.Lookup(sess.AccountRef)
	if err != nil {
		return "", err
	}

	token, err := c.login(ctx, sess.Region, creds)
	if err != nil {
		c.token = ""
		return "", err
	}

	c.token = token
	c.tokenRef = sess.AccountRef
	c.tokenRegion = sess.Region
	c.logger.Info("share login succeeded", zap.String("region", string(sess.Region)))
	return token, nil
}

// login resolves the account id for the credentials and opens a session.
// The service signals rejected credentials either with an error envelope
// or by returning the all-zero UUID.
func (c *Client) login(ctx context.Context, region session.Region, creds session.Credentials) (string, error) {
	var accountID string
	err := c.post(ctx, region, endpointAuthenticate, nil, authenticateRequest{
		AccountName:   creds.AccountName,
		Password:      creds.Password,
		ApplicationID: applicationID,
	}, &accountID)
	if err != nil {
		return "", err
	}

	id, err := uuid.Parse(accountID)
	if err != nil {
		return "", dexerr.Wrap(dexerr.KindNetwork, "share service returned a malformed account id", err)
	}
	if id == uuid.Nil {
		return "", dexerr.New(dexerr.KindAuth, "share service rejected the account name")
	}

	var token string
	err = c.post(ctx, region, endpointLogin, nil, loginRequest{
		AccountID:     accountID,
		Password:      creds.Password,
		ApplicationID: applicationID,
	}, &token)
	if err != nil {
		return "", err
	}

	tid, err := uuid.Parse(token)
	if err != nil {
		return "", dexerr.Wrap(dexerr.KindNetwork, "share service returned a malformed session id", err)
	}
	if tid == uuid.Nil {
		return "", dexerr.New(dexerr.KindAuth, "share service rejected the credentials")
	}
	return token, nil
}

// latest queries the newest reading for an open session.
func (c *Client) latest(ctx context.Context, region session.Region, token string) (glucose.Reading, error) {
	query := map[string]string{
		"sessionId": token,
		"minutes":   strconv.Itoa(fetchWindowMinutes),
		"maxCount":  strconv.Itoa(fetchMaxCount),
	}

	var entries []glucoseEntry
	if err := c.post(ctx, region, endpointLatestGlucose, query, nil, &entries); err != nil {
		return glucose.Reading{}, err
	}
	if len(entries) == 0 {
		return glucose.Reading{}, dexerr.New(dexerr.KindNoData, "no recent readings available")
	}

	entry := entries[0]
	ts, err := parseWireTime(entry.WT)
	if err != nil {
		return glucose.Reading{}, dexerr.Wrap(dexerr.KindNetwork, "decoding reading timestamp", err)
	}
	return glucose.Reading{
		Value:     entry.Value,
		Timestamp: ts,
		Trend:     glucose.ParseTrend(string(entry.Trend)),
	}, nil
}

// post sends one request and decodes a successful JSON response into out.
// Failures come back classified by kind.
func (c *Client) post(ctx context.Context, region session.Region, endpoint string, query map[string]string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return dexerr.Wrap(dexerr.KindNetwork, "request canceled while rate limited", err)
	}

	base := c.baseURL
	if base == "" {
		base = regionBaseURLs[region]
	}
	if base == "" {
		return dexerr.Newf(dexerr.KindConfig, "no share endpoint for region %q", region)
	}

	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Post(base + servicePath + "/" + endpoint)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn("share request failed",
			zap.String("region", string(region)),
			zap.String("endpoint", endpoint),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return dexerr.Wrap(dexerr.KindNetwork, "share request failed", err)
	}

	c.logger.Debug("share request",
		zap.String("region", string(region)),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", elapsed),
	)

	if resp.StatusCode() == http.StatusTooManyRequests {
		return dexerr.New(dexerr.KindRateLimited, "share service throttled the request")
	}
	if resp.IsSuccess() {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return dexerr.Wrap(dexerr.KindNetwork, "decoding share response", err)
		}
		return nil
	}
	return errorFromBody(resp.StatusCode(), resp.Body())
}

// errorFromBody maps the service's error envelope onto error kinds.
// Unrecognized failures count as network errors so the engine treats
// them as transient.
func errorFromBody(status int, body []byte) error {
	var we wireError
	if err := json.Unmarshal(body, &we); err == nil && we.Code != "" {
		switch {
		case isSessionExpiredCode(we.Code):
			return fmt.Errorf("%s: %w", we.Code, errSessionExpired)
		case isAuthCode(we.Code):
			return dexerr.Newf(dexerr.KindAuth, "share service rejected the credentials (%s)", we.Code)
		case we.Code == codeInvalidArgument:
			return dexerr.Newf(dexerr.KindConfig, "share service rejected the request (%s)", we.Code)
		}
		return dexerr.Newf(dexerr.KindNetwork, "share service error %s (status %d)", we.Code, status)
	}
	return dexerr.Newf(dexerr.KindNetwork, "share service returned status %d", status)
}
