// Package performance is a client for the Ozon Performance advertising API:
// token exchange plus the report job lifecycle (request, status, link).
package performance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the Ozon Performance API.
const defaultBaseURL = "https://performance.ozon.ru:443"

// Client defines the vendor report job operations.
type Client interface {
	// RequestReport asks the vendor to generate a report and returns the
	// opaque job identifier (a UUID).
	RequestReport(ctx context.Context, req ReportRequest) (string, error)

	// ReportStatus performs a single status poll for the given job.
	ReportStatus(ctx context.Context, jobID string) (*StatusResponse, error)

	// ReportLink resolves the download link for a completed job.
	ReportLink(ctx context.Context, jobID string) (string, error)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithTokenURL overrides the token endpoint (default {base}/api/client/token).
func WithTokenURL(u string) Option {
	return func(c *httpClient) {
		c.tokenURL = u
	}
}

// WithHTTPClient sets a custom *http.Client. The client's Timeout is the
// hard per-request deadline; a hung vendor call fails the job instead of
// blocking its worker forever.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimiter sets the limiter applied before every vendor call.
func WithRateLimiter(lim *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = lim
	}
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *httpClient) {
		c.now = now
	}
}

// httpClient implements Client using net/http. One instance serves one
// account; the cached token is never shared across accounts.
type httpClient struct {
	cred     Credential
	baseURL  string
	tokenURL string
	http     *http.Client
	limiter  *rate.Limiter
	now      func() time.Time

	mu    sync.Mutex
	token *Token
}

// NewClient creates a client for one account's credentials.
func NewClient(cred Credential, opts ...Option) Client {
	c := &httpClient{
		cred:    cred,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokenURL == "" {
		c.tokenURL = c.baseURL + "/api/client/token"
	}
	return c
}

func (c *httpClient) RequestReport(ctx context.Context, req ReportRequest) (string, error) {
	var resp reportResponse
	if err := c.post(ctx, "/api/client/vendors/statistics", req, &resp); err != nil {
		return "", eris.Wrap(err, "performance: request report")
	}
	// The job id becomes a scratch path component downstream, so reject
	// anything that is not a plain UUID.
	if _, err := uuid.Parse(resp.UUID); err != nil {
		return "", eris.Wrapf(err, "performance: request report: bad job id %q", resp.UUID)
	}
	return resp.UUID, nil
}

func (c *httpClient) ReportStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	var resp StatusResponse
	q := url.Values{"vendor": {"true"}}
	if err := c.get(ctx, "/api/client/statistics/"+jobID, q, &resp); err != nil {
		return nil, eris.Wrapf(err, "performance: report status %s", jobID)
	}
	return &resp, nil
}

func (c *httpClient) ReportLink(ctx context.Context, jobID string) (string, error) {
	var resp linkResponse
	q := url.Values{"UUID": {jobID}}
	if err := c.get(ctx, "/api/client/statistics/report", q, &resp); err != nil {
		return "", eris.Wrapf(err, "performance: report link %s", jobID)
	}
	if resp.ContentDisposition == "" {
		return "", eris.Errorf("performance: report link %s: vendor returned no link", jobID)
	}
	return resp.ContentDisposition, nil
}

// validToken returns the cached token, exchanging credentials first when the
// cached one has expired. The exchange failure is an *AuthError.
func (c *httpClient) validToken(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid(c.now()) {
		return c.token, nil
	}

	body, err := json.Marshal(tokenRequest{
		ClientID:     c.cred.ClientID,
		ClientSecret: c.cred.ClientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthError{Err: &APIError{StatusCode: resp.StatusCode, Body: string(data)}}
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, &AuthError{Err: eris.Wrap(err, "decode token response")}
	}
	token.issuedAt = c.now()
	c.token = &token

	return c.token, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, req, out)
}

func (c *httpClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}

	return c.do(ctx, req, out)
}

func (c *httpClient) do(ctx context.Context, req *http.Request, out any) error {
	token, err := c.validToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", token.TokenType+" "+token.AccessToken)

	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limiter wait")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
