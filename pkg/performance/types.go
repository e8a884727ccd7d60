package performance

import (
	"fmt"
	"time"
)

// Credential identifies one advertiser account against the vendor API.
// The grant type is always client_credentials.
type Credential struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Token is one issued bearer credential. Tokens are replaced wholesale on
// refresh and never mutated in place.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`

	issuedAt time.Time
}

// Valid reports whether the token can still be used at the given instant.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Sub(t.issuedAt) < time.Duration(t.ExpiresIn)*time.Second
}

// tokenRequest is the body for the token endpoint.
type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

// ReportRequest is the body for POST /api/client/vendors/statistics.
type ReportRequest struct {
	DateFrom string `json:"dateFrom"`
	DateTo   string `json:"dateTo"`
	Type     string `json:"type"`
}

// reportResponse is the response from POST /api/client/vendors/statistics.
type reportResponse struct {
	UUID string `json:"UUID"`
}

// Report job states as reported by GET /api/client/statistics/{uuid}.
const (
	stateOK    = "OK"
	stateError = "ERROR"
)

// StatusResponse is the response from GET /api/client/statistics/{uuid}.
// Any state other than OK or ERROR means the report is still being built.
type StatusResponse struct {
	State string `json:"state"`
	Error string `json:"error"`
}

// Ready reports whether the job has produced a downloadable artifact.
func (s *StatusResponse) Ready() bool {
	return s.State == stateOK
}

// linkResponse is the response from GET /api/client/statistics/report.
type linkResponse struct {
	ContentDisposition string `json:"contentDisposition"`
}

// APIError is returned when the vendor responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("performance: HTTP %d: %s", e.StatusCode, e.Body)
}

// AuthError is returned when the credential exchange fails. It is fatal for
// the current job and never retried automatically.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "performance: token exchange: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// JobFailedError is returned when the vendor explicitly reports a job in the
// ERROR state. The reason text is vendor-supplied.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("performance: report job %s failed: %s", e.JobID, e.Reason)
}
