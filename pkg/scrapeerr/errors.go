package scrapeerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents different types of scrape failures
type ErrorCode string

const (
	// Transport-level failure (DNS, dial, TLS, timeout)
	CodeNetwork ErrorCode = "NETWORK_ERROR"
	// Non-2xx status from the target or an intermediary
	CodeHTTP ErrorCode = "HTTP_ERROR"
	// 2xx response that failed listings-page validation
	CodeContentInvalid ErrorCode = "CONTENT_INVALID"
	// Malformed row, localized to one record
	CodeParse ErrorCode = "PARSE_ERROR"
	// Every fetch strategy tried and spent
	CodeFetchExhausted ErrorCode = "FETCH_EXHAUSTED"
)

// ScrapeError is an error with a taxonomy code and an optional cause chain.
type ScrapeError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Cause      error
	Retryable  bool
}

func (e *ScrapeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether another attempt could plausibly succeed.
func (e *ScrapeError) IsRetryable() bool {
	return e.Retryable
}

// Network wraps a transport-level failure.
func Network(message string, cause error) *ScrapeError {
	return &ScrapeError{Code: CodeNetwork, Message: message, Cause: cause, Retryable: true}
}

// HTTP records a non-2xx response. A 403 is flagged as likely bot
// interdiction and is still retryable against a different intermediary.
func HTTP(statusCode int, message string) *ScrapeError {
	return &ScrapeError{
		Code:       CodeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  true,
	}
}

// ContentInvalid records a 2xx response whose body failed the listings-page
// validation (structural marker missing or body too short).
func ContentInvalid(message string) *ScrapeError {
	return &ScrapeError{Code: CodeContentInvalid, Message: message, Retryable: true}
}

// Parse records a malformed listing container. Never retried; the container
// is skipped and the rest of the page proceeds.
func Parse(message string, cause error) *ScrapeError {
	return &ScrapeError{Code: CodeParse, Message: message, Cause: cause}
}

// Exhausted wraps the last concrete error once every strategy has been
// spent, so the operator can distinguish "unreachable" from "all blocked".
func Exhausted(message string, last error) *ScrapeError {
	return &ScrapeError{Code: CodeFetchExhausted, Message: message, Cause: last}
}

// CodeOf extracts the taxonomy code from an error chain, or "" if the chain
// holds no ScrapeError.
func CodeOf(err error) ErrorCode {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// StatusOf extracts the HTTP status from an error chain, or 0.
func StatusOf(err error) int {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsBotWall reports whether the error looks like bot interdiction: a 403
// status or a body carrying a known challenge signature.
func IsBotWall(err error) bool {
	return StatusOf(err) == http.StatusForbidden
}

// Bot-wall signatures seen in 403 bodies from Cloudflare-fronted hosts.
var botWallSignatures = []string{"cloudflare", "cf_chl_opt", "Just a moment"}

// BodyLooksLikeBotWall scans a response body for known challenge markers.
func BodyLooksLikeBotWall(body string) bool {
	lower := strings.ToLower(body)
	for _, sig := range botWallSignatures {
		if strings.Contains(lower, strings.ToLower(sig)) {
			return true
		}
	}
	return false
}
