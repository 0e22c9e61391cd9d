package translator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

// Class is the coarse category of a batch failure.
type Class int

const (
	ClassUnknown Class = iota
	ClassCancelled
	ClassNetwork
	ClassRateLimited
	ClassAuth
	ClassServer
	ClassProtocol
)

func (c Class) String() string {
	switch c {
	case ClassCancelled:
		return "cancelled"
	case ClassNetwork:
		return "network"
	case ClassRateLimited:
		return "rate_limited"
	case ClassAuth:
		return "auth"
	case ClassServer:
		return "server"
	case ClassProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Code, e.Body)
}

// ProtocolError is returned when a response cannot be used: the body is
// malformed or the number of translations differs from the request.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// countMismatch builds the ProtocolError for a response of the wrong size.
func countMismatch(got, want int) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf("got %d translations for %d segments", got, want)}
}

// Classify maps err onto a Class.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, context.Canceled) {
		return ClassCancelled
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusTooManyRequests:
			return ClassRateLimited
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return ClassAuth
		case se.Code >= 500:
			return ClassServer
		default:
			return ClassUnknown
		}
	}

	var pe *ProtocolError
	if errors.As(err, &pe) {
		return ClassProtocol
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassNetwork
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ClassNetwork
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ClassNetwork
	}
	return ClassUnknown
}

// Describe returns a short user-facing message for err.
func Describe(err error) string {
	switch Classify(err) {
	case ClassCancelled:
		return "translation stopped"
	case ClassNetwork:
		return "translation backend unreachable"
	case ClassRateLimited:
		return "translation backend is rate limiting requests, try again later"
	case ClassAuth:
		return "translation backend rejected the credentials"
	case ClassServer:
		var se *StatusError
		errors.As(err, &se)
		return fmt.Sprintf("translation backend failed (HTTP %d)", se.Code)
	case ClassProtocol:
		return "translation backend sent an unusable response"
	default:
		return fmt.Sprintf("translation failed: %v", err)
	}
}

// normalizeError converts SDK error types into StatusError so Classify
// sees one shape regardless of the backend.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Code: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &StatusError{Code: gErr.Code, Body: gErr.Message}
	}
	return err
}
