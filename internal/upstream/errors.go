package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned before any network call when the query is empty.
	ErrInvalidQuery = errors.New("upstream: invalid query")
	// ErrMissingCredential is returned before any network call when no API key is configured.
	ErrMissingCredential = errors.New("upstream: provider API key not configured")
)

type Kind string

const (
	KindTransientServerError Kind = "transient_server_error"
	KindClientRejected       Kind = "client_rejected"
	KindMalformedResponse    Kind = "malformed_response"
	KindRetriesExhausted     Kind = "retries_exhausted"
)

// Failure describes why a provider call did not produce a result.
type Failure struct {
	Kind       Kind
	StatusCode int
	// Body is the provider's response body for status-bearing failures.
	Body string
	// Raw is the payload that could not be parsed.
	Raw      string
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindTransientServerError:
		return fmt.Sprintf("upstream: transient server error (status %d)", f.StatusCode)
	case KindClientRejected:
		return fmt.Sprintf("upstream: request rejected (status %d): %s", f.StatusCode, f.Body)
	case KindMalformedResponse:
		if f.Err != nil {
			return fmt.Sprintf("upstream: malformed response: %v", f.Err)
		}
		return "upstream: malformed response"
	case KindRetriesExhausted:
		if f.Err != nil {
			return fmt.Sprintf("upstream: retries exhausted after %d attempts: %v", f.Attempts, f.Err)
		}
		return fmt.Sprintf("upstream: retries exhausted after %d attempts", f.Attempts)
	default:
		return fmt.Sprintf("upstream: %s", f.Kind)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf reports the failure kind carried by err, or "" when err is not a Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

func malformed(raw string, cause error) *Failure {
	return &Failure{Kind: KindMalformedResponse, Raw: raw, Err: cause}
}

var (
	errEnvelopeNotJSON = errors.New("envelope is not valid JSON")
	errEnvelopeShape   = errors.New("envelope has no candidates[0].content.parts[0].text")
)
