package relay

import (
	"fmt"
	"net/http"
)

// Kind classifies a terminal failure of the relay.
type Kind int

const (
	KindConfigurationMissing Kind = iota + 1
	KindMethodNotAllowed
	KindUnauthorizedOrigin
	KindBadRequest
	KindUpstreamError
	KindInternalRelayFailure
)

func (k Kind) String() string {
	switch k {
	case KindConfigurationMissing:
		return "configuration_missing"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindUnauthorizedOrigin:
		return "unauthorized_origin"
	case KindBadRequest:
		return "bad_request"
	case KindUpstreamError:
		return "upstream_error"
	case KindInternalRelayFailure:
		return "relay_failure"
	default:
		return "unknown"
	}
}

// Client-facing messages. Browser code matches on some of these verbatim.
const (
	msgConfigOK          = "Configuration is ok"
	msgConfigMissing     = "STT configuration is missing"
	msgMethodNotAllowed  = "Method not allowed"
	msgUnauthorized      = "Unauthorized origin"
	msgNoAudio           = "No audio file uploaded"
	msgFetchFailed       = "Failed to fetch audio from URL"
	msgFetchError        = "Error fetching audio from URL"
	msgFetchedTooLarge   = "Audio file size exceeds 10MB limit"
	msgUploadTooLarge    = "File size exceeds 10MB limit"
	msgProcessingFailure = "Error processing audio file"
)

// Error is a failure already mapped to its HTTP response.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Plain selects a text/plain body instead of {"message": ...}.
	Plain bool
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func badRequest(msg string, err error) *Error {
	return &Error{Kind: KindBadRequest, Status: http.StatusBadRequest, Message: msg, Err: err}
}

var (
	errMethodNotAllowed = &Error{
		Kind:    KindMethodNotAllowed,
		Status:  http.StatusMethodNotAllowed,
		Message: msgMethodNotAllowed,
		Plain:   true,
	}
	errUnauthorizedOrigin = &Error{
		Kind:    KindUnauthorizedOrigin,
		Status:  http.StatusForbidden,
		Message: msgUnauthorized,
		Plain:   true,
	}
	errConfigMissing = &Error{
		Kind:    KindConfigurationMissing,
		Status:  http.StatusInternalServerError,
		Message: msgConfigMissing,
	}
)
