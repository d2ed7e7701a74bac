package match

// errors.go defines the two failure kinds of a submission and maps them to
// user-facing messages.
//
// # Error Codes Reference
//
//	SRV000 - Server reported: the matching service (or this frontend) rejected
//	         the request and supplied a message. Shown verbatim.
//
//	UPS001 - Connection refused: matching service is not reachable
//	         Patterns: "connection refused", "no such host"
//
//	UPS002 - Connection reset: connection dropped mid-request
//	         Patterns: "connection reset", "EOF"
//
//	UPS003 - Timeout: matching service did not answer in time
//	         Patterns: "deadline exceeded", "timeout"
//
//	UPS004 - Circuit open: recent calls failed, upstream is being skipped
//	         Patterns: "circuit breaker is open", "too many requests"
//
//	UPS005 - Busy: all upload slots are in use
//	         Patterns: "too many concurrent uploads"
//
//	UPS006 - Malformed response: body was not the expected JSON shape
//	         Patterns: "decode", "invalid character", "unexpected"
//
//	ERR000 - Unknown error: fallback when no pattern matches
//
// Transport errors always show GenericFailureMessage to the user. The code
// and action are for logs and support.

import (
	"errors"
	"fmt"
	"strings"
)

// GenericFailureMessage is shown for every transport or parse failure.
const GenericFailureMessage = "An error occurred while processing the files."

// ServerError is a failure the server reported with a message of its own.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.Status, e.Message)
}

// TransportError covers network failures, timeouts and responses that could
// not be decoded. Its detail is never shown to the user.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsServerError reports whether err carries a server-supplied message.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// IsTransportError reports whether err is a transport or parse failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What to show
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// transportPatterns are matched case-insensitively; first match wins.
var transportPatterns = []errorPattern{
	{"connection refused", UserMessage{Action: "Check that the matching service is running", Code: "UPS001"}},
	{"no such host", UserMessage{Action: "Check the upstream URL", Code: "UPS001"}},
	{"connection reset", UserMessage{Action: "Please try again", Code: "UPS002"}},
	{"deadline exceeded", UserMessage{Action: "Try fewer or smaller files", Code: "UPS003"}},
	{"timeout", UserMessage{Action: "Try fewer or smaller files", Code: "UPS003"}},
	{"circuit breaker is open", UserMessage{Action: "Please wait a moment and try again", Code: "UPS004"}},
	{"too many requests", UserMessage{Action: "Please wait a moment and try again", Code: "UPS004"}},
	{"too many concurrent uploads", UserMessage{Action: "Please wait a moment and try again", Code: "UPS005"}},
	{"decode", UserMessage{Action: "Contact support with the request ID", Code: "UPS006"}},
	{"invalid character", UserMessage{Action: "Contact support with the request ID", Code: "UPS006"}},
	{"unexpected", UserMessage{Action: "Contact support with the request ID", Code: "UPS006"}},
	{"eof", UserMessage{Action: "Please try again", Code: "UPS002"}},
}

var defaultMessage = UserMessage{
	Message: GenericFailureMessage,
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// UserMessageFor maps an error to what the user sees.
// Server-reported messages pass through verbatim; everything else is generic.
func UserMessageFor(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var se *ServerError
	if errors.As(err, &se) {
		return UserMessage{Message: se.Message, Code: "SRV000"}
	}

	lower := strings.ToLower(err.Error())
	for _, ep := range transportPatterns {
		if strings.Contains(lower, ep.pattern) {
			msg := ep.msg
			msg.Message = GenericFailureMessage
			return msg
		}
	}
	return defaultMessage
}
