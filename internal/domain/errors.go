package domain

import (
	"context"
	"errors"
	"strings"
)

// Error taxonomy of the download lifecycle. Concrete failures wrap one of
// these so callers can classify them with errors.Is.
var (
	ErrTransport         = errors.New("transport error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrProtocol          = errors.New("protocol error")
	ErrBackendJob        = errors.New("unidentified backend error")
	ErrAlreadyActive     = errors.New("a download is already in progress")
	ErrEmptyURL          = errors.New("url must not be empty")
	ErrJobNotFound       = errors.New("job not found")
)

// ErrorKind returns the taxonomy name of err for logging
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyActive):
		return "AlreadyActive"
	case errors.Is(err, ErrEmptyURL):
		return "InvalidURL"
	case errors.Is(err, ErrMalformedResponse):
		return "MalformedResponse"
	case errors.Is(err, ErrProtocol):
		return "ProtocolError"
	case errors.Is(err, ErrBackendJob):
		return "BackendJobError"
	case errors.Is(err, ErrTransport):
		return "TransportError"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// UserMessage renders err as the message shown to the user
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var prefix string
	switch {
	case errors.Is(err, ErrBackendJob):
		return "Download failed: the server reported an error while processing the job"
	case errors.Is(err, context.Canceled):
		return "Download cancelled"
	case errors.Is(err, ErrAlreadyActive):
		return "A download is already in progress"
	case errors.Is(err, ErrEmptyURL):
		return "Enter a URL to download"
	case errors.Is(err, ErrProtocol):
		prefix = "Unexpected server response"
	case errors.Is(err, ErrMalformedResponse):
		prefix = "Could not read server response"
	case errors.Is(err, ErrTransport):
		prefix = "Could not reach the download server"
	default:
		prefix = "Download failed"
	}

	detail := err.Error()
	if idx := strings.Index(detail, ": "); idx >= 0 && ErrorKind(err) != "Unknown" {
		detail = detail[idx+2:]
	}
	return prefix + ": " + detail
}
