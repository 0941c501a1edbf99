// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transmission

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// Outcome is the sender's interpretation of one send attempt.
type Outcome int

const (
	// OutcomeSuccess: the endpoint accepted the payload. Delete it
	// and return to the steady-state interval.
	OutcomeSuccess Outcome = iota

	// OutcomeBadRequest: HTTP 400. The payload is never retried and
	// the interval resets to steady state without escalating.
	OutcomeBadRequest

	// OutcomeReject: any other non-retryable status. Delete it.
	OutcomeReject

	// OutcomeRetryStatus: a retryable HTTP status (408, 500, 502, 503,
	// 511). Keep it on disk and back off.
	OutcomeRetryStatus

	// OutcomeRetryTransport: connection-level failure (name
	// resolution, connect, timeout, reset, short read).
	OutcomeRetryTransport

	// OutcomeRetryUnknown: an error that is neither transport nor
	// cancellation. Treated like a transport failure.
	OutcomeRetryUnknown

	// OutcomeCanceled: the caller's context ended. Keep it on disk and
	// stop.
	OutcomeCanceled
)

// String returns a stable lowercase name used in logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeBadRequest:
		return "bad_request"
	case OutcomeReject:
		return "reject"
	case OutcomeRetryStatus:
		return "retry_status"
	case OutcomeRetryTransport:
		return "retry_transport"
	case OutcomeRetryUnknown:
		return "retry_unknown"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Retry reports whether the item stays on disk for a later attempt
// with escalated backoff.
func (o Outcome) Retry() bool {
	return o == OutcomeRetryStatus || o == OutcomeRetryTransport || o == OutcomeRetryUnknown
}

// Delete reports whether the item should be removed from storage.
func (o Outcome) Delete() bool {
	return o == OutcomeSuccess || o == OutcomeBadRequest || o == OutcomeReject
}

// retryableStatus lists the HTTP statuses worth another attempt.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:                true, // 408
	http.StatusInternalServerError:           true, // 500
	http.StatusBadGateway:                    true, // 502
	http.StatusServiceUnavailable:            true, // 503
	http.StatusNetworkAuthenticationRequired: true, // 511
}

// Classify maps the result of Transmission.Send to an Outcome.
func Classify(response *Response, err error) Outcome {
	if err != nil {
		return classifyError(err)
	}
	if response == nil {
		return OutcomeRetryUnknown
	}
	return ClassifyStatus(response.StatusCode)
}

// ClassifyStatus maps an HTTP status code to an Outcome.
func ClassifyStatus(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusBadRequest:
		return OutcomeBadRequest
	case retryableStatus[status]:
		return OutcomeRetryStatus
	default:
		return OutcomeReject
	}
}

func classifyError(err error) Outcome {
	if errors.Is(err, ErrTimeout) {
		return OutcomeRetryTransport
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeCanceled
	}
	if IsTransportError(err) {
		return OutcomeRetryTransport
	}
	return OutcomeRetryUnknown
}

// IsTransportError reports whether err is a connection-level failure:
// DNS resolution, dial, I/O timeout, connection reset or refused, or a
// connection closed mid-response.
func IsTransportError(err error) bool {
	var dnsError *net.DNSError
	var opError *net.OpError
	var netError net.Error
	var urlError *url.Error
	switch {
	case errors.As(err, &dnsError), errors.As(err, &opError):
		return true
	case errors.As(err, &netError) && netError.Timeout():
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED), errors.Is(err, syscall.EPIPE):
		return true
	case errors.As(err, &urlError):
		return urlError.Err != nil && IsTransportError(urlError.Err)
	}
	return false
}
