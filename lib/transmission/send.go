// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transmission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBody caps how much of a response body Send keeps for
// diagnostics. The rest is drained and discarded.
const maxResponseBody = 64 * 1024

var (
	// ErrSendInProgress is returned when Send is called on a
	// Transmission that is already being sent.
	ErrSendInProgress = errors.New("transmission: send already in progress")

	// ErrTimeout marks a POST aborted by the transmission timeout.
	// It wraps as a cause so errors.Is matches through transport
	// error chains.
	ErrTimeout = errors.New("transmission: request timed out")
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Response is the part of an HTTP response the sender inspects.
type Response struct {
	StatusCode int
	Header     http.Header

	// Body holds at most the first 64 KiB of the response body.
	Body []byte
}

// Send POSTs the payload to the endpoint and waits for the response
// through to body close. The attempt is bounded by both ctx and the
// transmission timeout. When ctx ends first, ctx's error is returned
// unwrapped; when the timeout fires first, the error wraps ErrTimeout.
func (t *Transmission) Send(ctx context.Context, client Doer) (*Response, error) {
	if !t.sending.CompareAndSwap(false, true) {
		return nil, ErrSendInProgress
	}
	defer t.sending.Store(false)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	requestContext, cancel := context.WithTimeoutCause(ctx, t.timeout, ErrTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(requestContext, http.MethodPost, t.endpoint.String(), bytes.NewReader(t.content))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if t.contentType != "" {
		request.Header.Set("Content-Type", t.contentType)
	}
	if t.contentEncoding != "" {
		request.Header.Set("Content-Encoding", t.contentEncoding)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, t.requestError(ctx, requestContext, err)
	}
	defer response.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(response.Body, maxResponseBody))
	io.Copy(io.Discard, response.Body)

	return &Response{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		Body:       body,
	}, nil
}

// requestError attributes a failed Do to the caller's context, the
// transmission timeout, or the transport, in that order.
func (t *Transmission) requestError(ctx, requestContext context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(context.Cause(requestContext), ErrTimeout) {
		return fmt.Errorf("%w after %v: %w", ErrTimeout, t.timeout, err)
	}
	return err
}
