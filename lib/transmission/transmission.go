// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transmission

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds a single POST when the caller passes zero.
const DefaultTimeout = 100 * time.Second

// ErrInvalidEndpoint is returned by New for endpoints that are not
// absolute http or https URLs.
var ErrInvalidEndpoint = errors.New("transmission: endpoint must be an absolute http or https URL")

// ErrInvalidHeader is returned by New for a content type or encoding
// containing control characters, which cannot be written as a header
// line.
var ErrInvalidHeader = errors.New("transmission: header value contains control characters")

// Transmission is one payload bound for one endpoint.
type Transmission struct {
	endpoint        *url.URL
	content         []byte
	contentType     string
	contentEncoding string
	timeout         time.Duration

	hashOnce sync.Once
	hash     Hash

	sending atomic.Bool
}

// New validates endpoint and returns a Transmission owning content.
// The caller must not modify content afterwards. A non-positive
// timeout selects DefaultTimeout.
func New(endpoint string, content []byte, contentType, contentEncoding string, timeout time.Duration) (*Transmission, error) {
	parsed, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if hasControl(contentType) {
		return nil, fmt.Errorf("%w: content type %q", ErrInvalidHeader, contentType)
	}
	if hasControl(contentEncoding) {
		return nil, fmt.Errorf("%w: content encoding %q", ErrInvalidHeader, contentEncoding)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transmission{
		endpoint:        parsed,
		content:         content,
		contentType:     contentType,
		contentEncoding: contentEncoding,
		timeout:         timeout,
	}, nil
}

func hasControl(value string) bool {
	return strings.ContainsFunc(value, func(r rune) bool {
		return r < 0x20 || r == 0x7f
	})
}

// ParseEndpoint parses and validates an endpoint URL.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	return parsed, nil
}

// Endpoint returns the destination URL as a string.
func (t *Transmission) Endpoint() string { return t.endpoint.String() }

// Content returns the payload. Callers must treat it as read-only.
func (t *Transmission) Content() []byte { return t.content }

// ContentType returns the Content-Type header value.
func (t *Transmission) ContentType() string { return t.contentType }

// ContentEncoding returns the Content-Encoding header value, empty
// for uncompressed payloads.
func (t *Transmission) ContentEncoding() string { return t.contentEncoding }

// Timeout returns the per-POST timeout.
func (t *Transmission) Timeout() time.Duration { return t.timeout }

// Size returns the payload length in bytes.
func (t *Transmission) Size() int { return len(t.content) }

// ContentHash returns the keyed hash of the payload, computing it on
// first use.
func (t *Transmission) ContentHash() Hash {
	t.hashOnce.Do(func() {
		t.hash = HashContent(t.content)
	})
	return t.hash
}
