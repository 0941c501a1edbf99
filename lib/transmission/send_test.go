// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transmission

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendPostsContentAndHeaders(t *testing.T) {
	type received struct {
		method, contentType, contentEncoding string
		body                                 []byte
	}
	requests := make(chan received, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- received{r.Method, r.Header.Get("Content-Type"), r.Header.Get("Content-Encoding"), body}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"itemsAccepted":1}`)
	}))
	defer server.Close()

	tr, err := New(server.URL+"/v2/track", []byte("payload"), "application/x-json-stream", "gzip", time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	response, err := tr.Send(context.Background(), server.Client())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d", response.StatusCode)
	}
	if string(response.Body) != `{"itemsAccepted":1}` {
		t.Fatalf("Body = %q", response.Body)
	}

	got := <-requests
	if got.method != http.MethodPost {
		t.Errorf("method = %s, want POST", got.method)
	}
	if got.contentType != "application/x-json-stream" || got.contentEncoding != "gzip" {
		t.Errorf("headers = %q / %q", got.contentType, got.contentEncoding)
	}
	if string(got.body) != "payload" {
		t.Errorf("body = %q", got.body)
	}
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tr, _ := New(server.URL, []byte("slow"), "text/plain", "", 50*time.Millisecond)
	_, err := tr.Send(context.Background(), server.Client())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Send error = %v, want ErrTimeout", err)
	}
	if Classify(nil, err) != OutcomeRetryTransport {
		t.Fatalf("timeout classified as %v, want retry_transport", Classify(nil, err))
	}
}

func TestSendCanceled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		close(started)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tr, _ := New(server.URL, []byte("cancel me"), "text/plain", "", time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := tr.Send(ctx, server.Client())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Send error = %v, want context.Canceled", err)
	}
	if Classify(nil, err) != OutcomeCanceled {
		t.Fatalf("classified as %v, want canceled", Classify(nil, err))
	}
}

func TestSendAlreadyCanceledDoesNotPost(t *testing.T) {
	client := &countingDoer{}
	tr, _ := New("https://collector.example/", []byte("x"), "", "", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Send(ctx, client); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send error = %v, want context.Canceled", err)
	}
	if client.calls != 0 {
		t.Fatalf("client called %d times", client.calls)
	}
}

func TestSendRejectsReentry(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	client := doerFunc(func(r *http.Request) (*http.Response, error) {
		close(entered)
		<-release
		return &http.Response{StatusCode: 200, Body: io.NopCloser(http.NoBody)}, nil
	})

	tr, _ := New("https://collector.example/", []byte("x"), "", "", time.Minute)
	done := make(chan error, 1)
	go func() {
		_, err := tr.Send(context.Background(), client)
		done <- err
	}()
	<-entered

	if _, err := tr.Send(context.Background(), client); !errors.Is(err, ErrSendInProgress) {
		t.Fatalf("re-entrant Send error = %v, want ErrSendInProgress", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Send: %v", err)
	}

	// The guard resets once the first send completes.
	if _, err := tr.Send(context.Background(), &countingDoer{}); err != nil {
		t.Fatalf("Send after completion: %v", err)
	}
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

type countingDoer struct{ calls int }

func (c *countingDoer) Do(*http.Request) (*http.Response, error) {
	c.calls++
	return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
}
