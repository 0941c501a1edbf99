// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transmission

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	content := []byte{0x1f, 0x8b, 0x00, 0xff, '\n', '\r', 'a'}
	original, err := New("https://collector.example/v2/track?ikey=abc", content,
		"application/x-json-stream", "gzip", 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	decoded, err := Unmarshal(Marshal(original), 7*time.Second)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Endpoint() != original.Endpoint() {
		t.Errorf("Endpoint = %q, want %q", decoded.Endpoint(), original.Endpoint())
	}
	if decoded.ContentType() != original.ContentType() {
		t.Errorf("ContentType = %q, want %q", decoded.ContentType(), original.ContentType())
	}
	if decoded.ContentEncoding() != original.ContentEncoding() {
		t.Errorf("ContentEncoding = %q, want %q", decoded.ContentEncoding(), original.ContentEncoding())
	}
	if !bytes.Equal(decoded.Content(), content) {
		t.Errorf("Content = %v, want %v", decoded.Content(), content)
	}
	if decoded.Timeout() != 7*time.Second {
		t.Errorf("Timeout = %v, want the Decode argument", decoded.Timeout())
	}
}

func TestEncodeLayout(t *testing.T) {
	tr, _ := New("https://collector.example/", []byte("hi"), "text/plain", "", 0)
	got := string(Marshal(tr))
	want := "https://collector.example/\nContent-Type:text/plain\nContent-Encoding:\n\naGk="
	if got != want {
		t.Fatalf("Marshal =\n%q\nwant\n%q", got, want)
	}
}

func TestDecodeAcceptsCRLF(t *testing.T) {
	input := "https://collector.example/\r\nContent-Type:text/plain\r\nContent-Encoding:gzip\r\n\r\naGk=\r\n"
	tr, err := Decode(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(tr.Content()) != "hi" || tr.ContentEncoding() != "gzip" {
		t.Fatalf("decoded %q / %q", tr.Content(), tr.ContentEncoding())
	}
}

func TestDecodeEmptyContent(t *testing.T) {
	tr, _ := New("https://collector.example/", nil, "text/plain", "", 0)
	decoded, err := Unmarshal(Marshal(tr), 0)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Content()) != 0 {
		t.Fatalf("Content = %q, want empty", decoded.Content())
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := map[string]string{
		"empty":             "",
		"missing type":      "https://collector.example/\nContent-Encoding:\n\naGk=",
		"misspelled header": "https://collector.example/\nContentType:x\nContent-Encoding:\n\naGk=",
		"missing separator": "https://collector.example/\nContent-Type:x\nContent-Encoding:\naGk=",
		"bad base64":        "https://collector.example/\nContent-Type:x\nContent-Encoding:\n\n!!!",
		"relative endpoint": "/track\nContent-Type:x\nContent-Encoding:\n\naGk=",
		"truncated headers": "https://collector.example/\nContent-Type:x\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(input), 0)
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("Decode error = %v, want ErrFormat", err)
			}
		})
	}
}

func TestDecodeReadFailureIsNotMalformed(t *testing.T) {
	failure := errors.New("input/output error")
	_, err := Decode(iotest.ErrReader(failure), 0)
	if !errors.Is(err, failure) {
		t.Fatalf("Decode error = %v, want the read error", err)
	}
	if errors.Is(err, ErrFormat) {
		t.Errorf("read failure reported as ErrFormat: %v", err)
	}
}
