// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transmission

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	contentTypeHeader     = "Content-Type:"
	contentEncodingHeader = "Content-Encoding:"
)

// ErrFormat is returned by Decode for input that is not a queue file.
var ErrFormat = errors.New("transmission: malformed queue file")

// Encode writes t in the queue file format.
func Encode(w io.Writer, t *Transmission) error {
	buffered := bufio.NewWriter(w)
	fmt.Fprintf(buffered, "%s\n%s%s\n%s%s\n\n",
		t.Endpoint(),
		contentTypeHeader, t.contentType,
		contentEncodingHeader, t.contentEncoding)

	encoder := base64.NewEncoder(base64.StdEncoding, buffered)
	if _, err := encoder.Write(t.content); err != nil {
		return fmt.Errorf("encoding content: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encoding content: %w", err)
	}
	return buffered.Flush()
}

// Marshal returns t in the queue file format.
func Marshal(t *Transmission) []byte {
	var buffer bytes.Buffer
	// bytes.Buffer writes only fail by panicking on OOM.
	_ = Encode(&buffer, t)
	return buffer.Bytes()
}

// Decode reads one queue file. timeout is the per-POST timeout for the
// returned Transmission; it is not part of the file format.
func Decode(r io.Reader, timeout time.Duration) (*Transmission, error) {
	reader := bufio.NewReader(r)

	endpoint, err := readLine(reader)
	if err != nil {
		return nil, lineError("endpoint", err)
	}
	contentType, err := readHeader(reader, contentTypeHeader)
	if err != nil {
		return nil, err
	}
	contentEncoding, err := readHeader(reader, contentEncodingHeader)
	if err != nil {
		return nil, err
	}
	separator, err := readLine(reader)
	if err != nil {
		return nil, lineError("header separator", err)
	}
	if separator != "" {
		return nil, fmt.Errorf("%w: expected blank line after headers, got %q", ErrFormat, separator)
	}

	encoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding content: %w", ErrFormat, err)
	}

	t, err := New(endpoint, content, contentType, contentEncoding, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return t, nil
}

// Unmarshal decodes a queue file held in memory.
func Unmarshal(data []byte, timeout time.Duration) (*Transmission, error) {
	return Decode(bytes.NewReader(data), timeout)
}

func readHeader(reader *bufio.Reader, name string) (string, error) {
	line, err := readLine(reader)
	if err != nil {
		return "", lineError(strings.TrimSuffix(name, ":")+" header", err)
	}
	value, found := strings.CutPrefix(line, name)
	if !found {
		return "", fmt.Errorf("%w: expected %s header, got %q", ErrFormat, strings.TrimSuffix(name, ":"), line)
	}
	return strings.TrimSpace(value), nil
}

// lineError marks a file that ends early as malformed. Any other read
// failure is I/O and says nothing about the file's contents.
func lineError(what string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s: %w", ErrFormat, what, err)
	}
	return fmt.Errorf("reading %s: %w", what, err)
}

// readLine returns the next line without its terminator, accepting
// both LF and CRLF. A final line without terminator is returned with
// a nil error; an empty read at EOF returns io.ErrUnexpectedEOF.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
