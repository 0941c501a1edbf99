// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package flush

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"mime"

	"github.com/bureau-foundation/spool/lib/codec"
)

// Content types produced by the built-in serializers.
const (
	ContentTypeJSONLines = "application/x-json-stream"
	ContentTypeCBOR      = "application/cbor"
)

// Serializer turns a batch of telemetry items into a request body.
type Serializer interface {
	ContentType() string
	Serialize(items []any) ([]byte, error)
}

// JSONLines writes one JSON document per item, newline terminated.
type JSONLines struct{}

func (JSONLines) ContentType() string { return ContentTypeJSONLines }

func (JSONLines) Serialize(items []any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	for i, item := range items {
		if err := encoder.Encode(item); err != nil {
			return nil, fmt.Errorf("encoding item %d as JSON: %w", i, err)
		}
	}
	return buffer.Bytes(), nil
}

// CBORSequence writes the batch as an RFC 8742 CBOR sequence with
// deterministic encoding.
type CBORSequence struct{}

func (CBORSequence) ContentType() string { return ContentTypeCBOR }

func (CBORSequence) Serialize(items []any) ([]byte, error) {
	return codec.MarshalSequence(items)
}

// ParseSerializer returns the serializer for a configuration name.
func ParseSerializer(name string) (Serializer, error) {
	switch name {
	case "", "json":
		return JSONLines{}, nil
	case "cbor":
		return CBORSequence{}, nil
	default:
		return nil, fmt.Errorf("unknown serializer %q", name)
	}
}

// DecodeItems parses an uncompressed body produced by one of the
// built-in serializers back into items.
func DecodeItems(contentType string, data []byte) ([]any, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parsing content type %q: %w", contentType, err)
	}
	switch mediaType {
	case ContentTypeJSONLines, "application/x-ndjson", "application/json":
		var items []any
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var item any
			if err := json.Unmarshal(line, &item); err != nil {
				return items, fmt.Errorf("decoding JSON line %d: %w", len(items)+1, err)
			}
			items = append(items, item)
		}
		return items, scanner.Err()
	case ContentTypeCBOR:
		return codec.UnmarshalSequence(data)
	default:
		return nil, fmt.Errorf("no decoder for content type %q", mediaType)
	}
}
