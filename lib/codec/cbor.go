// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Records carrying encoding.TextMarshaler fields (net/netip
	// addresses, custom ids) encode as text, matching their JSON form.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes one CBOR data item into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder and Decoder are aliases so callers import only lib/codec.
type (
	Encoder = cbor.Encoder
	Decoder = cbor.Decoder
)

// NewEncoder returns a deterministic encoder writing to w. Each Encode
// call appends one item to the sequence.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a decoder reading a CBOR sequence from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// MarshalSequence encodes items as a CBOR sequence.
func MarshalSequence(items []any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for i, item := range items {
		if err := encoder.Encode(item); err != nil {
			return nil, fmt.Errorf("encoding item %d: %w", i, err)
		}
	}
	return buffer.Bytes(), nil
}

// UnmarshalSequence decodes every item of a CBOR sequence.
func UnmarshalSequence(data []byte) ([]any, error) {
	decoder := NewDecoder(bytes.NewReader(data))
	var items []any
	for {
		var item any
		err := decoder.Decode(&item)
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return items, fmt.Errorf("decoding item %d: %w", len(items), err)
		}
		items = append(items, item)
	}
}

// DiagnoseSequence returns RFC 8949 diagnostic notation for each item
// of a CBOR sequence.
func DiagnoseSequence(data []byte) ([]string, error) {
	var notes []string
	for len(data) > 0 {
		note, rest, err := cbor.DiagnoseFirst(data)
		if err != nil {
			return notes, err
		}
		notes = append(notes, note)
		data = rest
	}
	return notes, nil
}
