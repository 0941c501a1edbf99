// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transmission

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest of a payload.
type Hash [32]byte

// String returns the lowercase hex form.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Short returns the first 12 hex characters, for log lines.
func (h Hash) Short() string { return hex.EncodeToString(h[:6]) }

// contentDomainKey separates payload hashes from every other BLAKE3 use
// in the process. Changing it only affects the in-memory dedup cache,
// which does not outlive the process.
var contentDomainKey = func() (key [32]byte) {
	copy(key[:], "spool.transmission.content")
	return key
}()

// HashContent computes the content-domain keyed hash of data.
func HashContent(data []byte) Hash {
	// NewKeyed only fails for keys that are not 32 bytes.
	hasher, err := blake3.NewKeyed(contentDomainKey[:])
	if err != nil {
		panic("transmission: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
