// Package transaction defines the transaction record gossiped between nodes
// and its compact binary wire encoding.
package transaction

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Record is a single transaction as it travels over the wire.
// Records are immutable after creation: the timestamp is stamped once and the
// signature is an opaque placeholder token, not a verified cryptographic signature.
type Record struct {
	Signature string
	Sender    string
	Timestamp uint64
	Payload   []byte
}

// placeholderPayload is the fixed payload carried by locally created records.
var placeholderPayload = []byte{0, 1, 2, 3}

// New creates a record originating from the given sender, stamped with the
// current time and a random placeholder signature token.
func New(sender string) *Record {
	return &Record{
		Signature: fmt.Sprintf("signature-%d", rand.Uint64()),
		Sender:    sender,
		Timestamp: uint64(time.Now().Unix()),
		Payload:   append([]byte(nil), placeholderPayload...),
	}
}

// ContentID returns the content-addressed identifier for a serialized record.
// It depends only on the bytes, so the same payload relayed along different
// paths collapses to one identifier. Also used as the gossip message id.
func ContentID(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 10)
}
