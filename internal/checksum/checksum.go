// Package checksum provides content hashing for the sync ledger and
// request fingerprinting for the idempotency ledger.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a stable digest of a request body. JSON bodies are
// compacted first so that formatting differences between retries of the
// same logical request do not change the fingerprint.
func Fingerprint(body []byte) string {
	var buf bytes.Buffer
	if json.Valid(body) {
		if err := json.Compact(&buf, body); err == nil {
			return Sum(buf.Bytes())
		}
	}
	return Sum(body)
}
