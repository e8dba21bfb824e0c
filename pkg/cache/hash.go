package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashKey builds a key of the form "<kind>:<digest>" where the digest
// covers the JSON encoding of every input. Any input that shapes the
// artifact - tree hash, filter selection, drawing area, member sets -
// belongs in here, so a changed input can never replay a stale entry.
func hashKey(kind string, inputs ...any) string {
	data, _ := json.Marshal(inputs)
	return kind + ":" + Hash(data)
}

// Hash returns the hex SHA-256 digest of data. The full 64-character
// digest is kept; keys are never displayed, so there is nothing to gain
// from truncating it.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
