package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID mints a random hex row id for locally created records (ideas, reels,
// assets). Generator ids that cross the wire to the agent are minted
// separately and carry their own prefixes.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
