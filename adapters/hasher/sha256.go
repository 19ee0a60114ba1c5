package hasher

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/satriahrh/cocoa-fruit/haggle/domain"
)

// fingerprintLen is enough hex characters to tell prompts apart in logs.
const fingerprintLen = 16

// New returns a domain.Hasher producing short SHA-256 fingerprints.
func New() domain.Hasher { return sha256Hasher{size: fingerprintLen} }

// NewFull returns a domain.Hasher producing the full hex digest.
func NewFull() domain.Hasher { return sha256Hasher{size: sha256.Size * 2} }

type sha256Hasher struct {
	size int
}

func (h sha256Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:h.size]
}
