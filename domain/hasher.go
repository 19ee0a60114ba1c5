package domain

// Hasher produces a stable fingerprint of arbitrary bytes.
type Hasher interface {
	Hash(data []byte) string
}
