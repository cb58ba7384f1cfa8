package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// RegistryRecord is the credential registry's view of one enrolled voter,
// keyed by the hashed national identity credential.
type RegistryRecord struct {
	CredentialHash string
	CardHash       string
	IsActive       bool
	Assignment     GeoAssignment
}

// HashCredential normalizes a plaintext credential (surrounding whitespace
// and letter case are ignored) and returns its hex SHA-256 digest.
func HashCredential(plaintext string) string {
	hash := sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(plaintext))))
	return hex.EncodeToString(hash[:])
}
