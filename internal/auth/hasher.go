package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// KeyPrefixLength is how many leading characters of a key are stored in
// clear for lookup. The prefix alone grants nothing.
const KeyPrefixLength = 8

// GetKeyPrefix extracts the lookup prefix from an API key
func GetKeyPrefix(key string) string {
	if len(key) < KeyPrefixLength {
		return key
	}
	return key[:KeyPrefixLength]
}

// HashAPIKey hashes an API key using bcrypt
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}

// VerifyAPIKey verifies an API key against its stored hash
func VerifyAPIKey(key, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}
