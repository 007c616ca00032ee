package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateCode creates a 6-digit zero-padded numeric code using crypto/rand
func GenerateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashCode binds a code to the phone and purpose it was issued for.
func HashCode(phone, purpose, code string) string {
	h := sha256.Sum256([]byte(phone + "|" + purpose + "|" + code))
	return hex.EncodeToString(h[:])
}

// CodeMatches compares in constant time.
func CodeMatches(storedHash, phone, purpose, code string) bool {
	candidate := HashCode(phone, purpose, code)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(candidate)) == 1
}
