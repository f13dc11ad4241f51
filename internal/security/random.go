package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	sessionTokenBytes = 32
	resetTokenBytes   = 32
	tempPasswordLen   = 16
)

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewSessionToken returns 32 random bytes as lowercase hex.
func NewSessionToken() (string, error) {
	return randomHex(sessionTokenBytes)
}

// NewResetToken returns the token handed to the user and the hash to persist.
func NewResetToken() (token string, hash string, err error) {
	token, err = randomHex(resetTokenBytes)
	if err != nil {
		return "", "", err
	}
	return token, HashResetToken(token), nil
}

func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

const (
	tempUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	tempLower   = "abcdefghijkmnopqrstuvwxyz"
	tempDigits  = "23456789"
	tempSymbols = "!@#$%^&*"
)

// NewTemporaryPassword returns a random password that satisfies ValidatePasswordStrength.
func NewTemporaryPassword() (string, error) {
	classes := []string{tempUpper, tempLower, tempDigits, tempSymbols}
	all := tempUpper + tempLower + tempDigits + tempSymbols

	out := make([]byte, 0, tempPasswordLen)
	for _, class := range classes {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < tempPasswordLen {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("shuffle: %w", err)
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("pick: %w", err)
	}
	return alphabet[n.Int64()], nil
}
