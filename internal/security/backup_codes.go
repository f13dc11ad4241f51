package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	BackupCodeCount  = 10
	BackupCodeLength = 8
)

// NewBackupCodes returns count codes of 8 uppercase hex characters.
func NewBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	buf := make([]byte, BackupCodeLength/2)
	for i := 0; i < count; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes = append(codes, strings.ToUpper(hex.EncodeToString(buf)))
	}
	return codes, nil
}

// HashBackupCodes hashes each code with bcrypt at cost.
func HashBackupCodes(codes []string, cost int) ([]string, error) {
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		hash, err := HashBcrypt(NormalizeBackupCode(code), cost)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, string(hash))
	}
	return hashes, nil
}

// MatchBackupCode returns the index of the hash matching code, or -1.
func MatchBackupCode(hashes []string, code string) int {
	code = NormalizeBackupCode(code)
	for i, hash := range hashes {
		if CompareBcrypt([]byte(hash), code) {
			return i
		}
	}
	return -1
}

func IsBackupCodeShape(code string) bool {
	return len(NormalizeBackupCode(code)) == BackupCodeLength
}

func NormalizeBackupCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}
