package security

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var ErrUnknownHashFormat = errors.New("unknown password hash format")

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

// PasswordHasher hashes with argon2id and still verifies bcrypt hashes carried over
// from older user records.
type PasswordHasher struct {
	params Argon2Params
}

func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	if params.KeyLen == 0 {
		params.KeyLen = DefaultArgon2Params.KeyLen
	}
	if params.SaltLen == 0 {
		params.SaltLen = DefaultArgon2Params.SaltLen
	}
	if params.Threads == 0 {
		params.Threads = 1
	}
	return &PasswordHasher{params: params}
}

func (h *PasswordHasher) Hash(password string) ([]byte, error) {
	return HashPasswordWithParams(password, h.params)
}

// Verify reports whether password matches encoded. rehash is true when the stored
// hash should be replaced by one produced with the current parameters.
func (h *PasswordHasher) Verify(password string, encoded []byte) (ok bool, rehash bool, err error) {
	if isBcryptHash(encoded) {
		err := bcrypt.CompareHashAndPassword(encoded, []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, false, nil
		}
		if err != nil {
			return false, false, fmt.Errorf("bcrypt compare: %w", err)
		}
		return true, true, nil
	}

	params, salt, hash, err := decodeArgon2(encoded)
	if err != nil {
		return false, false, err
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	if subtle.ConstantTimeCompare(hash, computed) != 1 {
		return false, false, nil
	}

	rehash = params.Time != h.params.Time || params.Memory != h.params.Memory || params.Threads != h.params.Threads
	return true, rehash, nil
}

func HashPasswordWithParams(password string, params Argon2Params) ([]byte, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	result := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Time, params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))

	return []byte(result), nil
}

// HashBcrypt hashes secret with bcrypt at the given cost.
func HashBcrypt(secret string, cost int) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt hash: %w", err)
	}
	return hash, nil
}

func CompareBcrypt(hash []byte, secret string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(secret)) == nil
}

func isBcryptHash(encoded []byte) bool {
	return bytes.HasPrefix(encoded, []byte("$2a$")) ||
		bytes.HasPrefix(encoded, []byte("$2b$")) ||
		bytes.HasPrefix(encoded, []byte("$2y$"))
}

// decodeArgon2 parses $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>.
func decodeArgon2(encoded []byte) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(string(encoded), "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, ErrUnknownHashFormat
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return Argon2Params{}, nil, nil, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}

	var params Argon2Params
	for _, kv := range strings.Split(parts[3], ",") {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			return Argon2Params{}, nil, nil, ErrUnknownHashFormat
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return Argon2Params{}, nil, nil, fmt.Errorf("parse %s: %w", key, err)
		}
		switch key {
		case "m":
			params.Memory = uint32(n)
		case "t":
			params.Time = uint32(n)
		case "p":
			params.Threads = uint8(n)
		}
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("decode hash: %w", err)
	}

	params.KeyLen = uint32(len(hash))
	params.SaltLen = uint32(len(salt))
	return params, salt, hash, nil
}
