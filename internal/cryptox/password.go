package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/homedock/internal/common"
	"golang.org/x/crypto/argon2"
)

// PasswordParams are the argon2id cost parameters.
type PasswordParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultPasswordParams follow the OWASP argon2id baseline.
var DefaultPasswordParams = PasswordParams{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// PasswordHasher produces salted argon2id hashes encoded as
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// so parameters can change without invalidating existing hashes.
type PasswordHasher struct {
	params PasswordParams
}

// NewPasswordHasher returns a hasher using p. Zero fields fall back to
// DefaultPasswordParams.
func NewPasswordHasher(p PasswordParams) *PasswordHasher {
	if p.Time == 0 {
		p.Time = DefaultPasswordParams.Time
	}
	if p.Memory == 0 {
		p.Memory = DefaultPasswordParams.Memory
	}
	if p.Threads == 0 {
		p.Threads = DefaultPasswordParams.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultPasswordParams.KeyLen
	}
	if p.SaltLen == 0 {
		p.SaltLen = DefaultPasswordParams.SaltLen
	}
	return &PasswordHasher{params: p}
}

// Hash derives a new salted hash for password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", common.ErrValidation)
	}

	salt := common.GenerateRandByteArray(h.params.SaltLen)
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	defer common.WipeByteArray(key)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. Malformed hashes never match.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(expected)))
	defer common.WipeByteArray(candidate)

	return subtle.ConstantTimeCompare(candidate, expected) == 1
}
