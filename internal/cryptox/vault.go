// Package cryptox holds the cryptographic primitives of the server: the
// credential vault (AES-256-GCM envelopes keyed by the process master key),
// one-way digests for lookup values and argon2id password hashing.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/homedock/internal/common"
)

const (
	// KeySize is the master key length (AES-256).
	KeySize = 32
	// NonceSize is the GCM nonce length (96 bits).
	NonceSize = 12
	// TagSize is the GCM authentication tag length (128 bits).
	TagSize = 16
)

// Vault encrypts and decrypts secrets with a single master key. It holds no
// mutable state and is safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewVault builds a vault around key, which must be exactly KeySize bytes.
func NewVault(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes, got %d", common.ErrConfiguration, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}

	return &Vault{aead: aead, rand: rand.Reader}, nil
}

// ParseMasterKey decodes a base64 master key and checks its length.
func ParseMasterKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: master key is not set", common.ErrConfiguration)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: master key is not valid base64", common.ErrConfiguration)
	}
	if len(key) != KeySize {
		common.WipeByteArray(key)
		return nil, fmt.Errorf("%w: master key must decode to %d bytes, got %d", common.ErrConfiguration, KeySize, len(key))
	}
	return key, nil
}

// GenerateMasterKey returns a fresh random key in its base64 form.
func GenerateMasterKey() string {
	key := common.GenerateRandByteArray(KeySize)
	defer common.WipeByteArray(key)
	return base64.StdEncoding.EncodeToString(key)
}

// Encrypt seals plaintext under a freshly generated nonce.
func (v *Vault) Encrypt(plaintext []byte) (Envelope, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return Envelope{}, fmt.Errorf("generate nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext.
	sealed := v.aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize

	return Envelope{
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Decrypt opens env. Malformed envelopes and failed authentication both
// return common.ErrTamperedOrCorrupt and no plaintext.
func (v *Vault) Decrypt(env Envelope) ([]byte, error) {
	if len(env.Nonce) != NonceSize || len(env.Tag) != TagSize {
		return nil, common.ErrTamperedOrCorrupt
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := v.aead.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		return nil, common.ErrTamperedOrCorrupt
	}
	return plaintext, nil
}

// DecryptString parses an envelope in storage format and decrypts it.
func (v *Vault) DecryptString(s string) ([]byte, error) {
	env, err := ParseEnvelope(s)
	if err != nil {
		return nil, err
	}
	return v.Decrypt(env)
}

// EncryptJSON serializes value to JSON and encrypts the result.
func (v *Vault) EncryptJSON(value any) (Envelope, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode secret: %w", err)
	}
	defer common.WipeByteArray(plaintext)

	return v.Encrypt(plaintext)
}

// DecryptJSON decrypts env and unmarshals the JSON plaintext into out.
func (v *Vault) DecryptJSON(env Envelope, out any) error {
	plaintext, err := v.Decrypt(env)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("decode secret: %w", err)
	}
	return nil
}

// Hash returns the hex SHA-256 digest of value. It is used for values that
// only ever need to be compared, such as refresh tokens at rest.
func (v *Vault) Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// VerifyHash compares value against a digest produced by Hash in constant time.
func (v *Vault) VerifyHash(value, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(v.Hash(value)), []byte(digest)) == 1
}
