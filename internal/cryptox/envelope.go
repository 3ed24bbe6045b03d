package cryptox

import (
	"database/sql/driver"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/homedock/internal/common"
)

const envelopeSeparator = ":"

// Envelope is the stored unit of an encrypted secret: the GCM nonce, the
// authentication tag and the ciphertext. Its textual form is
//
//	base64(nonce):base64(tag):base64(ciphertext)
//
// with standard padded base64 for every component.
type Envelope struct {
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// String encodes the envelope in its storage format.
func (e Envelope) String() string {
	enc := base64.StdEncoding
	return enc.EncodeToString(e.Nonce) + envelopeSeparator +
		enc.EncodeToString(e.Tag) + envelopeSeparator +
		enc.EncodeToString(e.Ciphertext)
}

// IsZero reports whether the envelope holds nothing at all.
func (e Envelope) IsZero() bool {
	return len(e.Nonce) == 0 && len(e.Tag) == 0 && len(e.Ciphertext) == 0
}

// ParseEnvelope decodes the storage format. Any structural problem (wrong
// component count, bad base64, wrong nonce or tag length) is reported as
// common.ErrTamperedOrCorrupt.
func ParseEnvelope(s string) (Envelope, error) {
	parts := strings.Split(s, envelopeSeparator)
	if len(parts) != 3 {
		return Envelope{}, common.ErrTamperedOrCorrupt
	}

	decoded := make([][]byte, len(parts))
	for i, p := range parts {
		b, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return Envelope{}, common.ErrTamperedOrCorrupt
		}
		decoded[i] = b
	}

	env := Envelope{Nonce: decoded[0], Tag: decoded[1], Ciphertext: decoded[2]}
	if len(env.Nonce) != NonceSize || len(env.Tag) != TagSize {
		return Envelope{}, common.ErrTamperedOrCorrupt
	}
	return env, nil
}

// Value implements driver.Valuer.
func (e Envelope) Value() (driver.Value, error) {
	return e.String(), nil
}

// Scan implements sql.Scanner.
func (e *Envelope) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*e = Envelope{}
		return nil
	default:
		return fmt.Errorf("cryptox: cannot scan %T into Envelope", src)
	}

	env, err := ParseEnvelope(s)
	if err != nil {
		return err
	}
	*e = env
	return nil
}
