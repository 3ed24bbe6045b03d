package cryptox

import (
	"strings"
	"testing"
)

// fastParams keep argon2 cheap in tests.
var fastParams = PasswordParams{Time: 1, Memory: 1024, Threads: 1}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher(fastParams)

	encoded, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	if !h.Verify("password123", encoded) {
		t.Fatal("expected password to verify")
	}
	if h.Verify("password124", encoded) {
		t.Fatal("wrong password verified")
	}
}

func TestPasswordHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewPasswordHasher(fastParams)

	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatal("two hashes of the same password must differ by salt")
	}
}

func TestPasswordHasher_VerifyUsesEncodedParams(t *testing.T) {
	encoded, err := NewPasswordHasher(fastParams).Hash("pw-one")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	other := NewPasswordHasher(PasswordParams{Time: 2, Memory: 2048, Threads: 2})
	if !other.Verify("pw-one", encoded) {
		t.Fatal("hash produced with other params must still verify")
	}
}

func TestPasswordHasher_Malformed(t *testing.T) {
	h := NewPasswordHasher(fastParams)

	for _, encoded := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$***$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		if h.Verify("anything", encoded) {
			t.Fatalf("malformed hash %q verified", encoded)
		}
	}

	if _, err := h.Hash(""); err == nil {
		t.Fatal("expected error hashing empty password")
	}
}
