package crypto

import (
	"bytes"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !VerifyPassword("hunter22", hash) {
		t.Error("correct password must verify")
	}
	if VerifyPassword("wrong", hash) {
		t.Error("wrong password must not verify")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateRandomBytes(32)
	if err != nil {
		t.Fatalf("key: %v", err)
	}

	plaintext := []byte("router-api-password")

	ciphertext, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatal("ciphertext must differ from plaintext")
	}

	decrypted, err := Decrypt(key, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("roundtrip mismatch: %q", decrypted)
	}

	otherKey, _ := GenerateRandomBytes(32)
	if _, err := Decrypt(otherKey, ciphertext); err == nil {
		t.Error("decrypting with the wrong key must fail")
	}
}

func TestEncryptString(t *testing.T) {
	key, _ := GenerateRandomBytes(32)

	ciphertext, err := EncryptString(key, "secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := DecryptString(key, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != "secret" {
		t.Errorf("roundtrip mismatch: %q", got)
	}
}
