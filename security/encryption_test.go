package security

import (
	"testing"
)

func TestEncryptorRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	if !enc.IsEnabled() {
		t.Fatal("expected encryptor to be enabled")
	}

	plaintext := "alice@example.com"
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == plaintext {
		t.Error("ciphertext must differ from plaintext")
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptorNonceUniqueness(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	first, _ := enc.Encrypt("same input")
	second, _ := enc.Encrypt("same input")
	if first == second {
		t.Error("identical plaintexts must encrypt to different ciphertexts")
	}
}

func TestEncryptorRejectsTamperedCiphertext(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	ciphertext, _ := enc.Encrypt("sensitive")
	if _, err := enc.Decrypt(ciphertext + "x"); err == nil {
		t.Error("expected tampered ciphertext to fail decryption")
	}
	if _, err := enc.Decrypt("not-base64!"); err == nil {
		t.Error("expected malformed ciphertext to fail decryption")
	}
}

func TestEncryptorKeyValidation(t *testing.T) {
	if _, err := NewEncryptor([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}

	// Empty key disables encryption rather than failing
	enc, err := NewEncryptor(nil)
	if err != nil {
		t.Fatalf("NewEncryptor(nil): %v", err)
	}
	if enc.IsEnabled() {
		t.Error("expected nil key to disable encryption")
	}
}

func TestEncryptorWrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()
	enc1, _ := NewEncryptor(key1)
	enc2, _ := NewEncryptor(key2)

	ciphertext, _ := enc1.Encrypt("sensitive")
	if _, err := enc2.Decrypt(ciphertext); err == nil {
		t.Error("expected decryption under a different key to fail")
	}
}
