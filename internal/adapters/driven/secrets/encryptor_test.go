package secrets

import (
	"bytes"
	"testing"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	key := []byte("01234567890123456789012345678901")

	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	plaintext := []byte(`{"name":"Acme Provisions","vat":"FR123"}`)

	blob, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if len(blob) < 1+nonceSize {
		t.Fatalf("blob too short: %d bytes", len(blob))
	}
	if blob[0] != blobVersion {
		t.Errorf("version byte: got %d, want %d", blob[0], blobVersion)
	}
	if bytes.Contains(blob, []byte("Acme")) {
		t.Error("blob contains plaintext")
	}

	got, err := enc.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip: got %q, want %q", got, plaintext)
	}
}

func TestEncryptor_InvalidKeySize(t *testing.T) {
	if _, err := NewEncryptor([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}

func TestEncryptor_WrongKey(t *testing.T) {
	enc1, _ := NewEncryptor([]byte("01234567890123456789012345678901"))
	enc2, _ := NewEncryptor([]byte("abcdefghijklmnopqrstuvwxyz012345"))

	blob, err := enc1.Encrypt([]byte("secret payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := enc2.Decrypt(blob); err != ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestEncryptor_TruncatedBlob(t *testing.T) {
	enc, _ := NewEncryptor([]byte("01234567890123456789012345678901"))

	if _, err := enc.Decrypt([]byte{blobVersion, 0x01, 0x02}); err != ErrInvalidBlobSize {
		t.Errorf("expected ErrInvalidBlobSize, got %v", err)
	}
}

func TestEncryptor_UnsupportedVersion(t *testing.T) {
	enc, _ := NewEncryptor([]byte("01234567890123456789012345678901"))

	blob, err := enc.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blob[0] = 0x7f

	if _, err := enc.Decrypt(blob); err == nil {
		t.Error("expected error for unknown version byte")
	}
}

func TestDeriveKey(t *testing.T) {
	k1 := DeriveKey("hunter2", "ledgerline")
	k2 := DeriveKey("hunter2", "ledgerline")
	k3 := DeriveKey("hunter2", "other-salt")

	if len(k1) != keySize {
		t.Fatalf("derived key length: got %d, want %d", len(k1), keySize)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("same inputs must derive the same key")
	}
	if bytes.Equal(k1, k3) {
		t.Error("different salts must derive different keys")
	}

	if _, err := NewEncryptor(k1); err != nil {
		t.Errorf("derived key rejected: %v", err)
	}
}
