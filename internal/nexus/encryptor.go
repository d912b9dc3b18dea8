package nexus

import "io"

// Encryptor optionally encrypts photo payloads before they reach the object
// store. Encryption uses the public key only; decryption requires a
// passphrase to unlock the private key for the session.
//
// When an encryptor is configured, the object store's content hash names the
// ciphertext — that is what is actually stored and what tampering would alter.
type Encryptor interface {
	// Setup performs one-time key generation.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext valid for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if key material exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the duration
// of a retrieval session. The unlocked key is never written to disk.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
