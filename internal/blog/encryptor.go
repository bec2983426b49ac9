package blog

import "io"

// Encryptor encrypts finished archive files at rest. Encryption is
// asymmetric: backups need only the public key, restores require the
// private key unlocked with a passphrase.
type Encryptor interface {
	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key with the passphrase and returns
	// a context capable of decrypting archives.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether key material is present.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked identity for the duration of a
// restore.
type DecryptionContext interface {
	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
