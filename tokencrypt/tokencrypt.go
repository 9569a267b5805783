// Package tokencrypt provides authenticated symmetric encryption for
// persisted OAuth token bundles. The key is derived once from the configured
// session secret; the secret itself is never used as a cipher key.
package tokencrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

// ErrCiphertextInvalid is returned when a ciphertext is truncated, tampered
// with, or was encrypted under a different key. Callers must treat the
// payload as absent, never as recoverable data.
var ErrCiphertextInvalid = errors.New("ciphertext invalid")

// scrypt parameters, fixed so existing ciphertexts stay decryptable.
const (
	scryptN     = 32768
	scryptR     = 8
	scryptP     = 1
	keyLen      = 32
	derivedSalt = "authgate.tokencrypt.v1"
)

// Cipher performs AES-256-GCM encrypt/decrypt with a key derived from a
// secret via scrypt. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New derives the cipher key from secret and returns a ready Cipher.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, pkgerrors.New("[tokencrypt.New] secret is required")
	}

	key, err := scrypt.Key([]byte(secret), []byte(derivedSalt), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[tokencrypt.New] scrypt.Key")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[tokencrypt.New] aes.NewCipher")
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[tokencrypt.New] cipher.NewGCM")
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce. The nonce is prepended
// to the returned ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, pkgerrors.Wrap(err, "[Cipher.Encrypt] rand.Read")
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any integrity failure
// returns ErrCiphertextInvalid.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, ErrCiphertextInvalid
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrCiphertextInvalid
	}
	return plaintext, nil
}
