package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// ErrCiphertextTooShort is returned when sealed data cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("encryption: ciphertext too short")

// EncryptionConfig holds encryption configuration
type EncryptionConfig struct {
	// Algorithm specifies the encryption algorithm (only AES-256-GCM)
	Algorithm string
	// KeyDerivationRounds for PBKDF2 (default: 10000)
	KeyDerivationRounds int
	// Salt mixed into key derivation
	Salt []byte
}

// Sealer encrypts and authenticates values at rest.
type Sealer interface {
	// Seal returns nonce || ciphertext for plaintext
	Seal(plaintext []byte) ([]byte, error)
	// Open reverses Seal and fails if the data was tampered with
	Open(sealed []byte) ([]byte, error)
	// Algorithm names the cipher in use
	Algorithm() string
}

// DefaultEncryptionConfig returns default encryption configuration
func DefaultEncryptionConfig() *EncryptionConfig {
	return &EncryptionConfig{
		Algorithm:           "AES-256-GCM",
		KeyDerivationRounds: 10000,
		Salt:                []byte("simplestore-salt"),
	}
}

// aesGCMSealer implements Sealer with AES-256-GCM
type aesGCMSealer struct {
	config *EncryptionConfig
	aead   cipher.AEAD
}

// NewAESGCMSealer creates a Sealer. Keys that are not exactly 32 bytes are
// treated as passphrases and stretched with PBKDF2.
func NewAESGCMSealer(key []byte, config *EncryptionConfig) (Sealer, error) {
	if config == nil {
		config = DefaultEncryptionConfig()
	}
	if config.Algorithm != "" && config.Algorithm != "AES-256-GCM" {
		return nil, fmt.Errorf("unsupported encryption algorithm: %s", config.Algorithm)
	}
	if len(key) == 0 {
		return nil, errors.New("encryption key cannot be empty")
	}

	if len(key) != 32 {
		key = DeriveKey(key, config.Salt, config.KeyDerivationRounds)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &aesGCMSealer{config: config, aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce
func (s *aesGCMSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal
func (s *aesGCMSealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

func (s *aesGCMSealer) Algorithm() string {
	return "AES-256-GCM"
}

// GenerateKey generates a new 256-bit encryption key
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32) // 256 bits
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}

// DeriveKey stretches a passphrase into a 256-bit key with PBKDF2-SHA256
func DeriveKey(password, salt []byte, rounds int) []byte {
	if rounds <= 0 {
		rounds = 10000
	}
	return pbkdf2.Key(password, salt, rounds, 32, sha256.New)
}
