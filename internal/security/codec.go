package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Sentinel errors returned by the codec.
var (
	ErrConfiguration = errors.New("contact security is not configured")
	ErrFormat        = errors.New("encrypted payload format is invalid")
	ErrIntegrity     = errors.New("encrypted payload failed authentication")
)

const (
	envelopePrefix = "enc:v1"
	envelopeParts  = 5
	keySize        = 32
	nonceSize      = 12
	tagSize        = 16

	// EnvKey and EnvPepper name the environment variables read by FromEnv.
	EnvKey    = "CONTACT_DATA_ENCRYPTION_KEY"
	EnvPepper = "CONTACT_DATA_HASH_PEPPER"
)

// Codec encrypts, decrypts and hashes contact fields.
type Codec struct {
	aead   cipher.AEAD
	pepper []byte
	keyErr error
	pepErr error
}

// NewCodec builds a codec from a base64-encoded 32-byte key and a pepper.
// A missing or malformed secret does not fail construction; the operations
// that need it fail with ErrConfiguration instead, so a process without a
// pepper can still decrypt and vice versa.
func NewCodec(keyB64, pepper string) *Codec {
	c := &Codec{}

	switch key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(keyB64)); {
	case strings.TrimSpace(keyB64) == "":
		c.keyErr = fmt.Errorf("%w: %s is not set", ErrConfiguration, EnvKey)
	case err != nil || len(key) != keySize:
		c.keyErr = fmt.Errorf("%w: %s must be a base64-encoded %d-byte key", ErrConfiguration, EnvKey, keySize)
	default:
		block, err := aes.NewCipher(key)
		if err != nil {
			c.keyErr = fmt.Errorf("%w: %v", ErrConfiguration, err)
			break
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			c.keyErr = fmt.Errorf("%w: %v", ErrConfiguration, err)
			break
		}
		c.aead = aead
	}

	if pepper == "" {
		c.pepErr = fmt.Errorf("%w: %s is not set", ErrConfiguration, EnvPepper)
	} else {
		c.pepper = []byte(pepper)
	}
	return c
}

// FromEnv builds a codec from CONTACT_DATA_ENCRYPTION_KEY and CONTACT_DATA_HASH_PEPPER.
func FromEnv() *Codec {
	return NewCodec(os.Getenv(EnvKey), os.Getenv(EnvPepper))
}

// Validate reports the first missing or malformed secret.
func (c *Codec) Validate() error {
	if c.keyErr != nil {
		return c.keyErr
	}
	return c.pepErr
}

// ValidateKey reports whether the encryption key is usable. The pepper is
// not consulted.
func (c *Codec) ValidateKey() error { return c.keyErr }

// IsEncrypted reports whether value carries the envelope prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, envelopePrefix+":")
}

// Encrypt seals value into an envelope. Empty input and values that are
// already enveloped are returned unchanged.
func (c *Codec) Encrypt(value string) (string, error) {
	if value == "" || IsEncrypted(value) {
		return value, nil
	}
	if c.keyErr != nil {
		return "", c.keyErr
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(value), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding
	return strings.Join([]string{
		envelopePrefix,
		enc.EncodeToString(nonce),
		enc.EncodeToString(tag),
		enc.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens an envelope. Empty input and values without the envelope
// prefix are returned unchanged so rows written before encryption was
// introduced keep reading.
func (c *Codec) Decrypt(value string) (string, error) {
	if value == "" || !IsEncrypted(value) {
		return value, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != envelopeParts {
		return "", ErrFormat
	}
	if c.keyErr != nil {
		return "", c.keyErr
	}

	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(parts[2])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrFormat
	}
	tag, err := enc.DecodeString(parts[3])
	if err != nil || len(tag) != tagSize {
		return "", ErrFormat
	}
	ciphertext, err := enc.DecodeString(parts[4])
	if err != nil {
		return "", ErrFormat
	}

	plain, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plain), nil
}

// EncryptNullable is Encrypt for optional columns. nil and empty both map to nil.
func (c *Codec) EncryptNullable(value *string) (*string, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	out, err := c.Encrypt(*value)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DecryptNullable is Decrypt for optional columns. nil and empty both map to nil.
func (c *Codec) DecryptNullable(value *string) (*string, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	out, err := c.Decrypt(*value)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LookupHash returns the hex HMAC-SHA256 of the normalized email under the pepper.
func (c *Codec) LookupHash(email string) (string, error) {
	if c.pepErr != nil {
		return "", c.pepErr
	}
	mac := hmac.New(sha256.New, c.pepper)
	mac.Write([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
