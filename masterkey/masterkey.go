// Package masterkey protects configured secrets with envelope encryption.
//
// Secrets in configuration files are stored AES-encrypted under a master
// key derived from a passphrase supplied out of band (environment variable
// or startup flag). The scheme exists to keep plaintext credentials out of
// config files and version control; it is only as strong as the protection
// of the passphrase itself.
package masterkey

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
)

// DefaultPassphrase is used when no master secret is configured. It offers
// no protection and exists so development setups work out of the box;
// production deployments must set their own passphrase.
const DefaultPassphrase = "changeit"

var errBadPadding = errors.New("invalid padding")

// Key encrypts and decrypts secrets with AES-128-CBC. Key and IV are
// derived from the configured passphrase by MD5; MD5 is used purely as a
// 16-byte key derivation step, not for integrity.
type Key struct {
	secret [16]byte
	iv     [16]byte
}

// New derives a Key from the base64-encoded passphrase and optional
// base64-encoded IV seed. When secret64 is empty the default passphrase is
// used. When iv64 is empty the IV is derived from the secret, so a
// passphrase alone yields a complete working key.
func New(secret64, iv64 string) (*Key, error) {
	passphrase := []byte(DefaultPassphrase)
	if secret64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(secret64)
		if err != nil {
			return nil, fmt.Errorf("decode master secret: %w", err)
		}
		passphrase = decoded
	}

	k := &Key{secret: md5.Sum(passphrase)}
	if iv64 == "" {
		k.iv = md5.Sum(k.secret[:])
	} else {
		seed, err := base64.StdEncoding.DecodeString(iv64)
		if err != nil {
			return nil, fmt.Errorf("decode master iv: %w", err)
		}
		k.iv = md5.Sum(seed)
	}
	return k, nil
}

// Encrypt encrypts plaintext and returns it base64-encoded.
func (k *Key) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(k.secret[:])
	if err != nil {
		return "", err
	}
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, k.iv[:]).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. A wrong key typically surfaces as a padding
// error.
func (k *Key) Decrypt(encrypted64 string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted64)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	block, err := aes.NewCipher(k.secret[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, k.iv[:]).CryptBlocks(out, ciphertext)
	return unpad(out, aes.BlockSize)
}

// pad appends PKCS#7 padding.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad strips and validates PKCS#7 padding.
func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errBadPadding
		}
	}
	return data[:len(data)-n], nil
}
