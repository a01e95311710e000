// Package cipher implements the AES-256-CBC envelope shared with storefront
// clients. Ciphertexts are base64 (standard alphabet) of PKCS#7-padded CBC
// output with a fixed IV, so equal plaintexts encrypt to equal ciphertexts.
// The signed-payload check relies on that determinism.
package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	KeySize = 32
	IVSize  = aes.BlockSize
)

var (
	ErrKeyLength  = fmt.Errorf("cipher: key must be at least %d bytes", KeySize)
	ErrIVLength   = fmt.Errorf("cipher: iv must be at least %d bytes", IVSize)
	ErrCiphertext = errors.New("cipher: malformed ciphertext")
	ErrPadding    = errors.New("cipher: invalid padding")
)

// Cipher holds the deployment's default key and IV.
type Cipher struct {
	block gocipher.Block
	iv    []byte
}

// New builds a Cipher from key and iv material. Only the first 32 bytes of
// key and the first 16 bytes of iv are used; clients derive them the same way.
func New(key, iv string) (*Cipher, error) {
	block, ivBytes, err := prepare(key, iv)
	if err != nil {
		return nil, err
	}
	return &Cipher{block: block, iv: ivBytes}, nil
}

// Encrypt encrypts plain with the default key and IV.
func (c *Cipher) Encrypt(plain string) (string, error) {
	return encrypt(c.block, c.iv, plain), nil
}

// Decrypt reverses Encrypt. It never returns empty output on failure.
func (c *Cipher) Decrypt(cipherText string) (string, error) {
	return decrypt(c.block, c.iv, cipherText)
}

// EncryptWith encrypts plain with an explicit key and IV, as used for
// exchanges with an independently keyed deployment.
func EncryptWith(plain, key, iv string) (string, error) {
	block, ivBytes, err := prepare(key, iv)
	if err != nil {
		return "", err
	}
	return encrypt(block, ivBytes, plain), nil
}

// DecryptWith decrypts cipherText with an explicit key and IV.
func DecryptWith(cipherText, key, iv string) (string, error) {
	block, ivBytes, err := prepare(key, iv)
	if err != nil {
		return "", err
	}
	return decrypt(block, ivBytes, cipherText)
}

func prepare(key, iv string) (gocipher.Block, []byte, error) {
	if len(key) < KeySize {
		return nil, nil, ErrKeyLength
	}
	if len(iv) < IVSize {
		return nil, nil, ErrIVLength
	}
	block, err := aes.NewCipher([]byte(key[:KeySize]))
	if err != nil {
		return nil, nil, fmt.Errorf("cipher: %w", err)
	}
	return block, []byte(iv[:IVSize]), nil
}

func encrypt(block gocipher.Block, iv []byte, plain string) string {
	padded := pad([]byte(plain), block.BlockSize())
	out := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

func decrypt(block gocipher.Block, iv []byte, cipherText string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	if len(raw) == 0 || len(raw)%block.BlockSize() != 0 {
		return "", fmt.Errorf("%w: length %d is not a multiple of the block size", ErrCiphertext, len(raw))
	}

	out := make([]byte, len(raw))
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(out, raw)

	plain, err := unpad(out, block.BlockSize())
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrPadding
		}
	}
	return b[:len(b)-n], nil
}
