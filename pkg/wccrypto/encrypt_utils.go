package wccrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fungily.io/fungily-score/pkg/errors"
)

// KeySize is the symmetric key length of a v1 session, in bytes.
const KeySize = 256 / 8

// IVSize is the AES-CBC initialisation vector length, in bytes.
const IVSize = aes.BlockSize

var (
	ErrInvalidPadding = errors.New("invalid pkcs7 padding")
	ErrHmacMismatch   = errors.New("inconsistent session message hmac")
)

func Aes256Encrypt(content, encryptionKey, iv []byte) ([]byte, error) {
	plaintext := pkcs7Padding(content, aes.BlockSize)
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	if len(iv) != block.BlockSize() {
		return nil, errors.Errorf("iv length %d, want %d", len(iv), block.BlockSize())
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)
	return ciphertext, nil
}

func Aes256Decrypt(cipherText, encryptionKey, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	if len(iv) != block.BlockSize() {
		return nil, errors.Errorf("iv length %d, want %d", len(iv), block.BlockSize())
	}
	if len(cipherText) == 0 || len(cipherText)%block.BlockSize() != 0 {
		return nil, errors.Errorf("cipher text length %d is not a multiple of the block size", len(cipherText))
	}
	plaintext := make([]byte, len(cipherText))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, cipherText)
	return pkcs7Unpadding(plaintext, block.BlockSize())
}

func pkcs7Padding(content []byte, blockSize int) []byte {
	padding := blockSize - len(content)%blockSize
	padText := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(append([]byte{}, content...), padText...)
}

func pkcs7Unpadding(content []byte, blockSize int) ([]byte, error) {
	n := len(content)
	if n == 0 {
		return nil, ErrInvalidPadding
	}
	padding := int(content[n-1])
	if padding == 0 || padding > blockSize || padding > n {
		return nil, ErrInvalidPadding
	}
	for _, b := range content[n-padding:] {
		if int(b) != padding {
			return nil, ErrInvalidPadding
		}
	}
	return content[:n-padding], nil
}

func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Wrap(err, "read random bytes")
	}
	return b, nil
}

func HmacSha256(data, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(data)
	return h.Sum(nil)
}

// VerifyHmacSha256 compares in constant time.
func VerifyHmacSha256(data, secret, mac []byte) bool {
	return hmac.Equal(HmacSha256(data, secret), mac)
}
