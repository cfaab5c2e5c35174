// Package feedcrypt recovers the plaintext JSON of the train feed.
//
// The feed response is base64 ciphertext with a fixed length tail. The
// tail decrypts, under a well known public key, to "<key>|<junk>".
// The remainder decrypts under <key> to the JSON payload followed by
// padding. Both stages use AES-128-CBC with a PBKDF2 derived key and
// a fixed IV.
package feedcrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Length of the encrypted key segment at the end of every
	// response.
	MasterSegment = 88

	// Published by the feed's own web client.
	PublicKey = "69af143c-e8cf-47f8-bf09-fc1f61e5cc33"

	saltHex       = "9a3686ac"
	ivHex         = "c6eb2f7f5c4740c1a2f708fefd947d39"
	kdfIterations = 1000
	kdfKeyLen     = 16
)

var (
	ErrFeedUnavailable  = errors.New("feed unavailable")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrTrimFailed       = errors.New("payload blank after trimming")
)

var (
	salt = mustHex(saltHex)
	iv   = mustHex(ivHex)
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func deriveKey(key string) []byte {
	return pbkdf2.Key([]byte(key), salt, kdfIterations, kdfKeyLen, sha1.New)
}

// Decrypts base64 ciphertext using the textual key. The result still
// carries any trailing padding.
func Decrypt(data string, key string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %w", ErrDecryptionFailed, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d not a multiple of block size", ErrDecryptionFailed, len(ciphertext))
	}

	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not utf-8", ErrDecryptionFailed)
	}

	return string(plaintext), nil
}

// Inverse of Decrypt. Pads with PKCS#7, which Trim removes on the way
// back.
func Encrypt(plaintext string, key string) (string, error) {
	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return "", err
	}

	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append([]byte(plaintext), bytes.Repeat([]byte{byte(pad)}, pad)...)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Strips trailing whitespace and control characters (anything at or
// below 0x20).
func Trim(s string) (string, error) {
	end := len(s)
	for end > 0 && s[end-1] <= 32 {
		end--
	}
	if end == 0 {
		return "", ErrTrimFailed
	}
	return s[:end], nil
}

// Splits a raw response into its two segments and decrypts both,
// returning the trimmed plaintext.
func DecryptResponse(body string, publicKey string) (string, error) {
	body = strings.TrimSpace(body)
	if len(body) <= MasterSegment {
		return "", fmt.Errorf("%w: response too short (%d bytes)", ErrDecryptionFailed, len(body))
	}

	content := body[:len(body)-MasterSegment]
	encryptedKey := body[len(body)-MasterSegment:]

	keyPlain, err := Decrypt(encryptedKey, publicKey)
	if err != nil {
		return "", fmt.Errorf("decrypting key: %w", err)
	}
	privateKey := strings.SplitN(keyPlain, "|", 2)[0]
	if privateKey == "" {
		return "", fmt.Errorf("%w: empty private key", ErrDecryptionFailed)
	}

	plaintext, err := Decrypt(content, privateKey)
	if err != nil {
		return "", fmt.Errorf("decrypting content: %w", err)
	}

	return Trim(plaintext)
}

// Builds a response as served by the feed: the content encrypted
// under privateKey, followed by privateKey (plus suffix) encrypted
// under publicKey. The key segment must come out at exactly
// MasterSegment characters.
func EncryptResponse(plaintext string, privateKey string, keySuffix string, publicKey string) (string, error) {
	content, err := Encrypt(plaintext, privateKey)
	if err != nil {
		return "", fmt.Errorf("encrypting content: %w", err)
	}

	encryptedKey, err := Encrypt(privateKey+"|"+keySuffix, publicKey)
	if err != nil {
		return "", fmt.Errorf("encrypting key: %w", err)
	}
	if len(encryptedKey) != MasterSegment {
		return "", fmt.Errorf("key segment is %d characters, want %d", len(encryptedKey), MasterSegment)
	}

	return content + encryptedKey, nil
}
