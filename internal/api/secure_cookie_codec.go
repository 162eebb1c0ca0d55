package api

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	secureCookieVersion       = "v1"
	secureCookiePurposePrefix = "csvdash.cookie."
	secureCookieKeyInfo       = "csvdash.secure-cookie.v1"
)

var errInvalidSecureCookieValue = errors.New("invalid secure cookie value")

type secureCookieCodec struct {
	aead cipher.AEAD
}

func newSecureCookieCodec(secretKey []byte) (*secureCookieCodec, error) {
	if len(secretKey) == 0 {
		return nil, errors.New("secure cookie secret key is required")
	}

	derivedKey, err := deriveSecureCookieKey(secretKey)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("init secure cookie cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init secure cookie aead: %w", err)
	}
	return &secureCookieCodec{aead: aead}, nil
}

// deriveSecureCookieKey keeps the cookie encryption key independent from the
// key that signs session tokens.
func deriveSecureCookieKey(secretKey []byte) ([]byte, error) {
	key := make([]byte, 32)
	reader := hkdf.New(sha256.New, secretKey, nil, []byte(secureCookieKeyInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive secure cookie key: %w", err)
	}
	return key, nil
}

func (codec *secureCookieCodec) seal(purpose string, plaintext []byte) (string, error) {
	aad, err := codec.additionalData(purpose)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, codec.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate secure cookie nonce: %w", err)
	}

	sealed := codec.aead.Seal(nonce, nonce, plaintext, aad)
	return secureCookieVersion + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (codec *secureCookieCodec) open(purpose string, rawValue string) ([]byte, error) {
	aad, err := codec.additionalData(purpose)
	if err != nil {
		return nil, err
	}

	version, encodedPayload, found := strings.Cut(strings.TrimSpace(rawValue), ".")
	if !found || version != secureCookieVersion || encodedPayload == "" {
		return nil, errInvalidSecureCookieValue
	}

	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, errInvalidSecureCookieValue
	}

	nonceSize := codec.aead.NonceSize()
	if len(payload) <= nonceSize {
		return nil, errInvalidSecureCookieValue
	}

	plaintext, err := codec.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], aad)
	if err != nil {
		return nil, errInvalidSecureCookieValue
	}
	return plaintext, nil
}

func (codec *secureCookieCodec) additionalData(purpose string) ([]byte, error) {
	trimmedPurpose := strings.TrimSpace(purpose)
	if trimmedPurpose == "" {
		return nil, errors.New("secure cookie purpose is required")
	}
	if codec == nil || codec.aead == nil {
		return nil, errors.New("secure cookie codec is not initialized")
	}
	return []byte(secureCookiePurposePrefix + trimmedPurpose), nil
}
