package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// Signer signs payloads for V4 signed URLs.
type Signer interface {
	// Email is the service account used as GoogleAccessID.
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// ServiceAccountSigner signs locally with a service account's private key, so exports need no
// IAM signBlob round trip.
type ServiceAccountSigner struct {
	email string
	key   *rsa.PrivateKey
}

// NewServiceAccountSigner reads client_email and private_key from a service account JSON key,
// the same document the Firebase credentials setting holds.
func NewServiceAccountSigner(credentials []byte) (*ServiceAccountSigner, error) {
	var doc struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if len(credentials) == 0 {
		return nil, errors.New("storage: service account json is empty")
	}
	if err := json.Unmarshal(credentials, &doc); err != nil {
		return nil, fmt.Errorf("storage: decode service account json: %w", err)
	}
	signer := &ServiceAccountSigner{email: strings.TrimSpace(doc.ClientEmail)}
	if signer.email == "" {
		return nil, errors.New("storage: client_email missing in service account json")
	}
	key, err := decodeRSAKey([]byte(strings.TrimSpace(doc.PrivateKey)))
	if err != nil {
		return nil, err
	}
	signer.key = key
	return signer, nil
}

func (s *ServiceAccountSigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes returns the RSASSA-PKCS1-v1_5 SHA-256 signature of payload.
func (s *ServiceAccountSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("storage: signer not initialised")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hashed := sha256.Sum256(payload)
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return signature, nil
}

// decodeRSAKey accepts PKCS#8 keys as issued by IAM, and PKCS#1 for older keys.
func decodeRSAKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("storage: private_key is not PEM encoded")
	}
	parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if pkcs8Err != nil {
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("storage: parse private key: %w", errors.Join(pkcs8Err, err))
		}
		return key, nil
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("storage: private key is %T, want RSA", parsed)
	}
	return key, nil
}
