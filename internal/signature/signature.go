// Package signature signs and verifies payment-callback payloads with
// HMAC-SHA256.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// OrderPayload is the canonical payload the payment gateway signs for a
// callback: {"orderNumber":"<merchantOrderId>"}.
type OrderPayload struct {
	OrderNumber string `json:"orderNumber"`
}

// Signer computes hex HMAC-SHA256 signatures with one secret.
type Signer struct {
	secret []byte
}

// New creates a Signer.
func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Canonical returns the bytes a payload is signed over. Strings and byte
// slices are used as-is; everything else is JSON encoded (struct field
// order, sorted map keys).
func Canonical(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("canonicalize payload: %w", err)
		}
		return b, nil
	}
}

// Sign returns the lowercase hex signature of payload.
func (s *Signer) Sign(payload any) (string, error) {
	mac, err := s.mac(payload)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac), nil
}

// Verify reports whether sig is the signature of payload. The comparison is
// constant time; malformed hex or an unencodable payload is simply false.
func (s *Signer) Verify(payload any, sig string) bool {
	got, err := hex.DecodeString(sig)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	want, err := s.mac(payload)
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
}

func (s *Signer) mac(payload any) ([]byte, error) {
	data, err := Canonical(payload)
	if err != nil {
		return nil, err
	}
	h := hmac.New(sha256.New, s.secret)
	h.Write(data)
	return h.Sum(nil), nil
}
