package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_KnownVector(t *testing.T) {
	s := New("callback-secret")
	sig, err := s.Sign(OrderPayload{OrderNumber: "ORD-1001"})
	require.NoError(t, err)

	h := hmac.New(sha256.New, []byte("callback-secret"))
	h.Write([]byte(`{"orderNumber":"ORD-1001"}`))
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), sig)
}

func TestSign_StringUsedVerbatim(t *testing.T) {
	s := New("k")
	a, err := s.Sign(`{"orderNumber":"ORD-1"}`)
	require.NoError(t, err)
	b, err := s.Sign(OrderPayload{OrderNumber: "ORD-1"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := s.Sign([]byte(`{"orderNumber":"ORD-1"}`))
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestCanonical_MapKeysSorted(t *testing.T) {
	got, err := Canonical(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(got))
}

func TestVerify_Symmetric(t *testing.T) {
	s := New("callback-secret")
	payloads := []any{
		OrderPayload{OrderNumber: "ORD-1"},
		OrderPayload{OrderNumber: ""},
		"plain string",
		map[string]int{"amount": 100},
	}

	for i, p := range payloads {
		sig, err := s.Sign(p)
		require.NoError(t, err)
		assert.True(t, s.Verify(p, sig), "payload %d", i)

		for j, other := range payloads {
			if i == j {
				continue
			}
			assert.False(t, s.Verify(other, sig), "payload %d verified with signature of %d", j, i)
		}
	}
}

func TestVerify_Rejects(t *testing.T) {
	s := New("callback-secret")
	p := OrderPayload{OrderNumber: "ORD-9"}
	sig, _ := s.Sign(p)

	assert.False(t, s.Verify(p, ""))
	assert.False(t, s.Verify(p, "zz"+sig[2:]))
	assert.False(t, s.Verify(p, sig[:len(sig)-2]))
	assert.False(t, New("other-secret").Verify(p, sig))
	assert.False(t, s.Verify(make(chan int), sig))
	assert.True(t, s.Verify(p, strings.ToUpper(sig)))
}

func TestSign_Unencodable(t *testing.T) {
	_, err := New("k").Sign(make(chan int))
	assert.Error(t, err)
}
