package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range ValidRoles() {
		got, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := ParseRole("seller")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestUser_Identity(t *testing.T) {
	u := &User{ID: 42, Phone: "+923001234567", Email: "a@b.test", Role: RoleRider, PasswordHash: "x"}
	id := u.Identity()
	assert.Equal(t, Identity{ID: 42, Phone: "+923001234567", Email: "a@b.test", Role: RoleRider}, id)
	assert.Equal(t, "42", id.Subject())
}

func TestSessionRecord_FlatJSON(t *testing.T) {
	rec := SessionRecord{
		Identity:    Identity{ID: 7, Phone: "+1555", Role: RoleCustomer},
		AccessToken: "tok",
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, float64(7), m["id"])
	assert.Equal(t, "customer", m["role"])
	assert.Equal(t, "tok", m["accessToken"])
	assert.NotContains(t, m, "email")
}
