package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		name string
		role Role
		want bool
	}{
		{"admin", RoleAdmin, true},
		{"manager", RoleManager, true},
		{"salesperson", RoleSalesperson, true},
		{"empty", Role(""), false},
		{"unknown", Role("superuser"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Valid())
		})
	}
}

func TestRole_Permits_AdminBypass(t *testing.T) {
	// Admin passes every check regardless of the requested role set.
	assert.True(t, RoleAdmin.Permits())
	assert.True(t, RoleAdmin.Permits(RoleManager))
	assert.True(t, RoleAdmin.Permits(RoleSalesperson))
	assert.True(t, RoleAdmin.Permits(RoleManager, RoleSalesperson))
}

func TestRole_Permits_Membership(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		allowed []Role
		want    bool
	}{
		{"manager in set", RoleManager, []Role{RoleManager, RoleSalesperson}, true},
		{"manager not in set", RoleManager, []Role{RoleSalesperson}, false},
		{"manager empty set", RoleManager, nil, false},
		{"salesperson in set", RoleSalesperson, []Role{RoleSalesperson}, true},
		{"salesperson not in set", RoleSalesperson, []Role{RoleManager}, false},
		{"salesperson vs admin-only", RoleSalesperson, []Role{RoleAdmin}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Permits(tt.allowed...))
		})
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := Session{ID: "s1", ExpiresAt: now.Add(time.Hour)}
	assert.False(t, fresh.Expired(now))

	stale := Session{ID: "s2", ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, stale.Expired(now))

	// Zero expiry means no absolute bound.
	unbounded := Session{ID: "s3"}
	assert.False(t, unbounded.Expired(now))
}
