package httpgin

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPrincipalFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   domain.Principal
	}{
		{"plain role", jwt.MapClaims{"sub": "u1", "role": "ADMIN"}, domain.Principal{UserID: "u1", Role: domain.RoleAdmin}},
		{"prefixed role", jwt.MapClaims{"sub": "u1", "role": "ROLE_ADMIN"}, domain.Principal{UserID: "u1", Role: domain.RoleAdmin}},
		{"lower case prefixed role", jwt.MapClaims{"sub": "u1", "role": "role_admin"}, domain.Principal{UserID: "u1", Role: domain.RoleAdmin}},
		{"mixed case owner", jwt.MapClaims{"sub": "o1", "role": "Role_Theater_Owner"}, domain.Principal{UserID: "o1", Role: domain.RoleTheaterOwner}},
		{"missing role", jwt.MapClaims{"sub": "u1"}, domain.Principal{UserID: "u1", Role: domain.RoleUser}},
		{"user_id fallback", jwt.MapClaims{"user_id": "u2", "role": "user"}, domain.Principal{UserID: "u2", Role: domain.RoleUser}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, principalFromClaims(tt.claims))
		})
	}
}
