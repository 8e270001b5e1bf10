package models

import "github.com/golang-jwt/jwt/v5"

// Role identifies the responsibility of an actor inside the school.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleTeacher       Role = "teacher"
	RoleCounselor     Role = "counselor"
	RoleVicePrincipal Role = "vice_principal"
	RoleCommittee     Role = "committee"
)

// ValidTarget reports whether the role can be the target of a referral.
func (r Role) ValidTarget() bool {
	switch r {
	case RoleCounselor, RoleVicePrincipal, RoleCommittee:
		return true
	default:
		return false
	}
}

// Actor is the opaque identity reference used for audit attribution.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor converts authenticated claims into an audit actor.
func (c *JWTClaims) Actor() Actor {
	return Actor{ID: c.UserID, Name: c.FullName, Role: c.Role}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
