package dto

import "time"

// StudentLoginRequest payload for student login.
type StudentLoginRequest struct {
	MemberID string `json:"memberId"`
	Password string `json:"password"`
}

// OperatorLoginRequest payload for operator login.
type OperatorLoginRequest struct {
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MemberResponse describes the logged-in account.
type MemberResponse struct {
	MemberID       string `json:"memberId"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Department     string `json:"department,omitempty"`
	AcademicStatus string `json:"academicStatus,omitempty"`
}
