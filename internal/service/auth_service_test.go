package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/auth"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/config"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/docserver"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

type stubAuthenticator struct {
	member  *domain.Member
	session string
	err     error
}

func (s stubAuthenticator) Login(context.Context, string, string) (*domain.Member, string, error) {
	return s.member, s.session, s.err
}

func TestLoginStudentIssuesTokenWithSession(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{JWTSecret: "secret", AccessTokenTTLMinutes: 10}, stubAuthenticator{
		member:  &domain.Member{MemberID: "20231234", Name: "Kim", Role: domain.RoleStudent},
		session: "JSESSIONID=abc",
	})

	member, token, _, err := svc.LoginStudent(context.Background(), "20231234", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Kim", member.Name)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "JSESSIONID=abc", claims.Upstream)
	assert.Equal(t, domain.RoleStudent, claims.Role)
}

func TestLoginStudentErrors(t *testing.T) {
	tests := []struct {
		name string
		auth stubAuthenticator
		id   string
		code string
	}{
		{name: "blank id", auth: stubAuthenticator{}, id: " ", code: "VALIDATION_FAILED"},
		{name: "bad credentials", auth: stubAuthenticator{err: &docserver.APIError{StatusCode: http.StatusUnauthorized}}, id: "1", code: "UNAUTHORIZED"},
		{name: "server down", auth: stubAuthenticator{err: &docserver.APIError{StatusCode: http.StatusBadGateway}}, id: "1", code: "UPSTREAM_ERROR"},
		{name: "no session", auth: stubAuthenticator{member: &domain.Member{MemberID: "1"}}, id: "1", code: "UPSTREAM_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(config.AuthConfig{JWTSecret: "secret"}, tt.auth)
			_, _, _, err := svc.LoginStudent(context.Background(), tt.id, "pw")
			assert.Equal(t, tt.code, domainCode(t, err))
		})
	}
}

func TestLoginOperator(t *testing.T) {
	hash, err := auth.HashPassword("ops-pass", 4)
	require.NoError(t, err)
	svc := NewAuthService(config.AuthConfig{JWTSecret: "secret", OperatorPasswordHash: hash}, stubAuthenticator{})

	token, _, err := svc.LoginOperator(context.Background(), "ops-pass")
	require.NoError(t, err)
	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOperator, claims.Role)
	assert.Empty(t, claims.Upstream)

	_, _, err = svc.LoginOperator(context.Background(), "wrong")
	assert.Equal(t, "UNAUTHORIZED", domainCode(t, err))

	disabled := NewAuthService(config.AuthConfig{JWTSecret: "secret"}, stubAuthenticator{})
	_, _, err = disabled.LoginOperator(context.Background(), "ops-pass")
	assert.Equal(t, "UNAUTHORIZED", domainCode(t, err))
}
