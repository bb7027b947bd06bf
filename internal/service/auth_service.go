package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/auth"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/config"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/docserver"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	apperrors "github.com/lhs544/University-administrative-AI-document-review-automation/pkg/util/errorutil"
)

const operatorSubject = "operator"

// StudentAuthenticator logs a student into the document server.
type StudentAuthenticator interface {
	Login(ctx context.Context, memberID, password string) (*domain.Member, string, error)
}

// AuthService issues gateway tokens. Students authenticate against the
// document server; operators use a locally configured bcrypt hash.
type AuthService struct {
	upstream     StudentAuthenticator
	tokenMgr     *auth.TokenManager
	operatorHash string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, upstream StudentAuthenticator) *AuthService {
	return &AuthService{
		upstream:     upstream,
		tokenMgr:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		operatorHash: strings.TrimSpace(cfg.OperatorPasswordHash),
	}
}

// LoginStudent authenticates a student and returns a token carrying the
// document server session.
func (s *AuthService) LoginStudent(ctx context.Context, memberID, password string) (*domain.Member, string, time.Time, error) {
	if strings.TrimSpace(memberID) == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("member id and password are required", nil)
	}

	member, session, err := s.upstream.Login(ctx, memberID, password)
	if err != nil {
		if docserver.IsStatus(err, http.StatusUnauthorized) || docserver.IsStatus(err, http.StatusBadRequest) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.NewUpstreamError("document server login failed", err)
	}
	if session == "" {
		return nil, "", time.Time{}, apperrors.NewUpstreamError("document server returned no session", nil)
	}

	token, exp, err := s.tokenMgr.GenerateToken(auth.TokenSubject{
		ID:       member.MemberID,
		Role:     member.Role,
		Name:     member.Name,
		Upstream: session,
	})
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return member, token, exp, nil
}

// LoginOperator authenticates the operations account.
func (s *AuthService) LoginOperator(_ context.Context, password string) (string, time.Time, error) {
	if s.operatorHash == "" {
		return "", time.Time{}, apperrors.NewUnauthorized("operator login disabled")
	}
	if err := auth.ComparePassword(s.operatorHash, password); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.tokenMgr.GenerateToken(auth.TokenSubject{ID: operatorSubject, Role: domain.RoleOperator, Name: operatorSubject})
}

// Logout currently no-ops for stateless JWT approach.
func (s *AuthService) Logout(_ context.Context, _ string) error {
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
