package devapi

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/pkg/apierror"
)

var (
	errBadCredentials = apierror.New("INVALID_CREDENTIALS", "No active account found with the given credentials", "", http.StatusUnauthorized)
	errTokenNotValid  = apierror.New("token_not_valid", "Token is invalid or expired", "", http.StatusUnauthorized)
)

// AuthService issues and checks the backend's HS256 tokens. Access tokens
// carry the epoch they were minted in, so RevokeAccessTokens can expire all
// of them at once while refresh tokens stay usable.
type AuthService struct {
	data       *data
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	epoch      atomic.Int64

	mu            sync.Mutex
	refreshTokens map[string]int64
}

func newAuthService(d *data, jwtSecret string, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		data:          d,
		jwtSecret:     []byte(jwtSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		refreshTokens: map[string]int64{},
	}
}

// Login checks the password only. Whether the account may actually use the
// portal is decided by the client from the returned user flags.
func (s *AuthService) Login(email, password string) (model.LoginResponse, error) {
	a, ok := s.data.accountByEmail(email)
	if !ok {
		return model.LoginResponse{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return model.LoginResponse{}, errBadCredentials
	}

	acct, _ := s.data.account(a.ID)
	access, err := s.issue(acct.User, "access")
	if err != nil {
		return model.LoginResponse{}, err
	}
	refresh, err := s.issue(acct.User, "refresh")
	if err != nil {
		return model.LoginResponse{}, err
	}

	s.mu.Lock()
	s.refreshTokens[refresh] = acct.ID
	s.mu.Unlock()

	user := acct.User
	resp := model.LoginResponse{AccessToken: access, RefreshToken: refresh, User: &user}
	if t := s.data.tutorFor(acct); t != nil {
		tutor := *t
		resp.TutorProfile = t
		resp.Tutor = &tutor
	}
	return resp, nil
}

// Refresh mints a new access token. Refresh tokens are not rotated.
func (s *AuthService) Refresh(refreshToken string) (model.RefreshResponse, error) {
	claims, err := s.ValidateToken(refreshToken, "refresh")
	if err != nil {
		return model.RefreshResponse{}, err
	}

	s.mu.Lock()
	owner, ok := s.refreshTokens[refreshToken]
	s.mu.Unlock()
	if !ok || owner != claims.UserID {
		return model.RefreshResponse{}, errTokenNotValid
	}

	acct, ok := s.data.account(claims.UserID)
	if !ok {
		return model.RefreshResponse{}, errTokenNotValid
	}

	access, err := s.issue(acct.User, "access")
	if err != nil {
		return model.RefreshResponse{}, err
	}
	return model.RefreshResponse{AccessToken: access}, nil
}

func (s *AuthService) Logout(refreshToken string) {
	s.mu.Lock()
	delete(s.refreshTokens, refreshToken)
	s.mu.Unlock()
}

// RevokeAccessTokens invalidates every access token issued so far.
func (s *AuthService) RevokeAccessTokens() {
	s.epoch.Add(1)
}

// RevokeRefreshTokens forgets every refresh token, forcing new logins.
func (s *AuthService) RevokeRefreshTokens() {
	s.mu.Lock()
	s.refreshTokens = map[string]int64{}
	s.mu.Unlock()
}

func (s *AuthService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errTokenNotValid
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errTokenNotValid
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, errTokenNotValid
	}
	if typ == "access" {
		epoch, _ := claimsMap["epoch"].(float64)
		if int64(epoch) != s.epoch.Load() {
			return nil, errTokenNotValid
		}
	}

	claims := &model.AuthClaims{Type: typ}
	sub, _ := claimsMap["sub"].(string)
	claims.UserID, _ = strconv.ParseInt(sub, 10, 64)
	claims.Email, _ = claimsMap["email"].(string)
	claims.UserType, _ = claimsMap["user_type"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == 0 {
		return nil, errTokenNotValid
	}
	return claims, nil
}

func (s *AuthService) issue(user model.User, typ string) (string, error) {
	now := time.Now().UTC()
	ttl := s.accessTTL
	if typ == "refresh" {
		ttl = s.refreshTTL
	}

	claims := jwt.MapClaims{
		"sub":       strconv.FormatInt(user.ID, 10),
		"email":     user.Email,
		"user_type": user.UserType,
		"typ":       typ,
		"jti":       uuid.NewString(),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	if typ == "access" {
		claims["epoch"] = s.epoch.Load()
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
