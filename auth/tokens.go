// Package auth emite y verifica credenciales del personal: access tokens HS256,
// refresh tokens opacos, hashes bcrypt y segundo factor TOTP.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
)

// Issuer claim iss de todos los access tokens
const Issuer = "frontdesk"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims viajan en los access tokens. Los clientes los decodifican sin
// verificar para mostrar quién inició sesión.
type Claims struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService firma y verifica access tokens
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	Now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, blacklist Blacklist) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		blacklist:  blacklist,
		Now:        time.Now,
	}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken firma un token para user válido durante el TTL de acceso
func (s *TokenService) IssueAccessToken(user models.User) (string, error) {
	now := s.Now()
	claims := Claims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	return signed, errors.Wrap(err, "failed to sign access token")
}

// NewRefreshToken genera un refresh token opaco y su expiración
func (s *TokenService) NewRefreshToken() (string, time.Time) {
	return uuid.NewString(), s.Now().Add(s.refreshTTL)
}

// Verify parsea tokenString, valida firma, issuer y expiración, y rechaza
// los ids en la blacklist
func (s *TokenService) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil || !token.Valid {
		return nil, errors.Wrap(ErrInvalidToken, errorText(err))
	}

	if s.blacklist != nil && claims.ID != "" {
		revoked, err := s.blacklist.Contains(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

// Revoke agrega el token de claims a la blacklist hasta su expiración
func (s *TokenService) Revoke(ctx context.Context, claims *Claims) error {
	if s.blacklist == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Sub(s.Now()))
}

func errorText(err error) string {
	if err == nil {
		return "token not valid"
	}
	return err.Error()
}
