package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the claim set of a locally verifiable identity token.
// The subject carries the user id.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Username     string `json:"username"`
	Email        string `json:"email"`
	FullName     string `json:"full_name,omitempty"`
	IsAdmin      bool   `json:"is_admin"`
	UserType     string `json:"user_type"`
	DepartmentID *int64 `json:"department_id,omitempty"`
}

// GenerateIdentityToken signs an HS256 identity token for id.
func GenerateIdentityToken(id *models.Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Username:     id.Username,
		Email:        id.Email,
		FullName:     id.FullName,
		IsAdmin:      id.IsAdmin,
		UserType:     id.UserType,
		DepartmentID: id.DepartmentID,
	})

	return token.SignedString(secretKey)
}

// ParseIdentityToken verifies tokenString with secretKey and returns the
// asserted identity.
func ParseIdentityToken(tokenString string, secretKey []byte) (*models.Identity, error) {
	claims := &IdentityClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.Errorf(common.ErrorUnauthorized, "token expired")
		}
		return nil, common.Errorf(common.ErrorUnauthorized, "invalid token: %v", err)
	}
	if !token.Valid {
		return nil, common.Errorf(common.ErrorUnauthorized, "invalid token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, common.Errorf(common.ErrorUnauthorized, "invalid subject %q", claims.Subject)
	}
	if claims.Username == "" {
		return nil, common.Errorf(common.ErrorUnauthorized, "token has no username")
	}

	return &models.Identity{
		UserID:       userID,
		Username:     claims.Username,
		Email:        claims.Email,
		FullName:     claims.FullName,
		IsAdmin:      claims.IsAdmin,
		UserType:     claims.UserType,
		DepartmentID: claims.DepartmentID,
	}, nil
}

// JWTProvider verifies identity tokens locally with a shared secret.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

func (p *JWTProvider) Validate(_ context.Context, token string) (*models.Identity, error) {
	return ParseIdentityToken(token, p.secret)
}
