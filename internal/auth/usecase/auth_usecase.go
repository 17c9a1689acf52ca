package usecase

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail validation
var ErrInvalidToken = errors.New("invalid token")

// AuthUsecase issues and validates client tokens
type AuthUsecase interface {
	IssueToken(clientID string) (string, error)
	ValidateToken(tokenString string) (string, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(secret string, expiry time.Duration) AuthUsecase {
	return &authUsecase{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// IssueToken signs an HS256 token for a client
func (u *authUsecase) IssueToken(clientID string) (string, error) {
	now := u.now()
	claims := jwt.MapClaims{
		"client_id": clientID,
		"token_id":  uuid.New().String(),
		"iat":       now.Unix(),
		"exp":       now.Add(u.expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}

// ValidateToken checks signature and expiry and returns the client id
func (u *authUsecase) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(u.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	clientID, ok := claims["client_id"].(string)
	if !ok || clientID == "" {
		return "", errors.New("invalid token claims")
	}
	return clientID, nil
}
