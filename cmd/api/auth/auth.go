package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ErrResponse struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e ErrResponse) Error() string {
	return e.Message
}

var ErrResponseInvalidCredentials = ErrResponse{305, "could not validate credentials"}
var ErrResponseWrongUserOrPassword = ErrResponse{306, "incorrect username or password"}

/* Auth issues and verifies the bearer tokens that protect the API.
Tokens are HS256 signed JWTs carrying the username as subject. */
type Auth struct {
	secret []byte
	expiry time.Duration
}

func NewAuth(secret string, tokenExpiry time.Duration) *Auth {
	return &Auth{secret: []byte(secret), expiry: tokenExpiry}
}

func (a *Auth) CreateAccessToken(username string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}

	return signed, nil
}

/* Parses and validates a bearer token, returning the username it was issued to. */
func (a *Auth) VerifyAccessToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing access token: %w", ErrResponseInvalidCredentials)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("reading access token claims: %w", ErrResponseInvalidCredentials)
	}

	return claims.Subject, nil
}
