// Package auth resolves the bearer credential presented at connect time to
// a stable identity.
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/synclab/synchub/internal/domain"
)

var (
	// ErrMissingCredential is returned for an absent token outside
	// permissive mode.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidToken covers malformed tokens, bad signatures and wrong
	// signing methods. A present-but-invalid credential is always
	// rejected, permissive mode or not.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token's expiry has passed.
	ErrExpiredToken = errors.New("token has expired")
)

type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret     []byte
	issuer     string
	permissive bool
}

func New(secret, issuer string, permissive bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, permissive: permissive}
}

func (a *Authenticator) Permissive() bool { return a.permissive }

// Authenticate validates the credential and resolves it to an identity.
// An empty credential yields a provisional identity in permissive mode and
// ErrMissingCredential otherwise.
func (a *Authenticator) Authenticate(credential string) (domain.Identity, error) {
	if credential == "" {
		if a.permissive {
			return domain.NewProvisionalIdentity(), nil
		}
		return domain.Identity{}, ErrMissingCredential
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(credential, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpiredToken
		}
		return domain.Identity{}, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	if len(name) > domain.MaxDisplayNameLen {
		name = name[:domain.MaxDisplayNameLen]
	}
	return domain.Identity{ID: domain.UserID(claims.Subject), Name: name}, nil
}
