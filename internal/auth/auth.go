// Package auth checks the shared admin token guarding destructive admin
// routes.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates a presented token.
type Validator interface {
	Validate(token string) error
}

// AdminToken accepts exactly one configured token. An empty Token denies
// everything.
type AdminToken struct {
	Token string
}

func (a AdminToken) Validate(token string) error {
	if a.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(a.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FromHeader extracts the token of an "Authorization: Bearer <token>" value.
func FromHeader(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CheckHeader validates the bearer token carried by an Authorization header.
func CheckHeader(v Validator, header string) error {
	token, ok := FromHeader(header)
	if !ok {
		return ErrUnauthorized
	}
	return v.Validate(token)
}
