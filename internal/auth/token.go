// Package auth supplies the bearer token attached to backend requests. Token
// issuance and storage belong to the login flow; this package only reads.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no auth token configured")
	ErrTokenExpired = errors.New("auth token expired")
)

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// FileToken re-reads the file on every call so a separate login step can
// rotate the token without restarting the client.
type FileToken struct {
	Path string
}

func (f FileToken) Token(context.Context) (string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s missing", ErrNoToken, f.Path)
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	tok := strings.TrimSpace(string(b))
	if tok == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoToken, f.Path)
	}
	return tok, nil
}

// NewTokenSource prefers an explicit token over a token file.
func NewTokenSource(token, tokenFile string) TokenSource {
	if token == "" && tokenFile != "" {
		return FileToken{Path: tokenFile}
	}
	return StaticToken(token)
}

// CheckExpiry reports ErrTokenExpired when token is a JWT whose exp claim is
// before now. The signature is not verified; the backend does that. Tokens
// that are not JWTs, or carry no exp, pass.
func CheckExpiry(token string, now time.Time) error {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	}
	return nil
}
