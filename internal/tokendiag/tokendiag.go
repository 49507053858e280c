// Package tokendiag decodes JWTs without verifying them. Its output is only
// fit for log annotations and must never feed an authorization decision.
package tokendiag

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Diagnostic struct {
	Subject   string
	TokenID   string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the decoded expiry lies before now.
func (d *Diagnostic) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && d.ExpiresAt.Before(now)
}

type diagnosticClaims struct {
	UserID  string `json:"userId"`
	TokenID string `json:"tokenId"`
	jwt.RegisteredClaims
}

func UnsafeDecode(token string) (*Diagnostic, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	claims := &diagnosticClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}

	d := &Diagnostic{
		Subject:  claims.Subject,
		TokenID:  claims.TokenID,
		Audience: claims.Audience,
	}
	if d.Subject == "" {
		d.Subject = claims.UserID
	}
	if d.TokenID == "" {
		d.TokenID = claims.ID
	}
	if claims.IssuedAt != nil {
		d.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		d.ExpiresAt = claims.ExpiresAt.Time
	}

	return d, nil
}
