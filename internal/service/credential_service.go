package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	// bcrypt ignores everything past 72 bytes; longer inputs are cut there.
	bcryptMaxBytes = 72

	passwordSymbols  = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"
	randomCharset    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
	defaultRandomLen = 12
	defaultTokenLen  = 32
	defaultCodeLen   = 6
)

var weakPatterns = []string{"123456", "password", "qwerty", "admin", "letmein"}

type StrengthResult struct {
	IsValid    bool     `json:"isValid"`
	Violations []string `json:"violations"`
}

type CredentialService struct {
	cost int
}

func NewCredentialService(cost int) (*CredentialService, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &CredentialService{cost: cost}, nil
}

func (s *CredentialService) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports false without error on a plain mismatch. A malformed hash is
// returned as an error.
func (s *CredentialService) Verify(password string, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), truncateForBcrypt(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("verify password: %w", err)
}

func (s *CredentialService) ValidateStrength(password string) StrengthResult {
	violations := make([]string, 0)

	length := utf8.RuneCountInString(password)
	if length < minPasswordLength {
		violations = append(violations, fmt.Sprintf("Password must be at least %d characters long", minPasswordLength))
	}
	if length > maxPasswordLength {
		violations = append(violations, fmt.Sprintf("Password must be at most %d characters long", maxPasswordLength))
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasLower {
		violations = append(violations, "Password must contain at least one lowercase letter")
	}
	if !hasUpper {
		violations = append(violations, "Password must contain at least one uppercase letter")
	}
	if !hasDigit {
		violations = append(violations, "Password must contain at least one number")
	}
	if !hasSymbol {
		violations = append(violations, "Password must contain at least one special character")
	}

	lowered := strings.ToLower(password)
	for _, pattern := range weakPatterns {
		if strings.Contains(lowered, pattern) {
			violations = append(violations, "Password contains common patterns and is not secure")
			break
		}
	}

	return StrengthResult{IsValid: len(violations) == 0, Violations: violations}
}

// GenerateRandom returns length characters drawn uniformly from
// a-zA-Z0-9!@#$%^&*. A non-positive length uses the default of 12.
func GenerateRandom(length int) (string, error) {
	if length <= 0 {
		length = defaultRandomLen
	}

	max := big.NewInt(int64(len(randomCharset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate random: %w", err)
		}
		out[i] = randomCharset[n.Int64()]
	}

	return string(out), nil
}

// GenerateSecureToken returns the hex encoding of n random bytes (default 32).
func GenerateSecureToken(n int) (string, error) {
	if n <= 0 {
		n = defaultTokenLen
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

func GenerateVerificationCode(digits int) (string, error) {
	if digits <= 0 {
		digits = defaultCodeLen
	}

	out := make([]byte, digits)
	ten := big.NewInt(10)
	for i := range out {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		out[i] = byte('0' + n.Int64())
	}

	return string(out), nil
}

func truncateForBcrypt(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxBytes {
		return b[:bcryptMaxBytes]
	}
	return b
}
