package util

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsBcryptHash reports whether s looks like a bcrypt hash.
func IsBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2") && len(s) == 60
}

// MatchSecret compares a supplied secret against a configured one, which
// is either a bcrypt hash or a plain value compared in constant time.
func MatchSecret(configured, supplied string) bool {
	if IsBcryptHash(configured) {
		return CheckPassword(configured, supplied)
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) == 1
}
