// Package utils holds the credential hashing used by the admin login.
package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// hashCost is the bcrypt work factor for the admin credential. The hash is
// computed once at startup and compared per login, so a higher-than-default
// cost stays cheap.
const hashCost = bcrypt.DefaultCost + 2

// HashPassword bcrypt-hashes a plain credential.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	return string(bytes), err
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
