package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword generates a bcrypt hash of the password, e.g. for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plaintext password with a stored bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckAdminCredentials reports whether username and password match the configured
// back-office account. An empty hash disables login.
func CheckAdminCredentials(username, password, wantUsername, passwordHash string) bool {
	if passwordHash == "" || wantUsername == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(wantUsername)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passOK := CheckPasswordHash(password, passwordHash)
	return userOK && passOK
}
