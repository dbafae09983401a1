package apitest

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/hackorsnooze/internal/apperror"
)

// Accounts only need correct hashes here, so the cheapest bcrypt cost will do.
const passwordCost = bcrypt.MinCost

// bcrypt ignores input past this many bytes.
const maxPasswordBytes = 72

// hashPassword turns a signup password into the stored hash. A password bcrypt
// would truncate is rejected the way the server rejects any bad field.
func hashPassword(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", maxPasswordBytes))
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), passwordCost)
	if err != nil {
		return "", fmt.Errorf("apitest: hashing signup password: %w", err)
	}
	return string(hashed), nil
}

// checkPassword is the login check. A wrong password is the 401 the login
// endpoint answers with; an unreadable stored hash is a server fault.
func (u userRow) checkPassword(plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return apperror.Unauthenticated("Invalid password.")
	default:
		return fmt.Errorf("apitest: stored hash for %s: %w", u.Username, err)
	}
}
