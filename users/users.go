package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is identity data owned by the relational collaborator. The core
// reads it during verification and app listing; provisioning lives
// elsewhere.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	CreatedAt    time.Time `json:"createdAt"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
