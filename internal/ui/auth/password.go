package auth

import (
	"crypto/sha256"
	"crypto/subtle"
)

// PasswordChecker сравнивает введённый пароль с паролем администратора.
type PasswordChecker struct {
	digest [sha256.Size]byte
}

// NewPasswordChecker создаёт проверку для пароля администратора.
func NewPasswordChecker(password string) *PasswordChecker {
	return &PasswordChecker{digest: sha256.Sum256([]byte(password))}
}

// CheckPassword сравнивает пароль за постоянное время.
// Сравниваются дайджесты, поэтому длина пароля не влияет на время.
func (p *PasswordChecker) CheckPassword(submitted string) bool {
	d := sha256.Sum256([]byte(submitted))
	return subtle.ConstantTimeCompare(d[:], p.digest[:]) == 1
}
